// Package helper 负责启动阶段的协调：构建共享的 cache.Env，
// 打开默认目录与默认数据文件，并按名称维护其它数据目录。
package helper

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/cfg-helper/cfg-helper/internal/cache"
	"github.com/cfg-helper/cfg-helper/internal/config"
	"github.com/cfg-helper/cfg-helper/internal/logging"
)

// ErrInvalidReference 表示 dir/file 引用格式不合法。
var ErrInvalidReference = errors.New("invalid file reference")

// Option 调整 Helper 的可注入依赖。
type Option func(*options)

type options struct {
	fs afero.Fs
}

// WithFs 替换底层文件系统，测试中通常注入 afero.NewMemMapFs()。
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// Helper 持有数据目录注册表，是 CLI、管理接口与文件监听共享的入口。
type Helper struct {
	cfg    *config.Config
	env    *cache.Env
	logger logrus.FieldLogger

	mu          sync.Mutex
	dirs        map[string]*cache.Directory
	defaultDir  *cache.Directory
	defaultFile *cache.File
}

// New 打开默认目录、默认数据文件以及配置中预声明的目录。
func New(cfg *config.Config, logger logrus.FieldLogger, opts ...Option) (*Helper, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	env := cache.NewEnv(o.fs, logger, cfg.Global.DataExtension)
	h := &Helper{
		cfg:    cfg,
		env:    env,
		logger: env.Logger,
		dirs:   make(map[string]*cache.Directory),
	}

	defaultDir, err := cache.OpenDirectory(env, cfg.Global.DataFolder, cfg.Global.DefaultDirectory)
	if err != nil {
		return nil, fmt.Errorf("open default directory: %w", err)
	}
	h.defaultDir = defaultDir
	h.dirs[defaultDir.Name()] = defaultDir

	defaultFile, err := defaultDir.GetOrCreate(cfg.Global.DefaultFile)
	if err != nil {
		return nil, fmt.Errorf("open default file: %w", err)
	}
	h.defaultFile = defaultFile

	for _, dc := range cfg.Directories {
		dir, err := cache.NewDirectory(env, cfg.EffectivePath(dc))
		if err != nil {
			return nil, fmt.Errorf("open directory %s: %w", dc.Name, err)
		}
		h.dirs[dc.Name] = dir
	}

	fields := logging.DirectoryFields("startup", defaultDir.Name(), defaultDir.Path())
	fields["directories"] = len(h.dirs)
	fields["default_file"] = defaultFile.QualifiedName()
	h.logger.WithFields(fields).Info("数据目录初始化完成")
	return h, nil
}

// Env 返回共享的缓存依赖。
func (h *Helper) Env() *cache.Env {
	return h.env
}

// Config 返回启动时加载的配置。
func (h *Helper) Config() *config.Config {
	return h.cfg
}

// DefaultDirectory 返回默认数据目录。
func (h *Helper) DefaultDirectory() *cache.Directory {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.defaultDir
}

// SetDefaultDirectory 替换默认目录，并将其登记到注册表。
func (h *Helper) SetDefaultDirectory(dir *cache.Directory) {
	if dir == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaultDir = dir
	h.dirs[dir.Name()] = dir
}

// DefaultFile 返回默认数据文件。
func (h *Helper) DefaultFile() *cache.File {
	return h.defaultFile
}

// Directory 按名称查找数据目录，不存在时在 DataFolder 下创建并登记。
func (h *Helper) Directory(name string) (*cache.Directory, error) {
	if err := validateSegment(name); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if dir, ok := h.dirs[name]; ok {
		return dir, nil
	}
	dir, err := cache.OpenDirectory(h.env, h.cfg.Global.DataFolder, name)
	if err != nil {
		return nil, err
	}
	h.dirs[name] = dir
	return dir, nil
}

// LookupDirectory 只查找已登记的目录。
func (h *Helper) LookupDirectory(name string) (*cache.Directory, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dir, ok := h.dirs[name]
	return dir, ok
}

// Directories 返回已登记目录名称，按字典序排列。
func (h *Helper) Directories() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.dirs))
	for name := range h.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DirectoryList 返回与 Directories 顺序一致的目录实例。
func (h *Helper) DirectoryList() []*cache.Directory {
	names := h.Directories()
	h.mu.Lock()
	defer h.mu.Unlock()
	dirs := make([]*cache.Directory, 0, len(names))
	for _, name := range names {
		dirs = append(dirs, h.dirs[name])
	}
	return dirs
}

// File 解析 "dir/file" 或 "file" 形式的引用，后者落在默认目录。
func (h *Helper) File(ref string) (*cache.File, error) {
	dirName, fileName, err := SplitReference(ref)
	if err != nil {
		return nil, err
	}
	dir := h.DefaultDirectory()
	if dirName != "" {
		dir, err = h.Directory(dirName)
		if err != nil {
			return nil, err
		}
	}
	return dir.GetOrCreate(fileName)
}

// Locate 将磁盘路径映射回已登记目录与逻辑文件名，供文件监听使用。
func (h *Helper) Locate(path string) (*cache.Directory, string, bool) {
	base := filepath.Base(path)
	ext := h.env.Extension
	if !strings.HasSuffix(base, ext) || base == ext {
		return nil, "", false
	}
	parent := filepath.Clean(filepath.Dir(path))

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, dir := range h.dirs {
		if dir.Path() == parent {
			return dir, strings.TrimSuffix(base, ext), true
		}
	}
	return nil, "", false
}

// Close 保存所有已打开的数据文件，返回合并后的错误。
func (h *Helper) Close() error {
	var errs error
	for _, dir := range h.DirectoryList() {
		for _, file := range dir.Files() {
			errs = errors.Join(errs, file.Close())
		}
	}
	return errs
}

// SplitReference 拆分 "dir/file" 引用；只有文件名时 dir 为空。
func SplitReference(ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	parts := strings.Split(ref, "/")
	switch len(parts) {
	case 1:
		if err := validateSegment(parts[0]); err != nil {
			return "", "", err
		}
		return "", parts[0], nil
	case 2:
		for _, part := range parts {
			if err := validateSegment(part); err != nil {
				return "", "", err
			}
		}
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
}

func validateSegment(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidReference, name)
	}
	return nil
}
