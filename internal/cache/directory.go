package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/cfg-helper/cfg-helper/internal/logging"
)

// Directory 管理一个数据目录：构造时扫描已有数据文件并为每个文件建立缓存，
// 之后按名称查找或创建 File。条目只增不减。
type Directory struct {
	env  *Env
	name string
	path string

	mu    sync.Mutex
	files map[string]*File
	order []string
}

// OpenDirectory 打开 parent 下名为 name 的数据目录。
func OpenDirectory(env *Env, parent, name string) (*Directory, error) {
	return NewDirectory(env, filepath.Join(parent, name))
}

// NewDirectory 解析目录路径：不存在时创建（失败仅记录日志），
// 存在但不是目录时返回 ErrInvalidTarget，否则扫描其中的数据文件。
func NewDirectory(env *Env, path string) (*Directory, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	d := &Directory{
		env:   env,
		name:  filepath.Base(abs),
		path:  abs,
		files: make(map[string]*File),
	}

	info, err := env.Fs.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		_ = d.Create()
		return d, nil
	case err != nil:
		env.error(d.fields("scan"), ioError("stat", abs, err), "data directory stat failed")
		return d, nil
	case !info.IsDir():
		return nil, invalidTarget(abs, "directory")
	}

	if err := d.scan(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Directory) fields(action string) logrus.Fields {
	return logging.DirectoryFields(action, d.name, d.path)
}

// scan 为每个以扩展名结尾的子项建立 File，其它条目跳过并记录。
func (d *Directory) scan() error {
	entries, err := afero.ReadDir(d.env.Fs, d.path)
	if err != nil {
		d.env.error(d.fields("scan"), ioError("readdir", d.path, err), "data directory scan failed")
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, d.env.Extension) || name == d.env.Extension {
			fields := d.fields("scan")
			fields["entry"] = name
			d.env.info(fields, "skipping non data entry")
			continue
		}
		file, err := NewFile(name, d)
		if err != nil {
			return err
		}
		d.register(file)
	}

	fields := d.fields("scan")
	if len(d.order) == 0 {
		d.env.info(fields, "no data files")
		return nil
	}
	fields["count"] = len(d.order)
	d.env.info(fields, "data files discovered")
	return nil
}

func (d *Directory) register(file *File) {
	if _, ok := d.files[file.Name()]; !ok {
		d.order = append(d.order, file.Name())
	}
	d.files[file.Name()] = file
}

// GetOrCreate 命中时直接返回已有实例；未命中时构造 File（文件不存在则创建）并登记。
// 唯一可能的错误是目标路径为目录时的 ErrInvalidTarget。
func (d *Directory) GetOrCreate(fileName string) (*File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := strings.TrimSuffix(fileName, d.env.Extension)
	if file, ok := d.files[name]; ok {
		return file, nil
	}
	file, err := NewFile(name, d)
	if err != nil {
		return nil, err
	}
	d.register(file)
	return file, nil
}

// Lookup 只查找已登记的 File，不创建。
func (d *Directory) Lookup(fileName string) (*File, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	file, ok := d.files[strings.TrimSuffix(fileName, d.env.Extension)]
	return file, ok
}

// Names 按登记顺序返回文件名（不含扩展名）。
func (d *Directory) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

// Files 按登记顺序返回所有 File。
func (d *Directory) Files() []*File {
	d.mu.Lock()
	defer d.mu.Unlock()
	files := make([]*File, 0, len(d.order))
	for _, name := range d.order {
		files = append(files, d.files[name])
	}
	return files
}

func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.files)
}

// Exists 报告目录当前是否存在于磁盘。
func (d *Directory) Exists() bool {
	ok, err := afero.DirExists(d.env.Fs, d.path)
	return err == nil && ok
}

// Create 递归创建目录，已存在时不做任何事。
func (d *Directory) Create() error {
	if err := d.env.Fs.MkdirAll(d.path, 0o755); err != nil {
		wrapped := ioError("mkdir", d.path, err)
		d.env.error(d.fields("create"), wrapped, "data directory create failed")
		return wrapped
	}
	d.env.info(d.fields("create"), "data directory ready")
	return nil
}

func (d *Directory) Name() string      { return d.name }
func (d *Directory) Path() string      { return d.path }
func (d *Directory) Extension() string { return d.env.Extension }
func (d *Directory) Env() *Env         { return d.env }
