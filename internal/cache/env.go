package cache

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DefaultExtension 是数据文件的默认扩展名，同时用于过滤目录条目与推导文件路径。
const DefaultExtension = ".yml"

// Env 汇总 Directory/File 共享的依赖：文件系统、日志与数据文件扩展名。
// 启动时构造一次，以指针形式传入所有构造函数。
type Env struct {
	Fs        afero.Fs
	Logger    logrus.FieldLogger
	Extension string
}

// NewEnv 填充缺省依赖：nil Fs 使用真实文件系统，nil Logger 使用 logrus 标准实例。
func NewEnv(fs afero.Fs, logger logrus.FieldLogger, extension string) *Env {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	extension = strings.TrimSpace(extension)
	if extension == "" {
		extension = DefaultExtension
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return &Env{Fs: fs, Logger: logger, Extension: extension}
}

func (e *Env) info(fields logrus.Fields, msg string) {
	e.Logger.WithFields(fields).Info(msg)
}

func (e *Env) error(fields logrus.Fields, err error, msg string) {
	entry := e.Logger.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}
