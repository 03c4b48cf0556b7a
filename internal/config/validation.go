package config

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if strings.TrimSpace(g.DataFolder) == "" {
		return newFieldError("Global.DataFolder", "不能为空")
	}
	if err := validateName(g.DefaultDirectory); err != nil {
		return newFieldError("Global.DefaultDirectory", err.Error())
	}
	if err := validateName(g.DefaultFile); err != nil {
		return newFieldError("Global.DefaultFile", err.Error())
	}
	if err := validateExtension(g.DataExtension); err != nil {
		return newFieldError("Global.DataExtension", err.Error())
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "仅支持 trace/debug/info/warn/error/fatal/panic")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.WatchDebounce.DurationValue() < 0 {
		return newFieldError("Global.WatchDebounce", "不能为负数")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Directories {
		dir := &c.Directories[i]
		if dir.Name == "" {
			return newFieldError("Directory[].Name", "不能为空")
		}
		if err := validateName(dir.Name); err != nil {
			return newFieldError(directoryField(dir.Name, "Name"), err.Error())
		}
		if _, exists := seenNames[dir.Name]; exists {
			return newFieldError(directoryField(dir.Name, "Name"), "重复")
		}
		seenNames[dir.Name] = struct{}{}
	}

	return nil
}

// validateName 校验目录名/文件名只包含单级路径。
func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("不能为空")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.New("不允许包含路径分隔符")
	}
	if name == "." || name == ".." {
		return errors.New("不允许使用相对路径")
	}
	return nil
}

func validateExtension(ext string) error {
	if ext == "" {
		return errors.New("不能为空")
	}
	if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
		return errors.New("必须形如 .yml")
	}
	if strings.ContainsAny(ext, `/\ `) {
		return errors.New("不允许包含路径分隔符或空格")
	}
	return nil
}
