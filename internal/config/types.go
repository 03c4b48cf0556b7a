package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "500ms"、"2s" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述数据目录、日志与管理端口等全局参数。
type GlobalConfig struct {
	DataFolder       string   `mapstructure:"DataFolder"`
	DefaultDirectory string   `mapstructure:"DefaultDirectory"`
	DefaultFile      string   `mapstructure:"DefaultFile"`
	DataExtension    string   `mapstructure:"DataExtension"`
	LogLevel         string   `mapstructure:"LogLevel"`
	LogFilePath      string   `mapstructure:"LogFilePath"`
	LogMaxSize       int      `mapstructure:"LogMaxSize"`
	LogMaxBackups    int      `mapstructure:"LogMaxBackups"`
	LogCompress      bool     `mapstructure:"LogCompress"`
	ListenPort       int      `mapstructure:"ListenPort"`
	Watch            bool     `mapstructure:"Watch"`
	WatchDebounce    Duration `mapstructure:"WatchDebounce"`
}

// DirectoryConfig 声明启动时需要预先扫描的数据目录。
type DirectoryConfig struct {
	Name string `mapstructure:"Name"`
	// Path 为空时使用 DataFolder/Name。
	Path string `mapstructure:"Path"`
}

// Config 是 cfg-helper.yml 映射的整体结构。
type Config struct {
	Global      GlobalConfig      `mapstructure:",squash"`
	Directories []DirectoryConfig `mapstructure:"Directory"`
}

// EffectivePath 返回目录最终落盘的位置，未覆盖时回退至 DataFolder/Name。
func (c *Config) EffectivePath(d DirectoryConfig) string {
	if strings.TrimSpace(d.Path) != "" {
		return d.Path
	}
	return filepath.Join(c.Global.DataFolder, d.Name)
}

// DirectoryNames 返回所有预声明目录的名称摘要，供日志字段使用。
func DirectoryNames(dirs []DirectoryConfig) []string {
	if len(dirs) == 0 {
		return nil
	}
	result := make([]string, len(dirs))
	for i, dir := range dirs {
		result[i] = dir.Name
	}
	return result
}
