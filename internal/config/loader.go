package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultConfigName 是 cfg-helper 自身配置文件的默认文件名。
const DefaultConfigName = "cfg-helper.yml"

// envPrefix 允许通过 CFG_HELPER_<KEY> 环境变量覆盖任意全局字段。
const envPrefix = "CFG_HELPER"

// Load 读取并解析 YAML 配置文件，同时注入默认值与校验逻辑。
// 配置文件不存在时不视为错误，直接使用默认值。
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigName
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Directories {
		applyDirectoryDefaults(&cfg.Directories[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absData, err := filepath.Abs(cfg.Global.DataFolder)
	if err != nil {
		return nil, fmt.Errorf("无法解析数据目录: %w", err)
	}
	cfg.Global.DataFolder = absData

	for i := range cfg.Directories {
		if cfg.Directories[i].Path == "" {
			continue
		}
		absDir, err := filepath.Abs(cfg.Directories[i].Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", directoryField(cfg.Directories[i].Name, "Path"), err)
		}
		cfg.Directories[i].Path = absDir
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DataFolder", "./data")
	v.SetDefault("DefaultDirectory", "cfg")
	v.SetDefault("DefaultFile", "config")
	v.SetDefault("DataExtension", ".yml")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("ListenPort", 5050)
	v.SetDefault("Watch", false)
	v.SetDefault("WatchDebounce", "200ms")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if strings.TrimSpace(g.DataFolder) == "" {
		g.DataFolder = "./data"
	}
	if g.ListenPort == 0 {
		g.ListenPort = 5050
	}
	g.DataExtension = strings.TrimSpace(g.DataExtension)
	if g.DataExtension != "" && !strings.HasPrefix(g.DataExtension, ".") {
		g.DataExtension = "." + g.DataExtension
	}
	if g.WatchDebounce.DurationValue() < 0 {
		g.WatchDebounce = Duration(0)
	}
}

func applyDirectoryDefaults(d *DirectoryConfig) {
	d.Name = strings.TrimSpace(d.Name)
	d.Path = strings.TrimSpace(d.Path)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
