// Package commands implements the cfg-helper command line interface.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cfg-helper/cfg-helper/internal/config"
	"github.com/cfg-helper/cfg-helper/internal/helper"
	"github.com/cfg-helper/cfg-helper/internal/logging"
	"github.com/cfg-helper/cfg-helper/internal/version"
)

// ConfigEnv 覆盖默认配置文件路径，--config 优先。
const ConfigEnv = "CFG_HELPER_CONFIG"

// ErrUsage marks command line misuse; main maps it to exit code 2.
var ErrUsage = errors.New("usage error")

// Option customizes the CLI dependencies, mainly for tests.
type Option func(*CLI)

// WithFs replaces the filesystem used for data files.
func WithFs(fs afero.Fs) Option {
	return func(c *CLI) {
		c.fs = fs
	}
}

// WithLogger skips logging.InitLogger and uses the given logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *CLI) {
		c.logger = logger
	}
}

// CLI represents the cfg-helper command line interface.
type CLI struct {
	rootCmd    *cobra.Command
	configPath string
	fs         afero.Fs
	logger     *logrus.Logger
}

// New creates the command tree.
func New(opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           version.Name,
		Short:         "Cached access to a directory of YAML data files",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}
	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	})

	c := &CLI{rootCmd: rootCmd}
	for _, opt := range opts {
		opt(c)
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "",
		fmt.Sprintf("配置文件路径（默认 ./%s，可被 %s 覆盖）", config.DefaultConfigName, ConfigEnv))

	rootCmd.AddCommand(c.newGetCmd())
	rootCmd.AddCommand(c.newSetCmd())
	rootCmd.AddCommand(c.newKeysCmd())
	rootCmd.AddCommand(c.newDeleteCmd())
	rootCmd.AddCommand(c.newDirsCmd())
	rootCmd.AddCommand(c.newCheckConfigCmd())
	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	err := c.rootCmd.Execute()
	if err != nil && !errors.Is(err, ErrUsage) && strings.HasPrefix(err.Error(), "unknown command") {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return err
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// resolveConfigPath 结合 --config 与环境变量计算最终的配置路径。
func (c *CLI) resolveConfigPath() string {
	if c.configPath != "" {
		return c.configPath
	}
	if env := os.Getenv(ConfigEnv); env != "" {
		return env
	}
	return config.DefaultConfigName
}

// loadConfig 读取配置并初始化日志。
func (c *CLI) loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger := c.logger
	if logger == nil {
		logger, err = logging.InitLogger(cfg.Global)
		if err != nil {
			return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
		}
	}
	return cfg, logger, nil
}

// openHelper 依次完成配置、日志与数据目录初始化。
func (c *CLI) openHelper() (*helper.Helper, *config.Config, *logrus.Logger, error) {
	cfg, logger, err := c.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	var opts []helper.Option
	if c.fs != nil {
		opts = append(opts, helper.WithFs(c.fs))
	}
	h, err := helper.New(cfg, logger, opts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("初始化数据目录失败: %w", err)
	}
	return h, cfg, logger, nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrUsage, cmd.Name(), n, len(args))
		}
		return nil
	}
}
