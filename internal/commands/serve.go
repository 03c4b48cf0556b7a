package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cfg-helper/cfg-helper/internal/config"
	"github.com/cfg-helper/cfg-helper/internal/helper"
	"github.com/cfg-helper/cfg-helper/internal/logging"
	"github.com/cfg-helper/cfg-helper/internal/server"
	"github.com/cfg-helper/cfg-helper/internal/server/routes"
	"github.com/cfg-helper/cfg-helper/internal/version"
	"github.com/cfg-helper/cfg-helper/internal/watch"
)

const shutdownTimeout = 5 * time.Second

func (c *CLI) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, cfg, logger, err := c.openHelper()
			if err != nil {
				return err
			}
			watchFlag, _ := cmd.Flags().GetBool("watch")
			port, _ := cmd.Flags().GetInt("port")
			if port == 0 {
				port = cfg.Global.ListenPort
			}
			return serve(cmd.Context(), h, cfg, logger, port, watchFlag || cfg.Global.Watch, c.resolveConfigPath())
		},
	}
	cmd.Flags().Bool("watch", false, "Reload data files after external edits")
	cmd.Flags().Int("port", 0, "Override ListenPort")
	return cmd
}

// serve 遵循“配置 → Helper → 文件监听 → Fiber server”顺序启动，ctx 结束后关闭服务并保存所有数据文件。
func serve(ctx context.Context, h *helper.Helper, cfg *config.Config, logger *logrus.Logger, port int, watchFiles bool, configPath string) error {
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Helper:     h,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterFileRoutes(app, h)

	if watchFiles {
		w, err := watch.New(h, logger, cfg.Global.WatchDebounce.DurationValue())
		if err != nil {
			return fmt.Errorf("初始化文件监听失败: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			return fmt.Errorf("启动文件监听失败: %w", err)
		}
		defer func() { _ = w.Stop() }()
	}

	fields := logging.BaseFields("startup", configPath)
	fields["directories"] = config.DirectoryNames(cfg.Directories)
	fields["listen_port"] = port
	fields["watch"] = watchFiles
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	}()
	logger.WithFields(logrus.Fields{"action": "listen", "port": port}).Info("Fiber 服务启动")

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		serveErr = app.ShutdownWithContext(shutdownCtx)
	}

	closeErr := h.Close()
	return errors.Join(serveErr, closeErr)
}
