package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cfg-helper/cfg-helper/internal/config"
	"github.com/cfg-helper/cfg-helper/internal/logging"
	"github.com/cfg-helper/cfg-helper/internal/version"
)

func (c *CLI) newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and exit",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.loadConfig()
			if err != nil {
				return err
			}
			fields := logging.BaseFields("check_config", c.resolveConfigPath())
			fields["data_folder"] = cfg.Global.DataFolder
			fields["directories"] = config.DirectoryNames(cfg.Directories)
			fields["result"] = "ok"
			logger.WithFields(fields).Info("配置校验通过")

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: data folder %s, %d directories\n",
				cfg.Global.DataFolder, len(cfg.Directories))
			return nil
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}
