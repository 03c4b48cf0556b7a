package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cfg-helper/cfg-helper/internal/cache"
)

func (c *CLI) newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <file> <key>",
		Short: "Print the value of a key",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, _, _, err := c.openHelper()
			if err != nil {
				return err
			}
			file, err := h.File(args[0])
			if err != nil {
				return err
			}
			value := file.Get(args[1])
			if value.IsAbsent() {
				return fmt.Errorf("%s: %w", args[1], cache.ErrKeyNotFound)
			}
			if showKind, _ := cmd.Flags().GetBool("kind"); showKind {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", value.Kind(), value)
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), value.String())
			return nil
		},
	}
	cmd.Flags().Bool("kind", false, "Prefix the value with its kind")
	return cmd
}

func (c *CLI) newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <file> <key> <value>",
		Short: "Write a key and save the file",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeName, _ := cmd.Flags().GetString("type")
			noSave, _ := cmd.Flags().GetBool("no-save")

			kind, err := cache.ParseKind(typeName)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUsage, err)
			}
			value, err := cache.ParseValue(kind, args[2])
			if err != nil {
				return fmt.Errorf("%w: invalid %s value %q: %w", ErrUsage, kind, args[2], err)
			}

			h, _, _, err := c.openHelper()
			if err != nil {
				return err
			}
			file, err := h.File(args[0])
			if err != nil {
				return err
			}
			if noSave {
				// 进程退出即丢弃缓存，这里只展示将写入的值。
				file.Set(args[1], value)
				stored := file.Get(args[1])
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "not saved: %s %s = %s (%s)\n",
					file.QualifiedName(), args[1], stored, stored.Kind())
				return nil
			}
			return file.SetAndSave(args[1], value)
		},
	}
	cmd.Flags().StringP("type", "t", "string", "Value type: string, int, long, float, double, bool or list")
	cmd.Flags().Bool("no-save", false, "Show the value as it would be stored without writing the file")
	return cmd
}

func (c *CLI) newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <file>",
		Short: "List cached keys of a data file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, _, _, err := c.openHelper()
			if err != nil {
				return err
			}
			file, err := h.File(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, key := range file.Keys() {
				_, _ = fmt.Fprintln(out, key)
			}
			return nil
		},
	}
}

func (c *CLI) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file>",
		Short: "Delete a data file from disk",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, _, _, err := c.openHelper()
			if err != nil {
				return err
			}
			file, err := h.File(args[0])
			if err != nil {
				return err
			}
			if err := file.Delete(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", file.QualifiedName())
			return nil
		},
	}
}

func (c *CLI) newDirsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dirs",
		Short: "List data directories and their files",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, _, _, err := c.openHelper()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, dir := range h.DirectoryList() {
				_, _ = fmt.Fprintf(out, "%s\t%s\t%d\n", dir.Name(), dir.Path(), dir.Len())
			}
			return nil
		},
	}
}
