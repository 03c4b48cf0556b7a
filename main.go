package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cfg-helper/cfg-helper/internal/commands"
)

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

// run 执行 CLI 并返回退出码：0 成功，1 运行失败，2 用法错误。
func run(ctx context.Context, args []string, opts ...commands.Option) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := commands.New(opts...)
	cli.SetArgs(args)
	cli.SetOutput(stdOut, stdErr)

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(stdErr, err.Error())
		if errors.Is(err, commands.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
