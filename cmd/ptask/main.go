package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BuzzLyutic/ptask/internal/cli"
)

var version = "dev" // задаётся через -ldflags "-X main.version=..."

func main() {
	// Ctrl+C отменяет ожидание блокировки файла
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr, cli.WithVersion(version))
	stop()
	os.Exit(code)
}
