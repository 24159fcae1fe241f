// Command ragengine indexes notes and documents for retrieval-augmented generation.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/ragengine/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragengine/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// version is set by the release build.
var version = "dev"

func main() {
	if err := file.LoadDotEnv(".env"); err != nil {
		logger.Error("loading .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	if err := cli.Execute(ctx, setup, openSettings); err != nil {
		stop()
		os.Exit(1)
	}
}
