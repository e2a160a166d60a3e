package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/bulkcrypt/internal/buildinfo"
	"github.com/dmitrijs2005/bulkcrypt/internal/cli"
	"github.com/dmitrijs2005/bulkcrypt/internal/config"
	"github.com/dmitrijs2005/bulkcrypt/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	log := logging.NewDefault(os.Stderr, cfg.Verbose)

	code := cli.NewApp(cfg, log).Run(ctx)
	stop()
	os.Exit(code)
}
