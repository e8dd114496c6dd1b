package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/tenorledger/tenord/internal/config"
	"github.com/urfave/cli/v2"
)

const appName = "tenord"

func main() {
	app := &cli.App{
		Name:    appName,
		Usage:   "token ledger daemon",
		Flags:   config.Flags,
		Action:  mainAction,
		Version: version(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainAction(c *cli.Context) error {
	cfg, err := config.LoadConfig(c)
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	svc, err := cfg.AppService()
	if err != nil {
		return fmt.Errorf("failed to create app service: %s", err)
	}
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}

	log.Infof("%s started on ledger %s", appName, cfg.LedgerID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down...")
	svc.Stop()
	log.Info("service stopped")
	return nil
}
