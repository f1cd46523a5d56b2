// Command server runs the Tawarruq compliance API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JaimeStill/tawarruq/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tawarruq:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	srv, err := newServer(cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	logger := srv.infra.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(
		"tawarruq starting",
		"version", cfg.Version,
		"addr", cfg.Server.Addr(),
		"env", cfg.Env(),
	)

	if err := srv.start(); err != nil {
		if serr := srv.shutdown(cfg.ShutdownTimeoutDuration()); serr != nil {
			logger.Error("shutdown after failed start", "error", serr)
		}
		return fmt.Errorf("start: %w", err)
	}

	<-ctx.Done()
	stop()

	if err := srv.shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		return err
	}
	logger.Info("tawarruq stopped")
	return nil
}
