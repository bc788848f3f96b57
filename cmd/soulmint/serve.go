package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulmint/soulmint/pkg/gateway"
	"github.com/soulmint/soulmint/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat gateway and evolution backfill",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.store.Close()

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := gateway.NewServer(cfg.Gateway, eng.gate)
		if err := server.Start(); err != nil {
			return fmt.Errorf("start gateway: %w", err)
		}

		go eng.backfill.Run(ctx)

		logger.InfoC("serve", "soulmint is running, press Ctrl+C to stop")
		<-ctx.Done()

		logger.InfoC("serve", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	},
}
