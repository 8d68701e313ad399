package main

import (
	"context"

	"github.com/copyleftdev/scryshot/internal/runs"
	"github.com/copyleftdev/scryshot/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			sessions, runner := a.harness()
			runManager := runs.NewManager(runner, a.logger)
			srv := server.NewServer(a.cfg, runManager, catalog, a.logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err = <-errCh:
			case <-cmd.Context().Done():
				a.logger.Info("Shutdown signal received")
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
				a.logger.Error("Server shutdown failed", zap.Error(shutdownErr))
			}
			if shutdownErr := runManager.Shutdown(ctx); shutdownErr != nil {
				a.logger.Error("Run manager shutdown failed", zap.Error(shutdownErr))
			}
			if shutdownErr := sessions.Shutdown(ctx); shutdownErr != nil {
				a.logger.Error("Browser shutdown failed", zap.Error(shutdownErr))
			}
			return err
		},
	}
}
