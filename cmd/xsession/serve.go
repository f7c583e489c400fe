package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/copyleftdev/xsession/internal/observability"
	"github.com/copyleftdev/xsession/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve actions over HTTP, one run at a time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			logger := observability.NewStderrLogger(cfg.Log)
			defer observability.Sync(logger)

			srv := server.NewServer(cfg, newRunner(cfg, logger), logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if err != nil {
					logger.Error("Server failed", zap.Error(err))
				}
				return err
			case <-ctx.Done():
			}

			// A run in flight may be mid-login; give it the browser's shutdown
			// window on top of the write timeout.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout+cfg.Browser.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Shutdown failed", zap.Error(err))
				return err
			}
			return <-errCh
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port (overrides server.port)")
	return cmd
}
