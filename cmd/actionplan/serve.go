// Package main serve command: HTTP API plus metrics endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/actionplan/internal/config"
	"github.com/joss/actionplan/internal/engine"
	"github.com/joss/actionplan/internal/logging"
	"github.com/joss/actionplan/internal/metrics"
	"github.com/joss/actionplan/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Run: func(cmd *cobra.Command, args []string) {
			env := config.Env()
			if addr == "" {
				addr = env.HTTPAddr
			}
			if metricsAddr == "" {
				metricsAddr = env.MetricsAddr
			}

			err := withEngine(func(ctx context.Context, eng *engine.Engine) error {
				log := logging.New("serve")

				msrv := metrics.NewServer(metricsAddr)
				msrv.Start()
				log.Info("metrics listening", map[string]any{"addr": metricsAddr})

				srv := server.New(eng, addr)
				errCh := make(chan error, 1)
				go func() {
					if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
				}()

				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

				select {
				case err := <-errCh:
					return err
				case sig := <-sigCh:
					log.Info("shutting down", map[string]any{"signal": sig.String()})
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Stop(shutdownCtx); err != nil {
					return err
				}
				return msrv.Stop(shutdownCtx)
			})
			if err != nil {
				fatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "API listen address (default from ACTIONPLAN_HTTP_ADDR)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "metrics listen address (default from ACTIONPLAN_METRICS_ADDR)")
	return cmd
}
