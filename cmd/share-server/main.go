package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lens-recorder/internal/infrastructure/logger"
	"lens-recorder/internal/sharehub"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		port      int
		outputDir string
		maxBytes  int64
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:           "share-server",
		Short:         "Receive shared recordings over websocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger.Configure(logger.Config{Level: logLevel, Service: "share-server"})
			log := logger.WithComponent("sharehub")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := sharehub.OpenStore(ctx, outputDir)
			if err != nil {
				log.Error().Err(err).Msg("open store")
				return err
			}
			defer store.Close()

			hub := sharehub.NewHub(sharehub.Config{MaxBytes: maxBytes}, store, log)
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           hub.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", srv.Addr).Str("dir", outputDir).Msg("share server listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("server failed")
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8081, "port to listen on")
	cmd.Flags().StringVar(&outputDir, "output", "shares", "directory for received files and metadata")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 512<<20, "largest accepted file in bytes")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	return cmd
}
