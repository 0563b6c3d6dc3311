package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/satchel/config"
	satchelhttp "github.com/sagarc03/satchel/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the satchel HTTP server.

Routes:
  GET|HEAD /download?dir=<base>&files=<path>[;<path>...]
  GET      /history?dir_prefix=&limit=&cursor=
  GET      /healthz
  GET      /metrics (with --metrics)`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5709, "HTTP server port")
	serveCmd.Flags().Bool("archive", true, "allow ZIP downloads of directories and file lists")
	serveCmd.Flags().String("max-input-size", "", `archive input ceiling, e.g. "800 MiB" (0 = unlimited)`)
	serveCmd.Flags().String("temp-dir", "", "directory for temporary archive files")
	serveCmd.Flags().String("method", "", "archive compression method: store, deflate")
	serveCmd.Flags().Bool("metrics", false, "expose Prometheus metrics at /metrics")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, cleanup, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	writeTimeout := time.Duration(cfg.Server.WriteTimeout) * time.Second

	handler := satchelhttp.NewHandler(&satchelhttp.HandlerConfig{
		CORS:         cfg.CORS,
		WriteTimeout: writeTimeout,
		Metrics:      cfg.Metrics.Enabled,
	}, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"archive", cfg.Archive.Enabled,
			"max_input_size", cfg.Archive.MaxInputSize.String(),
			"method", cfg.Archive.Method,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
