package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/btsweep/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return r.instrument(promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry}))
}

// Serve exposes the registry on cfg.Listen until ctx is done.
func Serve(ctx context.Context, cfg config.MetricsConfig, reg *Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, reg.Handler())

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.Listen), zap.String("path", path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
