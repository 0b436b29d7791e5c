package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"ecg-quality/internal/httpapi"
	"ecg-quality/internal/metrics"
)

// Serve runs the HTTP API until ctx is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	listener, err := net.Listen("tcp", a.Config.Server.Addr)
	if err != nil {
		return err
	}
	return a.serve(ctx, listener)
}

func (a *App) serve(ctx context.Context, listener net.Listener) error {
	cfg := a.Config.Server

	var m *metrics.Metrics
	if cfg.Metrics {
		m = metrics.New()
	} else {
		a.Logger.Warn().Msg("server.metrics disabled; /metrics not exposed")
	}

	api := httpapi.New(a.newAnalyzer(m), m, httpapi.Options{
		AnalyzeTimeout: cfg.AnalyzeTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: a.Config.Upload.MaxUploadMB << 20,
	}, a.Logger)

	srv := &http.Server{
		Handler:      api.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	a.Logger.Info().Str("addr", listener.Addr().String()).Msg("starting http api")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		a.Logger.Error().Err(err).Msg("http api terminated with error")
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.Logger.Info().Msg("http api stopped")
	return nil
}
