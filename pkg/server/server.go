package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/delta94/cvmaker/internal/config"
)

const defaultShutdownTimeout = 10 * time.Second

// Prepare creates the directories the app writes to.
func (a *App) Prepare() error {
	if dir := a.cfg.Paths.GeneratedFiles; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("server: create generated files dir: %w", err)
		}
	}
	return nil
}

// Run listens on the configured address and serves until ctx is done or the
// process receives SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.cfg.Address())
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.Prepare(); err != nil {
		ln.Close()
		return err
	}
	handler, err := a.Handler()
	if err != nil {
		ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       a.cfg.Server.IdleTimeout,
	}
	if a.cfg.Mode() == config.ModeDevelopment {
		// the live reload websocket is long-lived
		srv.WriteTimeout = 0
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	a.httpServer = srv
	a.mu.Unlock()

	if a.live != nil {
		if err := a.live.Start(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("live reload unavailable")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().
			Str("address", ln.Addr().String()).
			Str("mode", a.cfg.Mode().String()).
			Msg("server starting")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		a.logger.Info().Msg("shutting down")
		if err := a.Shutdown(context.Background()); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

// Shutdown stops accepting requests, waits for in-flight ones up to the
// configured timeout, then stops live reload. Stores and the database are
// closed by their owner.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	srv := a.httpServer
	a.mu.Unlock()

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var shutdownErr error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error().Err(err).Msg("shutdown error")
			shutdownErr = err
		}
	}

	if a.live != nil {
		if err := a.live.Close(); err != nil {
			a.logger.Debug().Err(err).Msg("live reload close")
		}
	}

	a.logger.Info().Msg("server shutdown complete")
	return shutdownErr
}
