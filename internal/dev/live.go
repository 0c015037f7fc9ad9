package dev

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Supervisor runs long-lived background work. *faults.Guard implements it.
type Supervisor interface {
	Go(name string, fn func())
}

// LiveReloadConfig configures LiveReload.
type LiveReloadConfig struct {
	// Watch lists the directories whose changes reload the browser.
	Watch []string

	Debounce time.Duration
}

// LiveReload connects a Watcher to a ReloadServer: stylesheet changes
// refresh styles in place, anything else reloads the page.
type LiveReload struct {
	server  *ReloadServer
	watcher *Watcher
	sup     Supervisor
	logger  zerolog.Logger
	cancel  context.CancelFunc
}

// NewLiveReload creates a LiveReload. Nothing is watched until Start.
func NewLiveReload(cfg LiveReloadConfig, sup Supervisor, logger zerolog.Logger) *LiveReload {
	logger = logger.With().Str("component", "livereload").Logger()
	lr := &LiveReload{
		server: NewReloadServer(logger),
		watcher: NewWatcher(WatcherConfig{
			Paths:    cfg.Watch,
			Debounce: cfg.Debounce,
		}, logger),
		sup:    sup,
		logger: logger,
	}
	lr.watcher.OnChange(lr.dispatch)
	return lr
}

// Server returns the WebSocket side.
func (lr *LiveReload) Server() *ReloadServer {
	return lr.server
}

// Start begins watching. The event loop runs under the supervisor.
func (lr *LiveReload) Start(ctx context.Context) error {
	if err := lr.watcher.Start(); err != nil {
		return err
	}
	ctx, lr.cancel = context.WithCancel(ctx)
	lr.sup.Go("dev_watcher", func() {
		if err := lr.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lr.logger.Warn().Err(err).Msg("file watcher stopped")
		}
	})
	lr.logger.Info().Strs("watch", lr.watcher.paths).Msg("live reload enabled")
	return nil
}

// Close stops watching and disconnects every browser.
func (lr *LiveReload) Close() error {
	if lr.cancel != nil {
		lr.cancel()
	}
	lr.server.Close()
	return lr.watcher.Close()
}

func (lr *LiveReload) dispatch(c Change) {
	lr.logger.Debug().Str("path", c.Path).Stringer("type", c.Type).Msg("change detected")
	if c.Type == ChangeCSS {
		lr.server.NotifyCSS(filepath.Base(c.Path))
		return
	}
	lr.server.NotifyReload()
}

// Assets serves unbundled development assets from dir without caching.
// Requests for anything that is not a file in dir pass through to next.
func Assets(dir string) func(http.Handler) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
			if info, err := os.Stat(name); err != nil || info.IsDir() {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Cache-Control", "no-store")
			files.ServeHTTP(w, r)
		})
	}
}
