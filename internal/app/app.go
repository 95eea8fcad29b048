package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hh6422123-cyber/Eak/internal/config"
	"github.com/hh6422123-cyber/Eak/internal/log"
	"github.com/hh6422123-cyber/Eak/internal/notifier"
	"github.com/hh6422123-cyber/Eak/internal/roomstore"
	"github.com/hh6422123-cyber/Eak/internal/store"
	"github.com/hh6422123-cyber/Eak/internal/store/filestore"
	"github.com/hh6422123-cyber/Eak/internal/store/memory"
	"github.com/hh6422123-cyber/Eak/internal/store/redisstore"
	"github.com/hh6422123-cyber/Eak/internal/store/sqlite"
	transporthttp "github.com/hh6422123-cyber/Eak/internal/transport/http"
)

// ErrUnknownBackend is returned for an unsupported storage.backend value.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Option customizes App construction.
type Option func(*options)

type options struct {
	alerter roomstore.Alerter
	area    store.Area
}

// WithAlerter overrides how abandoned writes are reported.
func WithAlerter(a roomstore.Alerter) Option {
	return func(o *options) { o.alerter = a }
}

// WithArea uses area instead of opening the configured backend. The App
// takes ownership and closes it.
func WithArea(area store.Area) Option {
	return func(o *options) { o.area = area }
}

// App wires together storage, the room store, the notifier and transport.
type App struct {
	server          *transporthttp.Server
	shutdownTimeout time.Duration
	area            store.Area
	rooms           *roomstore.Store
	notifier        *notifier.Notifier
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, opts ...Option) (*App, error) {
	logger = log.OrNop(logger)

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	area := o.area
	if area == nil {
		var err error
		area, err = OpenArea(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
	}

	logger.Info().Str("backend", cfg.Storage.Backend).Str("key", cfg.Storage.Key).Msg("storage initialized")

	rooms := roomstore.New(area, roomstore.Options{
		Key:            cfg.Storage.Key,
		Latency:        cfg.Latency,
		RoomIDDigits:   cfg.RoomIDDigits,
		CreateAttempts: cfg.CreateAttempts,
		Alerter:        o.alerter,
		Logger:         logger,
	})
	n := notifier.New(rooms, area, notifier.Options{
		Key:          rooms.Key(),
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})

	return &App{
		server:          transporthttp.NewServer(rooms, n, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		area:            area,
		rooms:           rooms,
		notifier:        n,
		log:             logger,
	}, nil
}

// OpenArea opens the storage area selected by cfg.Backend.
func OpenArea(ctx context.Context, cfg config.StorageConfig, logger *zerolog.Logger) (store.Area, error) {
	var (
		area store.Area
		err  error
	)
	switch cfg.Backend {
	case store.BackendMemory:
		area = memory.New(memory.WithQuota(cfg.QuotaBytes))
	case store.BackendFile, "":
		var fs *filestore.FileStore
		if fs, err = filestore.New(cfg.Dir, logger); err == nil {
			area = fs
		}
	case store.BackendSQLite:
		var db *sqlite.SQLiteStore
		if db, err = sqlite.New(cfg.SQLitePath, cfg.WatchInterval, logger); err == nil {
			area = db
		}
	case store.BackendRedis:
		var rs *redisstore.RedisStore
		rs, err = redisstore.New(ctx, redisstore.Options{
			Addr:    cfg.RedisAddr,
			DB:      cfg.RedisDB,
			Channel: cfg.RedisChannel,
		}, logger)
		if err == nil {
			area = rs
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return area, nil
}

// Store returns the room store.
func (a *App) Store() *roomstore.Store {
	return a.rooms
}

// Notifier returns the change notifier.
func (a *App) Notifier() *notifier.Notifier {
	return a.notifier
}

// Handler returns the HTTP handler, mostly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.Close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		// Shutdown ends WebSocket sessions too, so nothing polls the area
		// once it is closed.
		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.Close()
			return err
		}

		a.Close()
		return <-serverErr
	}
}

// Close releases the storage area.
func (a *App) Close() {
	if a.area == nil {
		return
	}
	if err := a.area.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close storage")
	} else {
		a.log.Info().Msg("storage closed")
	}
}
