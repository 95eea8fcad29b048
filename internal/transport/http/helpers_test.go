package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hh6422123-cyber/Eak/internal/config"
	"github.com/hh6422123-cyber/Eak/internal/notifier"
	"github.com/hh6422123-cyber/Eak/internal/roomstore"
	"github.com/hh6422123-cyber/Eak/internal/store/memory"
)

type testEnv struct {
	area   *memory.Area
	rooms  *roomstore.Store
	srv    *Server
	server *httptest.Server
}

// startTestServer serves a memory-backed store with no artificial latency and
// fast polling.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.Latency = 0
	cfg.PollInterval = 10 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.Nop()

	area := memory.New(memory.WithQuota(cfg.Storage.QuotaBytes))
	rooms := roomstore.New(area, roomstore.Options{
		Key:     cfg.Storage.Key,
		Latency: cfg.Latency,
		Logger:  &disabledLogger,
	})
	subs := notifier.New(rooms, area, notifier.Options{
		Key:          cfg.Storage.Key,
		PollInterval: cfg.PollInterval,
		Logger:       &disabledLogger,
	})

	server := NewServer(rooms, subs, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{area: area, rooms: rooms, srv: server, server: ts}
}
