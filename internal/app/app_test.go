package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hh6422123-cyber/Eak/internal/config"
	"github.com/hh6422123-cyber/Eak/internal/roomstore"
	"github.com/hh6422123-cyber/Eak/internal/store"
	"github.com/hh6422123-cyber/Eak/internal/store/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.Latency = 0
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ShutdownTimeout = time.Second
	cfg.Storage.Dir = t.TempDir()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "rooms.db")
	return cfg
}

func TestOpenArea(t *testing.T) {
	cfg := testConfig(t)

	for _, backend := range []string{store.BackendMemory, store.BackendFile, store.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			sc := cfg.Storage
			sc.Backend = backend

			area, err := OpenArea(context.Background(), sc, nil)
			if err != nil {
				t.Fatalf("open %s: %v", backend, err)
			}
			defer area.Close()

			if err := area.Set(context.Background(), "k", []byte("v")); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, found, err := area.Get(context.Background(), "k")
			if err != nil || !found || string(got) != "v" {
				t.Fatalf("get: %q %v %v", got, found, err)
			}
		})
	}
}

func TestOpenAreaUnknownBackend(t *testing.T) {
	sc := testConfig(t).Storage
	sc.Backend = "floppy"

	area, err := OpenArea(context.Background(), sc, nil)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
	if area != nil {
		t.Fatalf("expected nil area, got %T", area)
	}
}

func TestAppWiresStoreAndServer(t *testing.T) {
	cfg := testConfig(t)

	var alerts []error
	application, err := New(context.Background(), &cfg, nil,
		WithArea(memory.New(memory.WithQuota(80))),
		WithAlerter(roomstore.AlertFunc(func(err error) { alerts = append(alerts, err) })),
	)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer application.Close()

	ts := httptest.NewServer(application.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/rooms", "application/json", strings.NewReader(`{"room_id":"123456"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	ok, err := application.Store().RoomExists(context.Background(), "123456")
	if err != nil || !ok {
		t.Fatalf("room not visible through store: %v %v", ok, err)
	}

	// One room fits in 80 bytes, a second one does not.
	res, _ := application.Store().CreateRoom(context.Background(), "654321")
	if res != roomstore.CreateAbandoned {
		t.Fatalf("expected abandoned create, got %v", res)
	}
	if len(alerts) != 1 || !errors.Is(alerts[0], store.ErrQuotaExceeded) {
		t.Fatalf("expected one quota alert, got %v", alerts)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = store.BackendMemory

	application, err := New(context.Background(), &cfg, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
