package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hh6422123-cyber/Eak/internal/roomstore"
	"github.com/hh6422123-cyber/Eak/internal/store/memory"
)

type harness struct {
	t      *testing.T
	area   *memory.Area
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("ROOMCHAT_LATENCY", "0s")
	t.Setenv("ROOMCHAT_POLL_INTERVAL", "10ms")
	t.Setenv("ROOMCHAT_LOG_LEVEL", "off")

	area := memory.New()
	t.Cleanup(func() { area.Close() })

	return &harness{
		t:      t,
		area:   area,
		config: filepath.Join(t.TempDir(), "roomchat.yaml"),
	}
}

func (h *harness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()

	var out, errOut bytes.Buffer
	opts := Options{
		In:   strings.NewReader(stdin),
		Out:  &out,
		Err:  &errOut,
		Area: h.area,
	}
	err := Execute(context.Background(), opts, append([]string{"--config", h.config}, args...)...)
	return out.String(), errOut.String(), err
}

func TestCreateExistsSendMessages(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("", "create", "123456")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if strings.TrimSpace(out) != "123456" {
		t.Fatalf("unexpected create output %q", out)
	}

	if _, _, err := h.run("", "create", "123456"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected collision error, got %v", err)
	}

	out, _, err = h.run("", "exists", "123456")
	if err != nil || strings.TrimSpace(out) != "true" {
		t.Fatalf("exists: %q %v", out, err)
	}
	out, _, err = h.run("", "exists", "999999")
	if err != nil || strings.TrimSpace(out) != "false" {
		t.Fatalf("exists missing: %q %v", out, err)
	}

	if _, _, err := h.run("", "send", "123456", "Alice", "hello", "there"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, _, err := h.run("", "send", "999999", "Alice", "hi"); err == nil {
		t.Fatal("expected error sending to a missing room")
	}

	out, _, err = h.run("", "messages", "123456")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if !strings.Contains(out, "Alice: hello there") {
		t.Fatalf("unexpected messages output %q", out)
	}
}

func TestCreateRandom(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("", "create")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := strings.TrimSpace(out)
	if len(id) != 6 || id[0] == '0' {
		t.Fatalf("unexpected random id %q", id)
	}
}

func TestCreateAbandonedAlerts(t *testing.T) {
	h := newHarness(t)
	h.area = memory.New(memory.WithQuota(4))

	_, errOut, err := h.run("", "create", "123456")
	if err == nil || !strings.Contains(err.Error(), "could not be saved") {
		t.Fatalf("expected abandoned error, got %v", err)
	}
	if !strings.Contains(errOut, "alert:") {
		t.Fatalf("expected alert on stderr, got %q", errOut)
	}
}

func TestChat(t *testing.T) {
	h := newHarness(t)

	if _, _, err := h.run("", "create", "123456"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := h.run("", "send", "123456", "Bob", "earlier"); err != nil {
		t.Fatalf("send: %v", err)
	}

	out, _, err := h.run("hi all\n\n/quit\nignored\n", "chat", "123456", "--user", "Alice")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if !strings.Contains(out, "Joined room 123456 as Alice") {
		t.Fatalf("missing banner in %q", out)
	}
	if strings.Count(out, "Bob: earlier") != 1 {
		t.Fatalf("earlier message should print exactly once: %q", out)
	}
	if strings.Count(out, "Alice: hi all") != 1 {
		t.Fatalf("own message should print exactly once: %q", out)
	}
	if strings.Contains(out, "ignored") {
		t.Fatalf("input after /quit was sent: %q", out)
	}
	if strings.Index(out, "Bob: earlier") > strings.Index(out, "Alice: hi all") {
		t.Fatalf("messages out of order: %q", out)
	}
}

func TestChatSendsLinesAsTyped(t *testing.T) {
	h := newHarness(t)

	if _, _, err := h.run("", "create", "123456"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := h.run("  indented  text \n   \n", "chat", "123456", "--user", "Alice"); err != nil {
		t.Fatalf("chat: %v", err)
	}

	msgs := roomstore.New(h.area, roomstore.Options{}).Messages(context.Background(), "123456")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(msgs))
	}
	if msgs[0].Text != "  indented  text " {
		t.Fatalf("text not stored as typed: %q", msgs[0].Text)
	}
}

func TestChatRequiresUserAndRoom(t *testing.T) {
	h := newHarness(t)

	if _, _, err := h.run("", "chat", "123456"); err == nil || !strings.Contains(err.Error(), "--user") {
		t.Fatalf("expected missing user error, got %v", err)
	}
	if _, _, err := h.run("", "chat", "123456", "--user", "Alice"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected missing room error, got %v", err)
	}
}

func TestUnknownBackendFlag(t *testing.T) {
	h := newHarness(t)
	h.area = nil

	var out, errOut bytes.Buffer
	err := Execute(context.Background(), Options{In: strings.NewReader(""), Out: &out, Err: &errOut},
		"--config", h.config, "--backend", "floppy", "exists", "1")
	if err == nil || !strings.Contains(err.Error(), "unknown storage backend") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}
