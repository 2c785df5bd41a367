package relay

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"dropcast/internal/logging"
)

func dial(t *testing.T, r *Relay) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	waitFor(t, func() bool { return r.Connections() == 1 })
	return ws
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRelayDeliversFrames(t *testing.T) {
	r := New(Options{})
	ws := dial(t, r)

	rec := logging.Record{
		Seq:      7,
		Time:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Severity: logging.SeverityWarn,
		Prefix:   "queue",
		Text:     "frozen <rate limit>",
	}
	if err := r.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Method != "write" || frame.Level != "warn" || frame.Seq != 7 {
		t.Fatalf("unexpected frame %+v", frame)
	}
	want := "<span class='colored color_yellow'>[queue] frozen &lt;rate limit&gt;</span>"
	if frame.Data != want {
		t.Fatalf("data = %q, want %q", frame.Data, want)
	}
	if frame.TS != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected ts %q", frame.TS)
	}
}

func TestRelayPreservesOrder(t *testing.T) {
	r := New(Options{Buffer: 64})
	ws := dial(t, r)

	for i := 1; i <= 20; i++ {
		if err := r.Write(logging.Record{Seq: uint64(i), Text: "line"}); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 1; i <= 20; i++ {
		var frame Frame
		if err := ws.ReadJSON(&frame); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if frame.Seq != uint64(i) {
			t.Fatalf("expected seq %d, got %d", i, frame.Seq)
		}
	}
}

func TestRelayDropsFullConnectionOnly(t *testing.T) {
	r := New(Options{Buffer: 1})
	stuck := &conn{id: 99, remote: "stuck", out: make(chan []byte, 1), done: make(chan struct{})}
	healthy := &conn{id: 100, remote: "healthy", out: make(chan []byte, 8), done: make(chan struct{})}
	r.add(stuck)
	r.add(healthy)

	if err := r.Write(logging.Record{Seq: 1}); err != nil {
		t.Fatalf("first write should fit: %v", err)
	}
	err := r.Write(logging.Record{Seq: 2})
	if err == nil || !strings.Contains(err.Error(), "stuck") || strings.Contains(err.Error(), "healthy") {
		t.Fatalf("expected only the stuck connection to fail, got %v", err)
	}
	if r.Connections() != 1 {
		t.Fatalf("expected stuck connection removed, have %d", r.Connections())
	}
	if len(healthy.out) != 2 {
		t.Fatalf("healthy connection should have both frames, has %d", len(healthy.out))
	}
	select {
	case <-stuck.done:
	default:
		t.Fatal("stuck connection should be closed")
	}
}

func TestRelayAsSinkDestination(t *testing.T) {
	r := New(Options{})
	ws := dial(t, r)
	sink := logging.NewSink(logging.SinkOptions{Destinations: []logging.Destination{r}})
	defer sink.Close(time.Second)

	sink.Success("posted photo.jpg")
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	if err := ws.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Level != "success" || !strings.Contains(frame.Data, "color_green") {
		t.Fatalf("unexpected frame %+v", frame)
	}
}

func TestRelayCloseDisconnectsClients(t *testing.T) {
	r := New(Options{})
	ws := dial(t, r)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected the client to be disconnected")
	}
	if r.Connections() != 0 {
		t.Fatalf("expected no connections, have %d", r.Connections())
	}
}
