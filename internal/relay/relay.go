// Package relay streams log records to browser clients over websockets.
//
// Relay is a logging.Destination. Each connected client gets its own bounded
// buffer and writer goroutine, so a slow or dead client only fails itself:
// the sink sees the failure as a destination error naming that connection,
// and every other destination keeps receiving records.
//
// Frames are JSON text messages of the form
//
//	{"method":"write","data":"<span class='colored color_red'>...</span>","level":"error","seq":12,"ts":"..."}
//
// which the control panel appends to its log view.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"dropcast/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	defaultBuffer  = 256
)

// ErrClosed is returned by ServeHTTP after Close.
var ErrClosed = errors.New("relay closed")

// Options configures a Relay.
type Options struct {
	// Buffer is the number of frames queued per connection before the
	// connection is dropped.
	Buffer int
	Logger *slog.Logger
	// CheckOrigin overrides the upgrader origin policy; nil accepts any origin.
	CheckOrigin func(*http.Request) bool
}

// Frame is the JSON message sent for each record.
type Frame struct {
	Method string `json:"method"`
	Data   string `json:"data"`
	Level  string `json:"level"`
	Seq    uint64 `json:"seq"`
	TS     string `json:"ts"`
}

// Relay fans records out to websocket clients.
type Relay struct {
	mu       sync.Mutex
	conns    map[*conn]struct{}
	closed   bool
	buffer   int
	upgrader websocket.Upgrader
	logger   *slog.Logger
	nextID   atomic.Uint64
}

type conn struct {
	id     uint64
	ws     *websocket.Conn
	remote string
	out    chan []byte
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

// New constructs a relay with no connections.
func New(opts Options) *Relay {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Relay{
		conns:  make(map[*conn]struct{}),
		buffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logging.NewComponentLogger(opts.Logger, "relay"),
	}
}

// Name identifies the relay as a sink destination.
func (r *Relay) Name() string { return "relay" }

// Connections returns the number of live clients.
func (r *Relay) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Write queues rec for every client. Clients whose buffer is full or whose
// socket failed since the last call are dropped and reported in the error.
func (r *Relay) Write(rec logging.Record) error {
	payload, err := json.Marshal(FrameFromRecord(rec))
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	r.mu.Lock()
	var failed []error
	for c := range r.conns {
		if cerr := c.failure(); cerr != nil {
			delete(r.conns, c)
			failed = append(failed, fmt.Errorf("connection %d (%s): %w", c.id, c.remote, cerr))
			continue
		}
		select {
		case c.out <- payload:
		default:
			delete(r.conns, c)
			c.close(errors.New("send buffer full"))
			failed = append(failed, fmt.Errorf("connection %d (%s): send buffer full", c.id, c.remote))
		}
	}
	r.mu.Unlock()
	return errors.Join(failed...)
}

// ServeHTTP upgrades the request and registers the client until it
// disconnects.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.DebugAt(r.logger, 3, "websocket upgrade failed", logging.Error(err))
		return
	}
	c := &conn{
		id:     r.nextID.Add(1),
		ws:     ws,
		remote: req.RemoteAddr,
		out:    make(chan []byte, r.buffer),
		done:   make(chan struct{}),
	}
	if !r.add(c) {
		_ = ws.Close()
		return
	}
	logging.DebugAt(r.logger, 3, "relay client connected",
		logging.Uint64("connection", c.id),
		logging.String("remote", c.remote),
	)
	go c.writeLoop()
	c.readLoop()
	r.remove(c)
}

// Close disconnects every client. Later upgrades are refused.
func (r *Relay) Close() error {
	r.mu.Lock()
	r.closed = true
	conns := r.conns
	r.conns = make(map[*conn]struct{})
	r.mu.Unlock()
	for c := range conns {
		c.close(ErrClosed)
	}
	return nil
}

func (r *Relay) add(c *conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

func (r *Relay) remove(c *conn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
	c.close(nil)
}

// readLoop discards inbound frames and keeps the pong deadline fresh. It
// returns when the client goes away.
func (c *conn) readLoop() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case payload := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close(err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(err)
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *conn) close(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// failure returns the error that closed c, if it failed on its own.
func (c *conn) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// FrameFromRecord renders rec for the control panel. The text is HTML-escaped
// and wrapped in a span whose class carries the severity color.
func FrameFromRecord(rec logging.Record) Frame {
	text := html.EscapeString(rec.Message())
	data := "<span>" + text + "</span>"
	if class := colorClass(rec.Severity); class != "" {
		data = "<span class='colored " + class + "'>" + text + "</span>"
	}
	ts := ""
	if !rec.Time.IsZero() {
		ts = rec.Time.UTC().Format(time.RFC3339Nano)
	}
	return Frame{
		Method: "write",
		Data:   data,
		Level:  rec.Severity.String(),
		Seq:    rec.Seq,
		TS:     ts,
	}
}

func colorClass(sev logging.Severity) string {
	switch sev {
	case logging.SeverityDebug:
		return "color_blue"
	case logging.SeveritySuccess:
		return "color_green"
	case logging.SeverityWarn:
		return "color_yellow"
	case logging.SeverityError:
		return "color_red"
	default:
		return ""
	}
}
