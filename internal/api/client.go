package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrUnavailable is returned when no daemon answers on the API address.
var ErrUnavailable = errors.New("daemon API unavailable")

// Client reads the daemon's HTTP API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// LogQuery selects log events.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	Lane      string
	Level     string
}

// NewClient builds a client for bind, which may omit the scheme. An empty
// bind yields a nil client whose methods report ErrUnavailable.
func NewClient(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base: base,
		// No timeout: follow mode blocks until the caller cancels.
		http: &http.Client{},
	}, nil
}

// WithToken sends token as a bearer credential on every request.
func (c *Client) WithToken(token string) *Client {
	if c != nil {
		c.token = strings.TrimSpace(token)
	}
	return c
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.get(ctx, "/api/status", nil, &out)
	return out, err
}

// Queue fetches /api/queue.
func (c *Client) Queue(ctx context.Context) (QueueListResponse, error) {
	var out QueueListResponse
	err := c.get(ctx, "/api/queue", nil, &out)
	return out, err
}

// History fetches up to limit recent attempts.
func (c *Client) History(ctx context.Context, limit int) (HistoryResponse, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out HistoryResponse
	err := c.get(ctx, "/api/history", values, &out)
	return out, err
}

// Logs fetches a batch of log events.
func (c *Client) Logs(ctx context.Context, q LogQuery) (LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if strings.TrimSpace(q.Component) != "" {
		values.Set("component", q.Component)
	}
	if strings.TrimSpace(q.Lane) != "" {
		values.Set("lane", q.Lane)
	}
	if strings.TrimSpace(q.Level) != "" {
		values.Set("level", q.Level)
	}
	var out LogStreamResponse
	err := c.get(ctx, "/api/logs", values, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, values url.Values, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
			return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, body.Error)
		}
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsUnavailable reports whether err means no daemon is listening.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}
