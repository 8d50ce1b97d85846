// Package sse implements the client side of a server-sent event stream:
// one long-lived GET whose response body is a sequence of named events.
//
// All handler callbacks for a stream are invoked from a single goroutine and
// run to completion before the next event is dispatched. After Close returns,
// no new callbacks start; a Close racing a delivery from another goroutine
// may return while that one callback finishes.
package sse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultConnectTimeout   = 10 * time.Second
	defaultHeartbeatTimeout = 30 * time.Second
	maxLineSize             = 1024 * 1024 // 1 MB
)

// ErrHeartbeatTimeout reports that the server went silent for longer than
// the configured heartbeat window.
var ErrHeartbeatTimeout = errors.New("sse: heartbeat timeout")

// StatusError reports a non-2xx response at connection establishment.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sse: unexpected HTTP status %d", e.Code)
}

// Handler receives stream callbacks. Implementations are never called
// concurrently for the same stream.
type Handler interface {
	// OnOpen fires once, after the connection is established.
	OnOpen()
	// OnEvent fires for each complete event frame, in arrival order.
	OnEvent(name string, data []byte)
	// OnError fires at most once, for a transport-level failure. The stream
	// is unusable afterwards.
	OnError(err error)
}

// Options configures a stream connection.
type Options struct {
	// Token is attached as a bearer credential when non-empty.
	Token string
	// ConnectTimeout bounds connection establishment. Zero means 10s.
	ConnectTimeout time.Duration
	// HeartbeatTimeout bounds silence between received lines. Zero means 30s.
	HeartbeatTimeout time.Duration
	// HTTPClient overrides the client used for the request. It must not have
	// a Timeout set, since the response body stays open indefinitely.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Stream is an open server-sent event connection.
type Stream struct {
	cancel  context.CancelFunc
	logger  *slog.Logger
	handler Handler

	mu       sync.Mutex
	closed   bool
	timedOut bool
}

// Dial opens the stream and starts delivering events to h. The returned
// Stream must be closed by the caller unless OnError has fired.
func Dial(ctx context.Context, url string, opts Options, h Handler) (*Stream, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	// The connect timeout only covers establishment; the body stays open.
	connectTimer := time.AfterFunc(opts.ConnectTimeout, cancel)
	resp, err := client.Do(req)
	connectTimer.Stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, &StatusError{Code: resp.StatusCode}
	}

	s := &Stream{
		cancel:  cancel,
		logger:  logger,
		handler: h,
	}

	go s.readLoop(resp, opts.HeartbeatTimeout)

	return s, nil
}

// Close tears the connection down and prevents any new callbacks from
// starting. It is idempotent and safe to call from inside a handler callback;
// it does not wait for a delivery in flight on the dispatch goroutine.
func (s *Stream) Close() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()

	if !already {
		s.cancel()
	}
}

// dispatch runs fn unless the stream has been closed. Returns false once
// closed so the read loop can stop early.
func (s *Stream) dispatch(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	fn()
	return true
}

func (s *Stream) readLoop(resp *http.Response, heartbeat time.Duration) {
	defer resp.Body.Close()

	if !s.dispatch(s.handler.OnOpen) {
		return
	}

	watchdog := time.AfterFunc(heartbeat, func() {
		s.mu.Lock()
		s.timedOut = true
		s.mu.Unlock()
		s.cancel()
	})
	defer watchdog.Stop()

	var (
		eventName string
		data      strings.Builder
		haveData  bool
	)
	flush := func() bool {
		if !haveData && eventName == "" {
			return true
		}
		name := eventName
		if name == "" {
			name = "message"
		}
		payload := []byte(data.String())
		eventName = ""
		data.Reset()
		haveData = false
		return s.dispatch(func() { s.handler.OnEvent(name, payload) })
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		watchdog.Reset(heartbeat)
		line := scanner.Text()

		switch {
		case line == "":
			if !flush() {
				return
			}
		case strings.HasPrefix(line, ":"):
			// Comment / keepalive line.
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if haveData {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			haveData = true
		default:
			// Fields we do not use (id:, retry:) and anything unknown.
		}
	}

	err := scanner.Err()
	s.mu.Lock()
	timedOut := s.timedOut
	s.mu.Unlock()
	switch {
	case timedOut:
		err = ErrHeartbeatTimeout
	case err == nil:
		// Server closed the connection without a terminal event.
		err = errors.New("sse: connection closed by server")
	}

	s.dispatch(func() { s.handler.OnError(err) })
}
