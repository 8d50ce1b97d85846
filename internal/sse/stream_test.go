package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	name string
	data string
}

// recordingHandler collects callbacks and signals completion.
type recordingHandler struct {
	mu     sync.Mutex
	opened bool
	events []recordedEvent
	err    error
	done   chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{done: make(chan struct{}, 1)}
}

func (h *recordingHandler) OnOpen() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = true
}

func (h *recordingHandler) OnEvent(name string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, recordedEvent{name: name, data: string(data)})
}

func (h *recordingHandler) OnError(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	select {
	case h.done <- struct{}{}:
	default:
	}
}

func (h *recordingHandler) snapshot() ([]recordedEvent, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]recordedEvent(nil), h.events...), h.opened, h.err
}

func sseServer(t *testing.T, frames []string, hold bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, f := range frames {
			fmt.Fprint(w, f)
			fl.Flush()
		}
		if hold {
			<-r.Context().Done()
		}
	}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestDial_DeliversNamedEventsInOrder(t *testing.T) {
	ts := sseServer(t, []string{
		"event: status\ndata: {\"status\":\"running\"}\n\n",
		": keepalive\n",
		"event: test_result\ndata: {\"test_case\":{\"id\":1}}\n\n",
		"event: finish\ndata: \n\n",
	}, true)
	defer ts.Close()

	h := newRecordingHandler()
	stream, err := Dial(context.Background(), ts.URL, Options{Token: "tok"}, h)
	require.NoError(t, err)
	defer stream.Close()

	waitFor(t, func() bool {
		evs, _, _ := h.snapshot()
		return len(evs) == 3
	})

	evs, opened, _ := h.snapshot()
	assert.True(t, opened)
	assert.Equal(t, "status", evs[0].name)
	assert.Equal(t, `{"status":"running"}`, evs[0].data)
	assert.Equal(t, "test_result", evs[1].name)
	assert.Equal(t, "finish", evs[2].name)
}

func TestDial_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	h := newRecordingHandler()
	stream, err := Dial(context.Background(), ts.URL, Options{Token: "secret"}, h)
	require.NoError(t, err)
	stream.Close()

	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestDial_StatusError(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		_, err := Dial(context.Background(), ts.URL, Options{}, newRecordingHandler())
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr, "code %d", code)
		assert.Equal(t, code, statusErr.Code)
		ts.Close()
	}
}

func TestDial_ServerDisconnectReportsError(t *testing.T) {
	ts := sseServer(t, []string{"event: status\ndata: {}\n\n"}, false)
	defer ts.Close()

	h := newRecordingHandler()
	stream, err := Dial(context.Background(), ts.URL, Options{}, h)
	require.NoError(t, err)
	defer stream.Close()

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnError not called after server disconnect")
	}

	_, _, streamErr := h.snapshot()
	assert.Error(t, streamErr)
}

func TestDial_HeartbeatTimeout(t *testing.T) {
	ts := sseServer(t, []string{"event: status\ndata: {}\n\n"}, true)
	defer ts.Close()

	h := newRecordingHandler()
	stream, err := Dial(context.Background(), ts.URL, Options{HeartbeatTimeout: 50 * time.Millisecond}, h)
	require.NoError(t, err)
	defer stream.Close()

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnError not called after heartbeat timeout")
	}

	_, _, streamErr := h.snapshot()
	assert.True(t, errors.Is(streamErr, ErrHeartbeatTimeout), "got %v", streamErr)
}

func TestClose_SuppressesFurtherCallbacks(t *testing.T) {
	ts := sseServer(t, []string{"event: status\ndata: {}\n\n"}, false)
	defer ts.Close()

	h := newRecordingHandler()
	stream, err := Dial(context.Background(), ts.URL, Options{}, h)
	require.NoError(t, err)

	stream.Close()
	stream.Close() // idempotent

	// Give the read loop time to observe the closed flag.
	time.Sleep(50 * time.Millisecond)
	_, _, streamErr := h.snapshot()
	assert.NoError(t, streamErr)
}

func TestMultilineDataJoined(t *testing.T) {
	ts := sseServer(t, []string{"event: status\ndata: line1\ndata: line2\n\n"}, true)
	defer ts.Close()

	h := newRecordingHandler()
	stream, err := Dial(context.Background(), ts.URL, Options{}, h)
	require.NoError(t, err)
	defer stream.Close()

	waitFor(t, func() bool {
		evs, _, _ := h.snapshot()
		return len(evs) == 1
	})
	evs, _, _ := h.snapshot()
	assert.Equal(t, "line1\nline2", evs[0].data)
}
