// Package ai consumes server-side code generation streams and writes the
// results into the session's standard and generator slots.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"diffstream/internal/protocol"
	"diffstream/internal/session"
	"diffstream/internal/sse"
)

var (
	// ErrGenerationActive is returned when a generation for the same slot is
	// already streaming.
	ErrGenerationActive = errors.New("ai: generation already active for slot")
	// ErrNoSession is returned when no session is loaded.
	ErrNoSession = errors.New("ai: no session loaded")
	// ErrBadSlot is returned for slots the server cannot generate.
	ErrBadSlot = errors.New("ai: only standard and generator slots can be generated")
)

// Credentials supplies the bearer token and reacts to credential rejection.
type Credentials interface {
	Token() string
	ForceLogout()
}

type transport interface {
	Close()
}

type dialFunc func(ctx context.Context, rawURL string, opts sse.Options, h sse.Handler) (transport, error)

// Config assembles a Generator's collaborators.
type Config struct {
	// BaseURL is the API root, e.g. "https://host/api".
	BaseURL     string
	Store       *session.Store
	Credentials Credentials
	Logger      *slog.Logger
	HTTPClient  *http.Client
}

// Generator streams AI-written code into a session. At most one stream per
// slot runs at a time; the two generatable slots may stream concurrently.
type Generator struct {
	cfg    Config
	logger *slog.Logger
	dial   dialFunc

	mu     sync.Mutex
	active map[session.Slot]transport
}

// New creates a Generator.
func New(cfg Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		cfg:    cfg,
		logger: logger,
		active: make(map[session.Slot]transport),
	}
	g.dial = func(ctx context.Context, rawURL string, opts sse.Options, h sse.Handler) (transport, error) {
		return sse.Dial(ctx, rawURL, opts, h)
	}
	return g
}

// Generate streams code for slot and blocks until the server finishes, the
// stream fails, or ctx is cancelled. The accumulated content reaches the
// store only on a successful finish, where it marks the session unsaved.
// onChunk, if non-nil, receives the accumulated content after each chunk.
func (g *Generator) Generate(ctx context.Context, slot session.Slot, onChunk func(total string)) error {
	if slot != session.SlotStd && slot != session.SlotGen {
		return ErrBadSlot
	}
	if !g.cfg.Store.Loaded() {
		return ErrNoSession
	}

	u, err := g.buildURL(slot)
	if err != nil {
		return err
	}

	h := &genHandler{
		logger:  g.logger.With("slot", slot),
		onChunk: onChunk,
		done:    make(chan error, 1),
	}

	var token string
	if g.cfg.Credentials != nil {
		token = g.cfg.Credentials.Token()
	}

	g.mu.Lock()
	if _, busy := g.active[slot]; busy {
		g.mu.Unlock()
		return ErrGenerationActive
	}
	stream, err := g.dial(ctx, u, sse.Options{
		Token:      token,
		HTTPClient: g.cfg.HTTPClient,
		Logger:     g.logger,
	}, h)
	if err != nil {
		g.mu.Unlock()
		g.noteAuthFailure(err)
		return fmt.Errorf("start generation: %w", err)
	}
	g.active[slot] = stream
	g.mu.Unlock()

	defer func() {
		stream.Close()
		g.mu.Lock()
		delete(g.active, slot)
		g.mu.Unlock()
	}()

	select {
	case err := <-h.done:
		if err != nil {
			g.noteAuthFailure(err)
			return fmt.Errorf("generation failed: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := g.cfg.Store.UpdateCode(slot, h.total()); err != nil {
		return err
	}
	g.logger.Info("generation finished", "slot", slot, "bytes", len(h.total()))
	return nil
}

// Close aborts any in-flight generations.
func (g *Generator) Close() {
	g.mu.Lock()
	streams := make([]transport, 0, len(g.active))
	for _, s := range g.active {
		streams = append(streams, s)
	}
	g.active = make(map[session.Slot]transport)
	g.mu.Unlock()

	for _, s := range streams {
		s.Close()
	}
}

func (g *Generator) buildURL(slot session.Slot) (string, error) {
	u, err := url.Parse(g.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = path.Join(u.Path, "ai", "stream-generate")
	q := u.Query()
	q.Set("type", string(slot))
	q.Set("session_id", g.cfg.Store.SessionID())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (g *Generator) noteAuthFailure(err error) {
	var status *sse.StatusError
	if errors.As(err, &status) && status.Code == http.StatusUnauthorized && g.cfg.Credentials != nil {
		g.cfg.Credentials.ForceLogout()
	}
}

// genHandler accumulates chunk events until finish or a transport failure.
type genHandler struct {
	logger  *slog.Logger
	onChunk func(total string)
	done    chan error

	mu  sync.Mutex
	buf strings.Builder
}

func (h *genHandler) OnOpen() {
	h.logger.Debug("generation stream open")
}

func (h *genHandler) OnEvent(name string, data []byte) {
	switch name {
	case protocol.EventChunk:
		p, err := protocol.DecodeChunk(data)
		if err != nil {
			h.logger.Warn("dropping malformed chunk", "error", err)
			return
		}
		h.mu.Lock()
		h.buf.WriteString(p.Content)
		total := h.buf.String()
		h.mu.Unlock()
		if h.onChunk != nil {
			h.onChunk(total)
		}
	case protocol.EventFinish:
		h.done <- nil
	default:
		// Tolerate protocol additions.
	}
}

func (h *genHandler) OnError(err error) {
	h.done <- err
}

func (h *genHandler) total() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.String()
}
