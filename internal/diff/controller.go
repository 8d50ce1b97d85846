package diff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"diffstream/internal/protocol"
	"diffstream/internal/session"
	"diffstream/internal/sse"
)

// Precondition violations. They are rejected synchronously and mutate nothing.
var (
	ErrJobActive   = errors.New("diff: a job is already active")
	ErrNoSession   = errors.New("diff: no session loaded")
	ErrNoTestCases = errors.New("diff: no test cases to rerun")
	// ErrAborted means the user declined to proceed at the unsaved-changes
	// prompt. It is a deliberate abort, not a failure.
	ErrAborted = errors.New("diff: aborted at unsaved-changes prompt")
)

const stopNotifyTimeout = 10 * time.Second

// Credentials supplies the bearer token and absorbs forced logouts when the
// server rejects it.
type Credentials interface {
	Token() string
	ForceLogout()
}

// StopNotifier tells the server a job should stop. Best effort: the local
// stop has already taken effect when it is called.
type StopNotifier interface {
	StopDiff(ctx context.Context, sessionID string) error
}

// transport is the owned handle to one open event stream.
type transport interface {
	Close()
}

type dialFunc func(ctx context.Context, rawURL string, opts sse.Options, h sse.Handler) (transport, error)

// Config assembles a Controller's collaborators.
type Config struct {
	// BaseURL is the API root, e.g. "https://host/api".
	BaseURL     string
	Store       *session.Store
	Credentials Credentials
	Stopper     StopNotifier
	// Guard may be nil, in which case unsaved edits never block a start.
	Guard  Guard
	Logger *slog.Logger
	// HTTPClient is used for the event stream. It must not set a Timeout.
	HTTPClient *http.Client
	// ConnectTimeout and HeartbeatTimeout bound the stream; zero means the
	// transport defaults (10s and 30s).
	ConnectTimeout   time.Duration
	HeartbeatTimeout time.Duration

	// OnUpdate observes every job snapshot change. Called from the stream's
	// dispatch goroutine; it must not block.
	OnUpdate func(Job)
	// OnCase observes each appended test case.
	OnCase func(session.TestCase)
}

// Controller drives one continuous diff job at a time for a session: it
// builds the connection, owns the transport, applies decoded events to the
// job state, and exposes Start/Rerun/Stop.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	dial   dialFunc

	// startMu serializes Start and Rerun, including the guard suspension.
	startMu sync.Mutex

	mu     sync.Mutex
	job    Job
	stream transport
}

// New creates a Controller in the Ready state.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cfg:    cfg,
		logger: logger,
		job:    Job{State: StateReady, StatusText: "Ready"},
	}
	c.dial = func(ctx context.Context, rawURL string, opts sse.Options, h sse.Handler) (transport, error) {
		return sse.Dial(ctx, rawURL, opts, h)
	}
	return c
}

// Job returns a snapshot of the current job.
func (c *Controller) Job() Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Job {
	job := c.job
	if c.job.Failure != nil {
		f := *c.job.Failure
		job.Failure = &f
	}
	return job
}

// Start begins a fresh generation job bounded by maxTests. It is a no-op
// (ErrJobActive) while a job is active and ErrNoSession without a loaded
// session. The unsaved-changes guard runs first; on abort nothing changes.
func (c *Controller) Start(ctx context.Context, maxTests int, checker string) error {
	if maxTests <= 0 {
		return fmt.Errorf("diff: max tests must be positive, got %d", maxTests)
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	if err := c.checkPreconditions(); err != nil {
		return err
	}
	if err := c.runGuard(ctx); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("max_tests", strconv.Itoa(maxTests))
	if checker != "" {
		params.Set("checker", checker)
	}
	return c.openJob(ctx, ModeStart, checker, "start", params, "Starting continuous diff...")
}

// Rerun replays existing test cases. caseIDs selects a subset; nil or empty
// means all existing cases. Rejected with ErrNoTestCases when the session has
// none.
func (c *Controller) Rerun(ctx context.Context, checker string, caseIDs []string) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if err := c.checkPreconditions(); err != nil {
		return err
	}
	if c.cfg.Store.CaseCount() == 0 {
		return ErrNoTestCases
	}
	if err := c.runGuard(ctx); err != nil {
		return err
	}

	params := url.Values{}
	if checker != "" {
		params.Set("checker", checker)
	}
	if len(caseIDs) > 0 {
		params.Set("case_ids", strings.Join(caseIDs, ","))
	}
	return c.openJob(ctx, ModeRerun, checker, "rerun", params, "Rerunning existing test cases...")
}

// Stop ends the current job: the transport is released before Stop returns,
// so no further events are applied, then the server is notified best-effort.
// Idempotent, and safe to call from inside an event callback.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	hadStream := c.closeStreamLocked()
	wasActive := c.job.State.Active()
	if wasActive {
		c.job.State = StateStopped
		c.job.StatusText = "Stopped"
	}
	job := c.snapshotLocked()
	sessionID := c.cfg.Store.SessionID()
	c.mu.Unlock()

	if wasActive {
		c.notifyUpdate(job)
	}
	if hadStream || wasActive {
		c.notifyServerStop(sessionID)
	}
}

// Close tears the controller down, stopping any active job. Owners call it
// when the session view goes away.
func (c *Controller) Close() {
	c.Stop(context.Background())
}

func (c *Controller) checkPreconditions() error {
	c.mu.Lock()
	active := c.job.State.Active()
	c.mu.Unlock()
	if active {
		return ErrJobActive
	}
	if !c.cfg.Store.Loaded() {
		return ErrNoSession
	}
	return nil
}

// runGuard resolves the unsaved-changes precondition. No job state exists or
// changes while the prompt is pending.
func (c *Controller) runGuard(ctx context.Context) error {
	if !c.cfg.Store.HasUnsaved() || c.cfg.Guard == nil {
		return nil
	}
	decision, err := c.cfg.Guard.ConfirmUnsaved(ctx)
	if err != nil {
		return fmt.Errorf("diff: unsaved-changes prompt: %w", err)
	}
	switch decision {
	case SaveAndProceed:
		if err := c.cfg.Store.Save(ctx); err != nil {
			return fmt.Errorf("diff: save before start: %w", err)
		}
		return nil
	case ProceedWithoutSaving:
		return nil
	default:
		return ErrAborted
	}
}

// openJob resets session state, installs a fresh job, and opens the stream.
func (c *Controller) openJob(ctx context.Context, mode Mode, checker, endpoint string, params url.Values, statusText string) error {
	streamURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return err
	}

	c.cfg.Store.ResetCases()

	c.mu.Lock()
	c.job = Job{
		ID:         uuid.NewString(),
		Mode:       mode,
		Checker:    checker,
		State:      StateStarting,
		StatusText: statusText,
	}
	job := c.snapshotLocked()
	c.mu.Unlock()
	c.notifyUpdate(job)

	var token string
	if c.cfg.Credentials != nil {
		token = c.cfg.Credentials.Token()
	}
	stream, err := c.dial(ctx, streamURL, sse.Options{
		Token:            token,
		ConnectTimeout:   c.cfg.ConnectTimeout,
		HeartbeatTimeout: c.cfg.HeartbeatTimeout,
		HTTPClient:       c.cfg.HTTPClient,
		Logger:           c.logger,
	}, (*streamHandler)(c))
	if err != nil {
		c.logger.Warn("diff stream connect failed", "url", streamURL, "error", err)
		c.applyTransportError(err)
		return fmt.Errorf("diff: connect: %w", err)
	}

	c.mu.Lock()
	// Stop may have raced with the dial; the stream must not outlive the job
	// that opened it.
	if !c.job.State.Active() {
		c.mu.Unlock()
		stream.Close()
		c.logger.Debug("job stopped while connecting", "job_id", job.ID)
		return nil
	}
	c.stream = stream
	c.mu.Unlock()

	c.logger.Debug("diff job started",
		"job_id", job.ID, "mode", mode, "session_id", c.cfg.Store.SessionID())
	return nil
}

func (c *Controller) buildURL(endpoint string, params url.Values) (string, error) {
	sessionID := c.cfg.Store.SessionID()
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("diff: parse base url: %w", err)
	}
	u.Path = path.Join(u.Path, "diff", sessionID, endpoint)
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// closeStreamLocked releases the owned transport. Returns whether one existed.
func (c *Controller) closeStreamLocked() bool {
	if c.stream == nil {
		return false
	}
	c.stream.Close()
	c.stream = nil
	return true
}

// notifyServerStop is fire-and-forget: a failure is logged, never surfaced
// to the state machine.
func (c *Controller) notifyServerStop(sessionID string) {
	if c.cfg.Stopper == nil || sessionID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopNotifyTimeout)
		defer cancel()
		if err := c.cfg.Stopper.StopDiff(ctx, sessionID); err != nil {
			c.logger.Warn("failed to notify server of diff stop",
				"session_id", sessionID, "error", err)
		}
	}()
}

func (c *Controller) notifyUpdate(job Job) {
	if c.cfg.OnUpdate != nil {
		c.cfg.OnUpdate(job)
	}
}

// streamHandler adapts the controller to sse.Handler. Callbacks arrive
// serially from the stream's dispatch goroutine.
type streamHandler Controller

func (h *streamHandler) OnOpen() {
	c := (*Controller)(h)
	c.mu.Lock()
	if !c.job.State.Active() {
		c.mu.Unlock()
		return
	}
	c.job.StatusText = "Connection established. Starting tests..."
	job := c.snapshotLocked()
	c.mu.Unlock()
	c.notifyUpdate(job)
}

func (h *streamHandler) OnEvent(name string, data []byte) {
	c := (*Controller)(h)
	msg, err := protocol.Decode(name, data)
	if err != nil {
		// Malformed payloads are dropped; the stream stays open.
		c.logger.Warn("dropping malformed stream event", "event", name, "error", err)
		return
	}
	c.apply(msg)
}

func (h *streamHandler) OnError(err error) {
	c := (*Controller)(h)
	c.logger.Warn("diff stream transport error", "error", err)
	c.applyTransportError(err)
}

// apply runs one decoded message through the state machine.
func (c *Controller) apply(msg protocol.Message) {
	c.mu.Lock()
	if !c.job.State.Active() {
		c.mu.Unlock()
		return
	}

	var (
		appended session.TestCase
		cleanup  bool
	)
	switch msg.Kind {
	case protocol.KindStatus:
		c.job.StatusText = msg.Status

	case protocol.KindError:
		// Informational: surfaced as status text, never terminates the job.
		c.job.StatusText = "Error: " + msg.ErrorMsg

	case protocol.KindTestResult:
		tc, err := c.cfg.Store.AppendCase(*msg.Case)
		if err != nil {
			c.mu.Unlock()
			c.logger.Warn("dropping test result", "error", err)
			return
		}
		appended = tc
		c.job.GeneratedCount++
		c.job.State = StateRunning

	case protocol.KindFailed:
		f := msg.Failure
		c.job.Failure = &f
		c.job.State = StateFailed
		c.job.StatusText = "Diff failed"
		cleanup = true

	case protocol.KindFinish:
		c.job.State = StateFinished
		c.job.StatusText = "Diff finished"
		cleanup = true

	default:
		c.mu.Unlock()
		return
	}

	if cleanup {
		c.closeStreamLocked()
	}
	job := c.snapshotLocked()
	sessionID := c.cfg.Store.SessionID()
	c.mu.Unlock()

	if msg.Kind == protocol.KindTestResult && c.cfg.OnCase != nil {
		c.cfg.OnCase(appended)
	}
	c.notifyUpdate(job)
	if cleanup {
		c.notifyServerStop(sessionID)
	}
}

// applyTransportError classifies a connection-level failure and stops the job.
func (c *Controller) applyTransportError(err error) {
	message := classifyTransportError(err)

	var statusErr *sse.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized {
		if c.cfg.Credentials != nil {
			c.cfg.Credentials.ForceLogout()
		}
	}

	c.mu.Lock()
	c.closeStreamLocked()
	if !c.job.State.Active() {
		c.mu.Unlock()
		return
	}
	c.job.State = StateStopped
	c.job.StatusText = "Error: " + message
	job := c.snapshotLocked()
	sessionID := c.cfg.Store.SessionID()
	c.mu.Unlock()

	c.notifyUpdate(job)
	c.notifyServerStop(sessionID)
}

func classifyTransportError(err error) string {
	var statusErr *sse.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusUnauthorized:
			return "Authentication failed."
		case statusErr.Code == http.StatusForbidden:
			return "Permission denied."
		case statusErr.Code >= 500:
			return "Server error."
		}
	}
	return "Connection error."
}
