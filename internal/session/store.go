package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"diffstream/internal/protocol"
)

const defaultAutosaveDelay = 10 * time.Second

// ErrNotLoaded is returned for operations that need a loaded session.
var ErrNotLoaded = errors.New("session: not loaded")

// Saver persists a session. The API client implements it.
type Saver interface {
	UpdateSession(ctx context.Context, id string, sess *Session) error
}

// Store owns the loaded session document and its unsaved-changes state.
//
// Test case mutation methods (ResetCases, AppendCase) are intended to be
// called from a single dispatch context; the internal mutex exists for
// readers on other goroutines, not to support concurrent writers.
type Store struct {
	logger        *slog.Logger
	saver         Saver
	autosaveDelay time.Duration

	mu        sync.Mutex
	sess      *Session
	unsaved   bool
	saveTimer *time.Timer
}

// NewStore creates a store. saver may be nil, in which case Save is a no-op
// beyond clearing the unsaved flag (used in tests).
func NewStore(saver Saver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:        logger,
		saver:         saver,
		autosaveDelay: defaultAutosaveDelay,
	}
}

// SetAutosaveDelay overrides the delay between MarkUnsaved and the background
// save attempt.
func (st *Store) SetAutosaveDelay(d time.Duration) {
	st.mu.Lock()
	st.autosaveDelay = d
	st.mu.Unlock()
}

// Load installs a session document, filling defaults. Any pending autosave
// for a previous session is dropped.
func (st *Store) Load(sess *Session) {
	sess.FillDefaults()
	st.mu.Lock()
	st.stopTimerLocked()
	st.sess = sess
	st.unsaved = false
	st.mu.Unlock()
}

// Loaded reports whether a session is present.
func (st *Store) Loaded() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sess != nil
}

// SessionID returns the loaded session's id, empty if none.
func (st *Store) SessionID() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.sess == nil {
		return ""
	}
	return st.sess.ID
}

// Session returns the loaded document. Callers must not retain the pointer
// across job boundaries.
func (st *Store) Session() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sess
}

// HasUnsaved reports whether there are unsaved edits.
func (st *Store) HasUnsaved() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.unsaved
}

// MarkUnsaved flags the session dirty and (re)schedules the autosave.
func (st *Store) MarkUnsaved() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.sess == nil {
		return
	}
	st.unsaved = true
	st.stopTimerLocked()
	st.saveTimer = time.AfterFunc(st.autosaveDelay, func() {
		if err := st.Save(context.Background()); err != nil {
			st.logger.Warn("autosave failed", "error", err)
		}
	})
}

// Save persists the session if it has unsaved edits. No-op otherwise.
func (st *Store) Save(ctx context.Context) error {
	st.mu.Lock()
	if st.sess == nil || !st.unsaved {
		st.mu.Unlock()
		return nil
	}
	st.stopTimerLocked()
	sess := st.sess
	saver := st.saver
	st.mu.Unlock()

	if saver != nil {
		if err := saver.UpdateSession(ctx, sess.ID, sess); err != nil {
			return err
		}
	}

	st.mu.Lock()
	st.unsaved = false
	st.mu.Unlock()
	st.logger.Debug("session saved", "session_id", sess.ID)
	return nil
}

// UpdateCode replaces the content of a code slot and marks the session dirty
// if the content actually changed.
func (st *Store) UpdateCode(slot Slot, content string) error {
	st.mu.Lock()
	if st.sess == nil {
		st.mu.Unlock()
		return ErrNotLoaded
	}
	code := st.sess.Code(slot)
	if code == nil || code.Content == content {
		st.mu.Unlock()
		return nil
	}
	code.Content = content
	st.mu.Unlock()
	st.MarkUnsaved()
	return nil
}

// AppendDescription appends text to the session description (OCR results).
func (st *Store) AppendDescription(text string) error {
	st.mu.Lock()
	if st.sess == nil {
		st.mu.Unlock()
		return ErrNotLoaded
	}
	if st.sess.Description != "" {
		st.sess.Description += "\n\n"
	}
	st.sess.Description += text
	st.mu.Unlock()
	st.MarkUnsaved()
	return nil
}

// ResetCases clears the test case sequence at the start of a job.
func (st *Store) ResetCases() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.sess != nil {
		st.sess.TestCases = st.sess.TestCases[:0]
	}
}

// AppendCase appends one decoded result, applying the identifier policy, and
// returns the stored case. The sequence is append-only within a job.
func (st *Store) AppendCase(tc protocol.TestCase) (TestCase, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.sess == nil {
		return TestCase{}, ErrNotLoaded
	}
	stored := fromProtocolCase(tc, len(st.sess.TestCases)+1)
	st.sess.TestCases = append(st.sess.TestCases, stored)
	return stored, nil
}

// CaseCount returns the current length of the test case sequence.
func (st *Store) CaseCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.sess == nil {
		return 0
	}
	return len(st.sess.TestCases)
}

// CaseIDs returns the ids of all stored cases, in order.
func (st *Store) CaseIDs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.sess == nil {
		return nil
	}
	ids := make([]string, 0, len(st.sess.TestCases))
	for _, tc := range st.sess.TestCases {
		ids = append(ids, tc.ID)
	}
	return ids
}

// Close drops any pending autosave.
func (st *Store) Close() {
	st.mu.Lock()
	st.stopTimerLocked()
	st.mu.Unlock()
}

func (st *Store) stopTimerLocked() {
	if st.saveTimer != nil {
		st.saveTimer.Stop()
		st.saveTimer = nil
	}
}
