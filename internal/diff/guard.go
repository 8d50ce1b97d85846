package diff

import "context"

// Decision is the outcome of the unsaved-changes confirmation.
type Decision int

const (
	// Abort cancels the start or rerun with no side effects.
	Abort Decision = iota
	// SaveAndProceed saves the session first, then starts.
	SaveAndProceed
	// ProceedWithoutSaving starts immediately, leaving edits unsaved.
	ProceedWithoutSaving
)

// Guard is consulted before starting or rerunning a job while the session has
// unsaved edits. The call suspends the operation until the user answers; the
// state machine performs no transitions while it is pending.
type Guard interface {
	ConfirmUnsaved(ctx context.Context) (Decision, error)
}

// GuardFunc adapts a function to the Guard interface.
type GuardFunc func(ctx context.Context) (Decision, error)

func (f GuardFunc) ConfirmUnsaved(ctx context.Context) (Decision, error) {
	return f(ctx)
}
