package diff

import "diffstream/internal/protocol"

// State is the lifecycle state of a diff job.
type State string

const (
	// StateReady means no job has run yet.
	StateReady State = "ready"
	// StateStarting means the connection is being established; no results yet.
	StateStarting State = "starting"
	// StateRunning means results are arriving.
	StateRunning State = "running"
	// StateFinished means the server completed the job normally.
	StateFinished State = "finished"
	// StateFailed means the server reported an unrecoverable failure.
	StateFailed State = "failed"
	// StateStopped means the job ended locally: explicit stop or transport error.
	StateStopped State = "stopped"
)

// Active reports whether a job holds the connection slot.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning
}

// Terminal reports whether the job instance is over. A new Start or Rerun
// creates a fresh job from any terminal state.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateFailed || s == StateStopped
}

// Mode selects how a job is created.
type Mode string

const (
	// ModeStart generates fresh tests, bounded by a maximum count.
	ModeStart Mode = "start"
	// ModeRerun replays the session's existing cases.
	ModeRerun Mode = "rerun"
)

// Job is a snapshot of one diff job. Failure is non-nil exactly when State
// is StateFailed.
type Job struct {
	ID             string
	Mode           Mode
	Checker        string
	State          State
	StatusText     string
	GeneratedCount int
	Failure        *protocol.Failure
}
