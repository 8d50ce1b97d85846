package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes.
const (
	ExitSuccess    = 0 // Run completed (or finished cleanly)
	ExitDiffFailed = 1 // The diff job reported a failure
	ExitError      = 2 // Configuration or runtime error
)

// DiffFailedError indicates that the stream ran but the job ended in the
// failed state.
type DiffFailedError struct {
	Message string
}

func (e *DiffFailedError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var diffErr *DiffFailedError
		if errors.As(err, &diffErr) {
			os.Exit(ExitDiffFailed)
		}
		os.Exit(ExitError)
	}
}
