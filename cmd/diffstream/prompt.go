package main

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"diffstream/internal/diff"
)

// promptDecision is a test hook for replacing the unsaved-changes prompt.
var promptDecision = defaultPromptDecision

// guardPrompt implements the unsaved-changes confirmation on the terminal.
type guardPrompt struct {
	in  io.Reader
	out io.Writer
}

func (g *guardPrompt) ConfirmUnsaved(ctx context.Context) (diff.Decision, error) {
	return promptDecision(ctx, g.in, g.out)
}

func defaultPromptDecision(ctx context.Context, in io.Reader, out io.Writer) (diff.Decision, error) {
	// Without a terminal there is nobody to ask; the run is aborted rather
	// than silently discarding edits.
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return diff.Abort, nil
	}

	decision := diff.SaveAndProceed
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[diff.Decision]().
				Title("You have unsaved changes.").
				Options(
					huh.NewOption("Save and start", diff.SaveAndProceed),
					huh.NewOption("Start without saving", diff.ProceedWithoutSaving),
					huh.NewOption("Abort", diff.Abort),
				).
				Value(&decision),
		),
	).WithInput(in).WithOutput(out).RunWithContext(ctx)
	if err != nil {
		return diff.Abort, err
	}
	return decision, nil
}
