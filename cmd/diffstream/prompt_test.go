package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diffstream/internal/diff"
)

func TestPromptDecision_NonTerminalAborts(t *testing.T) {
	// A piped stdin is not a terminal, so the prompt cannot be shown and the
	// safe answer is to abort.
	var out bytes.Buffer
	decision, err := defaultPromptDecision(context.Background(), bytes.NewReader(nil), &out)
	require.NoError(t, err)
	assert.Equal(t, diff.Abort, decision)
}

func TestGuardPromptUsesHook(t *testing.T) {
	orig := promptDecision
	defer func() { promptDecision = orig }()

	promptDecision = func(ctx context.Context, in io.Reader, out io.Writer) (diff.Decision, error) {
		return diff.ProceedWithoutSaving, nil
	}

	g := &guardPrompt{in: bytes.NewReader(nil), out: &bytes.Buffer{}}
	decision, err := g.ConfirmUnsaved(context.Background())
	require.NoError(t, err)
	assert.Equal(t, diff.ProceedWithoutSaving, decision)
}
