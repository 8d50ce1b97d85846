package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"diffstream/internal/diff"
	"diffstream/internal/session"
)

func TestRenderCase(t *testing.T) {
	pass := session.TestCase{ID: "1", Result: json.RawMessage(`{"passed":true}`)}
	assert.Contains(t, renderCase(pass), "PASS")

	fail := session.TestCase{ID: "2", Result: json.RawMessage(`{"verdict":"WA"}`)}
	out := renderCase(fail)
	assert.Contains(t, out, "DIFF")
	assert.Contains(t, out, "WA")

	opaque := session.TestCase{ID: "3", Result: json.RawMessage(`{"input":"1 2"}`)}
	assert.Contains(t, renderCase(opaque), "unknown verdict")
}

func TestRenderJob(t *testing.T) {
	job := diff.Job{State: diff.StateRunning, StatusText: "Running tests", GeneratedCount: 3}
	out := renderJob(job)
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "Running tests")
	assert.Contains(t, out, "3 cases")
}
