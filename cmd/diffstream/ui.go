package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"diffstream/internal/diff"
	"diffstream/internal/session"
)

var (
	colorSuccess = lipgloss.Color("#2ECC71")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#7F8C8D")
	colorAccent  = lipgloss.Color("#3498DB")
)

// styles provides pre-configured lipgloss styles.
var styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Accent  lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Accent:  lipgloss.NewStyle().Foreground(colorAccent),
}

// caseVerdict pulls the display fields out of an otherwise opaque result.
type caseVerdict struct {
	Verdict string `json:"verdict"`
	Status  string `json:"status"`
	Passed  *bool  `json:"passed"`
}

// renderCase formats one arrived test case as a single line.
func renderCase(tc session.TestCase) string {
	var v caseVerdict
	_ = json.Unmarshal(tc.Result, &v)

	verdict := v.Verdict
	if verdict == "" {
		verdict = v.Status
	}

	var tag string
	switch {
	case v.Passed != nil && *v.Passed, verdict == "AC", verdict == "ok":
		tag = styles.Success.Render("PASS")
	case verdict == "":
		tag = styles.Muted.Render(" ?  ")
	default:
		tag = styles.Error.Render("DIFF")
	}
	if verdict == "" {
		verdict = "unknown verdict"
	}
	return fmt.Sprintf("%s  case %s  %s", tag, styles.Accent.Render(tc.ID), verdict)
}

// renderJob formats a job snapshot for the status line.
func renderJob(job diff.Job) string {
	var state string
	switch job.State {
	case diff.StateFinished:
		state = styles.Success.Render(string(job.State))
	case diff.StateFailed:
		state = styles.Error.Render(string(job.State))
	case diff.StateStopped:
		state = styles.Warning.Render(string(job.State))
	default:
		state = styles.Accent.Render(string(job.State))
	}
	return fmt.Sprintf("[%s] %s (%d cases)", state, job.StatusText, job.GeneratedCount)
}

// renderFailure formats the server's failure explanation.
func renderFailure(f string, detail string) string {
	out := styles.Error.Render("Diff failed: " + f)
	if detail != "" {
		out += "\n" + styles.Muted.Render(detail)
	}
	return out
}
