package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"diffstream/internal/diff"
	"diffstream/internal/session"
	"diffstream/internal/watcher"
)

func newRunCommand() *cobra.Command {
	var (
		maxTests int
		checker  string
		noWatch  bool
	)
	cmd := &cobra.Command{
		Use:   "run <session-id>",
		Short: "Start a continuous diff run and stream results",
		Long: `Start a continuous diff run for a session. The server generates inputs,
runs both solutions on each, and streams every comparison back; results are
printed as they arrive until the run finishes, fails, or is interrupted.

The session's code files are materialized into the workspace directory and
watched while the run streams, so local edits are picked up for the next run.

Press Ctrl-C to stop the run; cases received so far are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return driveJob(cmd, args[0], func(ctx context.Context, c *diff.Controller, a *app) error {
				if maxTests <= 0 {
					maxTests = a.cfg.Diff.MaxTests
				}
				if checker == "" {
					checker = a.cfg.Diff.Checker
				}
				return c.Start(ctx, maxTests, checker)
			}, noWatch)
		},
	}
	cmd.Flags().IntVarP(&maxTests, "max-tests", "n", 0, "Number of tests to generate (default from config)")
	cmd.Flags().StringVarP(&checker, "checker", "c", "", "Output comparator (default from config)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not materialize or watch workspace files")
	return cmd
}

func newRerunCommand() *cobra.Command {
	var (
		checker string
		cases   []string
	)
	cmd := &cobra.Command{
		Use:   "rerun <session-id>",
		Short: "Replay the session's existing test cases",
		Long: `Replay the test cases recorded by a previous run, for example after
fixing the solution. --cases narrows the replay to specific case ids;
without it every recorded case is replayed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return driveJob(cmd, args[0], func(ctx context.Context, c *diff.Controller, a *app) error {
				if checker == "" {
					checker = a.cfg.Diff.Checker
				}
				return c.Rerun(ctx, checker, cases)
			}, false)
		},
	}
	cmd.Flags().StringVarP(&checker, "checker", "c", "", "Output comparator (default from config)")
	cmd.Flags().StringSliceVar(&cases, "cases", nil, "Case ids to replay (default all)")
	return cmd
}

// driveJob wires a session store, workspace watcher, and controller together,
// kicks the job off, and blocks until it reaches a terminal state.
func driveJob(cmd *cobra.Command, sessionID string, start func(context.Context, *diff.Controller, *app) error, noWatch bool) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	sess, err := a.client.GetSession(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	store := session.NewStore(a.client, a.logger)
	store.Load(sess)
	defer store.Close()

	if !noWatch {
		ws, err := watcher.Open(filepath.Join(a.cfg.Workspace.Dir, sessionID), store, a.logger)
		if err != nil {
			return fmt.Errorf("open workspace: %w", err)
		}
		defer ws.Close()
		fmt.Fprintln(out, styles.Muted.Render("workspace: "+ws.Dir()))
	}

	// Terminal snapshots are buffered so the stream goroutine never blocks.
	terminal := make(chan diff.Job, 1)
	controller := diff.New(diff.Config{
		BaseURL:          a.cfg.Server.URL,
		Store:            store,
		Credentials:      a.client,
		Stopper:          a.client,
		Guard:            &guardPrompt{in: cmd.InOrStdin(), out: cmd.OutOrStdout()},
		Logger:           a.logger,
		ConnectTimeout:   a.cfg.Server.ConnectTimeout,
		HeartbeatTimeout: a.cfg.Server.HeartbeatTimeout,
		OnUpdate: func(job diff.Job) {
			fmt.Fprintln(out, renderJob(job))
			if job.State.Terminal() {
				select {
				case terminal <- job:
				default:
				}
			}
		},
		OnCase: func(tc session.TestCase) {
			fmt.Fprintln(out, renderCase(tc))
		},
	})
	defer controller.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := start(ctx, controller, a); err != nil {
		if errors.Is(err, diff.ErrAborted) {
			fmt.Fprintln(out, styles.Warning.Render("Aborted."))
			return nil
		}
		return err
	}

	var job diff.Job
	select {
	case job = <-terminal:
	case <-ctx.Done():
		controller.Stop(context.Background())
		select {
		case job = <-terminal:
		default:
			job = controller.Job()
		}
	}

	// Flush edits picked up from the workspace during the run.
	if err := store.Save(context.Background()); err != nil {
		a.logger.Warn("saving session after run", "error", err)
	}

	switch job.State {
	case diff.StateFailed:
		msg := "unknown error"
		if job.Failure != nil {
			msg = job.Failure.Message
			fmt.Fprintln(out, renderFailure(job.Failure.Message, job.Failure.Detail))
		}
		return &DiffFailedError{Message: msg}
	case diff.StateFinished:
		fmt.Fprintln(out, styles.Success.Render(
			fmt.Sprintf("Finished: %d cases.", job.GeneratedCount)))
	default:
		fmt.Fprintln(out, styles.Warning.Render(
			fmt.Sprintf("Stopped after %d cases.", job.GeneratedCount)))
	}
	return nil
}
