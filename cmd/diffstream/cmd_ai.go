package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"diffstream/internal/ai"
	"diffstream/internal/session"
	"diffstream/internal/watcher"
)

func newAICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "AI helpers for filling in session code",
	}
	cmd.AddCommand(newAIGenerateCommand())
	cmd.AddCommand(newAIOCRCommand())
	return cmd
}

func newAIGenerateCommand() *cobra.Command {
	var slotName string
	cmd := &cobra.Command{
		Use:   "generate <session-id>",
		Short: "Generate the reference solution or input generator",
		Long: `Stream AI-generated code into one of the session's code slots. The
content is written to the session only once generation completes, and is
saved to the server immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return aiGenerateCommandE(cmd, args[0], session.Slot(slotName))
		},
	}
	cmd.Flags().StringVarP(&slotName, "slot", "s", string(session.SlotGen),
		"Code slot to generate: standard or generator")
	return cmd
}

func aiGenerateCommandE(cmd *cobra.Command, sessionID string, slot session.Slot) error {
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

	gen := ai.New(ai.Config{
		BaseURL:     a.cfg.Server.URL,
		Store:       store,
		Credentials: a.client,
		Logger:      a.logger,
	})
	defer gen.Close()

	fmt.Fprintln(out, styles.Muted.Render(fmt.Sprintf("Generating %s code...", slot)))
	var bytesSeen int
	err = gen.Generate(cmd.Context(), slot, func(total string) {
		// One dot per chunk keeps long generations visibly alive.
		if len(total) > bytesSeen {
			fmt.Fprint(out, ".")
			bytesSeen = len(total)
		}
	})
	fmt.Fprintln(out)
	if err != nil {
		return err
	}

	if err := store.Save(context.Background()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	// If the session has a materialized workspace, rewrite its copy too.
	wsDir := filepath.Join(a.cfg.Workspace.Dir, sessionID)
	if _, statErr := os.Stat(wsDir); statErr == nil {
		ws, wsErr := watcher.Open(wsDir, store, a.logger)
		if wsErr != nil {
			a.logger.Warn("refreshing workspace", "dir", wsDir, "error", wsErr)
		} else {
			if err := ws.Refresh(); err != nil {
				a.logger.Warn("refreshing workspace", "dir", wsDir, "error", err)
			}
			ws.Close()
		}
	}

	fmt.Fprintln(out, styles.Success.Render(
		fmt.Sprintf("Generated %d bytes into the %s slot.", bytesSeen, slot)))
	return nil
}

func newAIOCRCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ocr <session-id> <image>",
		Short: "Extract a problem statement from an image",
		Long: `Upload an image of a problem statement. The recognized text is appended
to the session description and saved.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return aiOCRCommandE(cmd, args[0], args[1])
		},
	}
}

func aiOCRCommandE(cmd *cobra.Command, sessionID, imagePath string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer f.Close()

	text, err := a.client.OCR(cmd.Context(), filepath.Base(imagePath), f)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	if text == "" {
		fmt.Fprintln(cmd.OutOrStdout(), styles.Warning.Render("No text recognized."))
		return nil
	}

	sess, err := a.client.GetSession(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	store := session.NewStore(a.client, a.logger)
	store.Load(sess)
	defer store.Close()

	if err := store.AppendDescription(text); err != nil {
		return err
	}
	if err := store.Save(cmd.Context()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), styles.Success.Render("Description updated:"))
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
