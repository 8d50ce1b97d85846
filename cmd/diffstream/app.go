package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"diffstream/internal/api"
	"diffstream/internal/config"
)

// logLevel is shared with the root command's --debug flag.
var logLevel = func() *slog.LevelVar {
	v := new(slog.LevelVar)
	v.Set(slog.LevelWarn)
	return v
}()

// app bundles the collaborators every command needs: the effective config,
// the loader that persists it, and an authenticated API client.
type app struct {
	cfg    *config.Config
	loader *config.Loader
	client *api.Client
	logger *slog.Logger
}

func newApp(cmd *cobra.Command) (*app, error) {
	logger := newLogger()
	loader := config.NewLoader(logger)

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		cfg.Server.URL = server
	}
	if logLevel.Level() != slog.LevelDebug {
		logLevel.Set(parseLevel(cfg.Log.Level))
	}

	client := api.NewClient(cfg.Server.URL, logger)
	client.SetToken(cfg.Auth.Token)
	client.SetUnauthorizedHandler(func() {
		fmt.Fprintln(cmd.ErrOrStderr(),
			styles.Error.Render("Session expired, run `diffstream login` again."))
	})

	return &app{
		cfg:    cfg,
		loader: loader,
		client: client,
		logger: logger,
	}, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
