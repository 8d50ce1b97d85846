package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"diffstream/internal/api"
)

func newLoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Authenticate and store the access token",
		Long: `Authenticate against the server and store the returned access token in
~/.config/diffstream/config.yaml. The password is read from the terminal,
or from stdin when piped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return loginCommandE(cmd, args[0])
		},
	}
	return cmd
}

func loginCommandE(cmd *cobra.Command, username string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	user, err := a.client.Login(cmd.Context(), api.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if err := a.loader.SaveToken(a.client.Token()); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(),
		styles.Success.Render(fmt.Sprintf("Logged in as %s.", user.Username)))
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
