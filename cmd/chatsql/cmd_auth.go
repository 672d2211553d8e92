package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/felixgeelhaar/chatsql/internal/auth"
	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
)

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("username", "u", "", "Username")
	cmd.Flags().StringP("password", "p", "", "Password (prompted when omitted)")
}

// credentials reads the flags and prompts for what is missing on a terminal
func credentials(cmd *cobra.Command) (domain.Credentials, error) {
	var creds domain.Credentials
	creds.Username, _ = cmd.Flags().GetString("username")
	creds.Password, _ = cmd.Flags().GetString("password")
	if cmd.Flags().Lookup("email") != nil {
		creds.Email, _ = cmd.Flags().GetString("email")
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return creds, nil
	}
	if creds.Username == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Username: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil {
			return creds, fmt.Errorf("read username: %w", err)
		}
		creds.Username = strings.TrimSpace(line)
	}
	if creds.Password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return creds, fmt.Errorf("read password: %w", err)
		}
		creds.Password = string(pw)
	}
	return creds, nil
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return signIn(cmd, false)
		},
	}
	addCredentialFlags(cmd)
	return cmd
}

func signupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return signIn(cmd, true)
		},
	}
	addCredentialFlags(cmd)
	cmd.Flags().String("email", "", "Email address")
	return cmd
}

func signIn(cmd *cobra.Command, signup bool) error {
	a := appFrom(cmd)
	if a.client.Demo() {
		return errors.New("accounts are not available in demo mode")
	}
	creds, err := credentials(cmd)
	if err != nil {
		return err
	}

	call := a.authSvc.Login
	if signup {
		call = a.authSvc.Signup
	}
	route, err := call(cmd.Context(), creds)
	if err != nil {
		var formErr *auth.FormError
		if errors.As(err, &formErr) {
			return errors.New(formErr.Message)
		}
		return err
	}

	printIdentity(cmd, a.authCtx.State())
	if route == auth.RouteInstructor {
		fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("Run `chatsql instructor` to open the dashboard."))
	}
	return nil
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			a.restoreSession(cmd.Context())
			if err := a.authSvc.Logout(cmd.Context()); err != nil {
				// The local session is gone either way.
				a.logger.Warn("logout", "error", err)
			}
			printIdentity(cmd, a.authCtx.State())
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who the stored session belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printIdentity(cmd, appFrom(cmd).restoreSession(cmd.Context()))
			return nil
		},
	}
}

func printIdentity(cmd *cobra.Command, state domain.AuthState) {
	ctx := cmd.Context()
	if !state.IsAuthenticated {
		fmt.Fprintln(cmd.OutOrStdout(), i18n.T(ctx, i18n.MsgNotLoggedIn))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), i18n.Td(ctx, i18n.MsgLoggedInAs, map[string]any{
		"Username": state.Username,
		"Role":     string(state.Role),
	}))
}
