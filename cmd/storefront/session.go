package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"Storefront/internal/auth"
)

type credentials struct {
	email    string
	password string
}

func (cr *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cr.email, "email", "", "account email")
	cmd.Flags().StringVar(&cr.password, "password", "", "account password (default $STOREFRONT_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
}

func (cr *credentials) secret() (string, error) {
	if cr.password != "" {
		return cr.password, nil
	}
	if v := os.Getenv("STOREFRONT_PASSWORD"); v != "" {
		return v, nil
	}
	return "", errors.New("password required: pass --password or set STOREFRONT_PASSWORD")
}

func newLoginCmd(c *cli) *cobra.Command {
	var cr credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := cr.secret()
			if err != nil {
				return err
			}
			sess, err := c.app.Login(cmd.Context(), cr.email, pw)
			if err != nil {
				return err
			}
			return printSession(c, cmd, sess)
		},
	}
	cr.bind(cmd)
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var cr credentials
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := cr.secret()
			if err != nil {
				return err
			}
			if err := c.app.Register(cmd.Context(), cr.email, pw); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. Run login to sign in.\n", cr.email)
			return err
		},
	}
	cr.bind(cmd)
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Logout(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return err
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := c.app.Session(cmd.Context())
			if errors.Is(err, auth.ErrNoSession) || errors.Is(err, auth.ErrSessionExpired) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Not logged in; orders are placed as a guest.")
				return err
			}
			if err != nil {
				return err
			}
			return printSession(c, cmd, sess)
		},
	}
}

func printSession(c *cli, cmd *cobra.Command, sess auth.Session) error {
	w := cmd.OutOrStdout()
	if c.jsonOut {
		return c.printJSON(w, map[string]any{
			"user_id":    sess.Claims.UserID,
			"email":      sess.Claims.Email,
			"role":       sess.Claims.Role,
			"expires_at": sess.ExpiresAt(),
		})
	}

	fmt.Fprintf(w, "Logged in as %s (%s)", sess.Claims.Email, sess.Claims.UserID)
	if exp := sess.ExpiresAt(); !exp.IsZero() {
		fmt.Fprintf(w, " until %s", exp.Local().Format(time.RFC1123))
	}
	_, err := fmt.Fprintln(w)
	return err
}
