package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitaria/catalog/internal/client/repositories/session"
)

func (a *App) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var err error
			if email == "" {
				if email, err = getSimpleText(a.in, "Enter email", a.errOut); err != nil {
					return err
				}
			}
			pw, err := getPassword(a.in, a.errOut)
			if err != nil {
				return err
			}
			defer wipe(pw)

			tok, err := a.api.Login(ctx, email, string(pw))
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			s := session.Session{
				ServerURL: a.cfg.ServerURL,
				Token:     tok.AccessToken,
				ExpiresAt: tok.ExpiresAt,
				UserID:    tok.User.ID,
				Email:     tok.User.Email,
				Role:      tok.User.Role,
			}
			if err := a.repos.Session.Save(ctx, s); err != nil {
				return err
			}
			a.session = &s
			a.api.SetToken(s.Token)
			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", s.Email, s.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func (a *App) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.repos.Session.Clear(cmd.Context()); err != nil {
				return err
			}
			a.session = nil
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *App) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: a.loggedIn(func(cmd *cobra.Command, _ []string) error {
			u, err := a.api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s>\nrole:   %s\navatar: %s\n", u.Name, u.Email, u.Role, orNone(u.AvatarKey))
			return nil
		}),
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
