package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vitaria/catalog/internal/api"
)

func (a *App) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts (admin only)",
	}

	var req api.CreateUserRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		Args:  cobra.NoArgs,
		RunE: a.loggedIn(func(cmd *cobra.Command, _ []string) error {
			pw, err := getPassword(a.in, a.errOut)
			if err != nil {
				return err
			}
			defer wipe(pw)
			req.Password = string(pw)

			u, err := a.api.CreateUser(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created %s user %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		}),
	}
	create.Flags().StringVar(&req.Email, "email", "", "login email")
	create.Flags().StringVar(&req.Name, "name", "", "display name")
	create.Flags().StringVar(&req.Role, "role", "editor", "admin or editor")
	_ = create.MarkFlagRequired("email")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a staff account and its avatar",
		Args:  cobra.ExactArgs(1),
		RunE: a.loggedIn(func(cmd *cobra.Command, args []string) error {
			if err := a.api.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted user %s\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(create, remove)
	return cmd
}

func (a *App) activityCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent catalog activity",
		Args:  cobra.NoArgs,
		RunE: a.loggedIn(func(cmd *cobra.Command, _ []string) error {
			entries, err := a.api.Activity(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSEVERITY\tACTOR\tACTION\tENTITY\tDETAIL")
			for _, e := range entries {
				entity := e.Entity
				if e.EntityTitle != "" {
					entity += " " + e.EntityTitle
				} else if e.EntityID != "" {
					entity += " " + e.EntityID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Severity, e.ActorEmail, e.Action, entity, e.Detail)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}
