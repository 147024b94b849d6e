package cli

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/vitaria/catalog/internal/client/editor"
	"github.com/vitaria/catalog/internal/client/upload"
	"github.com/vitaria/catalog/internal/media"
)

func (a *App) avatarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avatar",
		Short: "Manage your avatar",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <file>",
		Short: "Upload a new avatar and save it to your profile",
		Args:  cobra.ExactArgs(1),
		RunE: a.loggedIn(func(cmd *cobra.Command, args []string) error {
			file, err := upload.OpenDisk(args[0])
			if err != nil {
				return err
			}
			p := newProgress(a.errOut, a.tty, "avatar "+filepath.Base(args[0]))
			u, err := editor.SetAvatar(cmd.Context(), a.api, a.exec, a.repos.Journal, a.log, file, p.Report)
			if err != nil {
				return fmt.Errorf("avatar upload failed: %s", media.Message(err))
			}
			fmt.Fprintf(a.out, "Avatar set to %s\n", u.AvatarKey)
			return nil
		}),
	})
	return cmd
}

func (a *App) urlsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "urls <key>...",
		Short: "Print signed view URLs for object keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.loggedIn(func(cmd *cobra.Command, args []string) error {
			resp, err := a.api.ViewURLs(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, k := range media.CompactKeys(args...) {
				u, ok := resp.URLs[k]
				if !ok {
					fmt.Fprintf(a.errOut, "%s: %s\n", k, red("not signed"))
					continue
				}
				fmt.Fprintf(a.out, "%s\t%s\n", k, u)
			}
			if !resp.ExpiresAt.IsZero() {
				fmt.Fprintf(a.errOut, "valid until %s\n", resp.ExpiresAt.Local().Format("15:04:05"))
			}
			return nil
		}),
	}
}

func (a *App) discardCmd() *cobra.Command {
	var pending bool
	cmd := &cobra.Command{
		Use:   "discard [key]...",
		Short: "Delete uploaded objects that no saved row references",
		Long: `Deletes the given keys, or with --pending every key this client uploaded
and never saved. Keys still referenced by a saved product or profile are
skipped by the server.`,
		RunE: a.loggedIn(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			keys := slices.Clone(args)
			if pending {
				entries, err := a.repos.Journal.List(ctx, "")
				if err != nil {
					return err
				}
				for _, e := range entries {
					keys = append(keys, e.Key)
				}
			}
			keys = media.CompactKeys(keys...)
			if len(keys) == 0 {
				fmt.Fprintln(a.out, "Nothing to discard")
				return nil
			}

			resp, err := a.api.Discard(ctx, keys)
			if err != nil {
				return err
			}
			if err := a.repos.Journal.Forget(ctx, append(resp.Deleted, resp.Skipped...)...); err != nil {
				return err
			}
			for _, k := range resp.Skipped {
				fmt.Fprintf(a.errOut, "kept %s: still referenced\n", k)
			}
			fmt.Fprintf(a.out, "Deleted %d, skipped %d\n", len(resp.Deleted), len(resp.Skipped))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "also discard every unsaved upload recorded locally")
	return cmd
}
