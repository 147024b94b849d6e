package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vitaria/catalog/internal/client/client"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
)

func (a *App) healthCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the server's gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hc, err := client.NewHealthChecker(a.cfg.HealthAddr)
			if err != nil {
				return err
			}
			defer hc.Close()

			timeout := min(a.cfg.RequestTimeout, 5*time.Second)
			if !watch {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				if err := hc.Check(ctx); err != nil {
					fmt.Fprintf(a.out, "%s %s\n", a.cfg.HealthAddr, red(string(client.ModeOffline)))
					return err
				}
				fmt.Fprintf(a.out, "%s %s\n", a.cfg.HealthAddr, green(string(client.ModeOnline)))
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			hc.Watch(ctx, a.cfg.HealthCheckInterval, timeout, func(m client.Mode, err error) {
				stamp := a.now().Format("15:04:05")
				if err != nil {
					fmt.Fprintf(a.out, "%s %s (%v)\n", stamp, red(string(m)), err)
					return
				}
				fmt.Fprintf(a.out, "%s %s\n", stamp, green(string(m)))
			})
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep probing and print every online/offline change")
	return cmd
}
