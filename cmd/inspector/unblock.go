package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/user/pagestate-service/internal/app"
)

func newUnblockCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "unblock [hostname]",
		Short: "Lift a hostname block early (default: this worker)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := app.OpenStores(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			defer stores.Close()
			ban := stores.BanProtection(e.cfg, e.log, e.metrics)

			host := ban.Hostname()
			if len(args) == 1 {
				host = args[0]
			}
			removed, err := ban.UnblockHostname(cmd.Context(), host)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not blocked\n", host)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s unblocked\n", host)
			return nil
		},
	}
}
