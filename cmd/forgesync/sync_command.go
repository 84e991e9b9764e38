package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"forgesync/internal/ipc"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued jobs against the backend now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SyncNow()
				if err != nil {
					return err
				}
				if resp.Synced == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to sync")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synced %d queued jobs\n", resp.Synced)
				return nil
			})
		},
	}
}
