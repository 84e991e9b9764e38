package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"forgesync/internal/ipc"
)

func newModeCommand(ctx *commandContext) *cobra.Command {
	modeCmd := &cobra.Command{
		Use:   "mode",
		Short: "Switch between online and offline operation",
	}

	modeCmd.AddCommand(newModeSetCommand(ctx, "online", "Resume direct backend submission"))
	modeCmd.AddCommand(newModeSetCommand(ctx, "offline", "Queue all submissions locally"))

	return modeCmd
}

func newModeSetCommand(ctx *commandContext, mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   mode,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetMode(mode)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mode set to %s\n", resp.Mode)
				return nil
			})
		},
	}
}
