package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"forgesync/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, connectivity, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				fmt.Fprintln(stdout, renderSectionHeader("Daemon", colorize))
				runningKind := statusOK
				if !resp.Running {
					runningKind = statusWarn
				}
				fmt.Fprintln(stdout, renderStatusLine("Running", runningKind, fmt.Sprintf("pid %d", resp.PID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Lock file", statusInfo, resp.LockPath, colorize))
				fmt.Fprintln(stdout)

				fmt.Fprintln(stdout, renderSectionHeader("Connectivity", colorize))
				modeKind := statusOK
				modeDetail := titleCase(resp.Mode)
				if resp.Mode != "online" {
					modeKind = statusWarn
					if resp.AutoOffline {
						modeDetail += " (automatic)"
					} else {
						modeDetail += " (user selected)"
					}
				}
				fmt.Fprintln(stdout, renderStatusLine("Mode", modeKind, modeDetail, colorize))

				reachKind := statusOK
				reachDetail := "backend reachable"
				if !resp.Reachable {
					reachKind = statusError
					reachDetail = "backend unreachable"
				}
				fmt.Fprintln(stdout, renderStatusLine("Backend", reachKind, reachDetail, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Event channel", channelKind(resp.ChannelState), channelDetail(resp), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Link monitor", statusInfo, yesNo(resp.LinkMonitor), colorize))
				fmt.Fprintln(stdout)

				fmt.Fprintln(stdout, renderSectionHeader("Offline Queue", colorize))
				storageKind := statusOK
				storageDetail := resp.QueueDBPath
				if !resp.StorageAvailable {
					storageKind = statusError
					storageDetail = resp.StorageDetail
				}
				fmt.Fprintln(stdout, renderStatusLine("Storage", storageKind, storageDetail, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Queued jobs", statusInfo, fmt.Sprintf("%d", resp.QueueCount), colorize))
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the forgesync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Stop request sent")
				}
				return nil
			})
		},
	}
}

func channelKind(state string) statusKind {
	switch state {
	case "connected":
		return statusOK
	case "failed", "missing-token", "error":
		return statusError
	case "disconnected":
		return statusInfo
	default:
		return statusWarn
	}
}

func channelDetail(resp *ipc.StatusResponse) string {
	detail := titleCase(strings.NewReplacer("_", " ", "-", " ").Replace(resp.ChannelState))
	if resp.ChannelRetryAttempt > 0 {
		detail = fmt.Sprintf("%s (attempt %d)", detail, resp.ChannelRetryAttempt)
	}
	if resp.ChannelLastError != "" {
		detail = fmt.Sprintf("%s: %s", detail, resp.ChannelLastError)
	}
	return detail
}

func titleCase(value string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(value))
}
