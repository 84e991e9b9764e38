package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"forgesync/internal/ipc"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var status string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent backend jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Jobs(limit, status)
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					rows = append(rows, []string{
						job.JobID,
						job.Type,
						job.Status,
						job.CreatedAt,
						job.Error,
					})
				}
				table := renderTable(
					[]string{"Job ID", "Type", "Status", "Created", "Error"},
					rows,
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by job status")
	return cmd
}
