package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var envelope jobEnvelope
			if err := ctx.postJSON("/api/jobs/"+url.PathEscape(args[0])+"/cancel", nil, &envelope); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s: %s\n", envelope.Job.ID, envelope.Job.Status)
			return nil
		},
	}
}
