package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reframe/internal/queue"
)

var statusTitle = cases.Title(language.English)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List submitted jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var envelope jobListEnvelope
			if err := ctx.getJSON("/api/jobs", &envelope); err != nil {
				return err
			}

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(envelope.Jobs)
			}

			if len(envelope.Jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobsTable(envelope.Jobs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit raw JSON instead of a table")
	return cmd
}

func renderJobsTable(jobs []*queue.Record) string {
	headers := []string{"ID", "Status", "Format", "Progress", "Input"}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			statusTitle.String(string(job.Status)),
			job.Format,
			fmt.Sprintf("%.0f%%", job.Percent),
			filepath.Base(job.InputPath),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
}
