package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"reframe/internal/daemon"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status daemon.Status
			if err := ctx.getJSON("/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(status)
			}

			state := "running"
			if !status.Running {
				state = "stopped"
			}
			if supportsColor() {
				state = colorizeState(state, status.Running)
			}
			fmt.Fprintf(out, "daemon:       %s (pid %d)\n", state, status.PID)
			fmt.Fprintf(out, "active jobs:  %d\n", status.ActiveJobs)
			fmt.Fprintf(out, "job store:    %s\n", status.JobDBPath)
			fmt.Fprintf(out, "lock file:    %s\n", status.LockFilePath)
			if status.PreviewAddr != "" {
				fmt.Fprintf(out, "preview:      http://%s\n", status.PreviewAddr)
			}
			for _, dep := range status.Dependencies {
				mark := "ok"
				if !dep.Available {
					mark = "missing"
					if dep.Detail != "" {
						mark += " (" + dep.Detail + ")"
					}
				}
				fmt.Fprintf(out, "%-13s %s\n", strings.ToLower(dep.Name)+":", mark)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit raw JSON instead of text")
	return cmd
}

func supportsColor() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorizeState(state string, healthy bool) string {
	code := "31"
	if healthy {
		code = "32"
	}
	return "\x1b[" + code + "m" + state + "\x1b[0m"
}
