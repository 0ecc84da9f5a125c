package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preview FILE",
		Short: "Get a streaming URL for a local media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			body := map[string]string{"path": path}
			var envelope previewEnvelope
			if err := ctx.postJSON("/api/preview", body, &envelope); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), envelope.URL)
			return nil
		},
	}
}
