package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"reframe/internal/media/ffprobe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe FILE",
		Short: "Inspect a media file's container and streams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			var result ffprobe.Result
			if err := ctx.getJSON("/api/probe?path="+url.QueryEscape(path), &result); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(result)
			}

			fmt.Fprintf(out, "container: %s\n", result.Format.FormatName)
			fmt.Fprintf(out, "duration:  %.1fs\n", result.DurationSeconds())

			headers := []string{"Stream", "Type", "Codec", "Detail"}
			rows := make([][]string, 0, len(result.Streams))
			for _, stream := range result.Streams {
				rows = append(rows, []string{
					strconv.Itoa(stream.Index),
					stream.CodecType,
					stream.CodecName,
					streamDetail(stream),
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit raw JSON instead of a table")
	return cmd
}

func streamDetail(stream ffprobe.Stream) string {
	if stream.CodecType != "video" {
		return ""
	}
	detail := fmt.Sprintf("%dx%d", stream.Width, stream.Height)
	if stream.RFrameRate != "" {
		detail += " @ " + stream.RFrameRate
	}
	return detail
}
