package main

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reframe/internal/ffmpeg"
	"reframe/internal/transcode"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		output       string
		format       string
		width        int
		height       int
		fps          int
		keepOriginal bool
		wait         bool
	)

	cmd := &cobra.Command{
		Use:   "convert INPUT",
		Short: "Submit a conversion job to the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}

			req := ffmpeg.Request{
				InputPath:    input,
				Format:       strings.ToLower(strings.TrimSpace(format)),
				FPS:          fps,
				KeepOriginal: keepOriginal,
			}
			if width > 0 && height > 0 {
				req.Resolution = &ffmpeg.Resolution{Width: width, Height: height}
			}

			req.OutputPath, err = resolveOutput(ctx, input, output, req.Format)
			if err != nil {
				return err
			}

			var submitted jobEnvelope
			if err := ctx.postJSON("/api/jobs", req, &submitted); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s submitted (%s -> %s)\n",
				submitted.Job.ID, req.InputPath, req.OutputPath)

			if !wait {
				return nil
			}
			return followJob(cmd, ctx, submitted.Job.ID)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (defaults to the configured output directory)")
	cmd.Flags().StringVarP(&format, "format", "f", "mp4", "Target container: "+strings.Join(ffmpeg.Formats(), ", "))
	cmd.Flags().IntVar(&width, "width", 0, "Target width in pixels (requires --height)")
	cmd.Flags().IntVar(&height, "height", 0, "Target height in pixels (requires --width)")
	cmd.Flags().IntVar(&fps, "fps", 0, "Target frame rate")
	cmd.Flags().BoolVar(&keepOriginal, "keep-original", false, "Keep the source resolution and frame rate")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Stay attached and report progress until the job finishes")

	return cmd
}

// resolveOutput defaults the output path to the configured output directory
// with the input's base name and the target extension.
func resolveOutput(ctx *commandContext, input, output, format string) (string, error) {
	if strings.TrimSpace(output) != "" {
		return filepath.Abs(output)
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(cfg.Paths.OutputDir, base+"."+format), nil
}

// followJob polls the daemon until the job reaches a terminal state.
func followJob(cmd *cobra.Command, ctx *commandContext, id string) error {
	out := cmd.OutOrStdout()
	for {
		var envelope jobEnvelope
		if err := ctx.getJSON("/api/jobs/"+url.PathEscape(id), &envelope); err != nil {
			return err
		}
		job := envelope.Job

		if job.Status.Terminal() {
			switch job.Status {
			case transcode.StatusSucceeded:
				fmt.Fprintf(out, "done: %s\n", job.OutputPath)
				return nil
			case transcode.StatusCancelled:
				fmt.Fprintln(out, "cancelled")
				return nil
			default:
				return fmt.Errorf("job failed: %s", job.FailureReason)
			}
		}

		fmt.Fprintf(out, "%5.1f%%  %6.1f fps  remaining %s\n",
			job.Percent, job.CurrentFPS, job.TimeRemaining)
		time.Sleep(time.Second)
	}
}
