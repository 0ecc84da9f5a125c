package ffmpeg

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"reframe/internal/services"
)

var commandContext = exec.CommandContext

// Notification is one raw progress report from the encoder. Percent is
// negative when the encoder did not report enough to derive one. Timemark
// is the elapsed transcode position in HH:MM:SS form, empty when absent.
type Notification struct {
	Percent  float64
	Timemark string
	FPS      float64
}

// Client defines encoder invocation behaviour.
type Client interface {
	Transcode(ctx context.Context, req Request, total time.Duration, onProgress func(Notification)) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if strings.TrimSpace(binary) != "" {
			c.binary = binary
		}
	}
}

// WithPolicy overrides the baseline quality policy.
func WithPolicy(policy Policy) Option {
	return func(c *CLI) {
		c.policy = policy
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary string
	policy Policy
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg", policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Policy returns the quality policy the client applies.
func (c *CLI) Policy() Policy {
	return c.policy
}

// Transcode launches ffmpeg and streams raw progress notifications to
// onProgress until the process exits. total is the probed duration of the
// input, used to derive percentages; zero means unknown. The partially
// written output file is left in place on failure or cancellation.
func (c *CLI) Transcode(ctx context.Context, req Request, total time.Duration, onProgress func(Notification)) error {
	args, err := BuildArgs(req, c.policy)
	if err != nil {
		return err
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrSpawn, "ffmpeg", "transcode", "stdout pipe", err)
	}
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrSpawn, "ffmpeg", "transcode", "start "+c.binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	block := progressBlock{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		block.set(key, value)
		if key != "progress" {
			continue
		}
		if onProgress != nil {
			onProgress(block.notification(total))
		}
		block = progressBlock{}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrEncoding, "ffmpeg", "transcode", stderr.Tail(), err)
	}
	if scanErr != nil {
		return services.Wrap(services.ErrEncoding, "ffmpeg", "transcode", "read progress feed", scanErr)
	}
	return nil
}

// progressBlock accumulates one key=value block of the -progress feed.
// ffmpeg terminates each block with a progress=continue/end line.
type progressBlock struct {
	outTime string
	fps     string
}

func (b *progressBlock) set(key, value string) {
	switch key {
	case "out_time":
		b.outTime = value
	case "fps":
		b.fps = value
	}
}

func (b *progressBlock) notification(total time.Duration) Notification {
	n := Notification{Percent: -1, Timemark: timemarkOf(b.outTime)}
	if fps, err := strconv.ParseFloat(strings.TrimSpace(b.fps), 64); err == nil {
		n.FPS = fps
	}
	if total > 0 {
		if elapsed, ok := parseTimemark(n.Timemark); ok {
			n.Percent = float64(elapsed) / total.Seconds() * 100
		}
	}
	return n
}

// timemarkOf reduces ffmpeg's out_time ("00:01:04.512000") to HH:MM:SS.
func timemarkOf(outTime string) string {
	outTime = strings.TrimSpace(outTime)
	if outTime == "" || outTime == "N/A" {
		return ""
	}
	if idx := strings.IndexByte(outTime, '.'); idx >= 0 {
		outTime = outTime[:idx]
	}
	return outTime
}

// parseTimemark converts HH:MM:SS into whole seconds.
func parseTimemark(mark string) (int64, bool) {
	parts := strings.Split(strings.TrimSpace(mark), ":")
	if len(parts) != 3 {
		return 0, false
	}
	var total int64
	for _, part := range parts {
		value, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || value < 0 {
			return 0, false
		}
		total = total*60 + value
	}
	return total, true
}

var _ Client = (*CLI)(nil)
