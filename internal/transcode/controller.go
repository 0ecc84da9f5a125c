package transcode

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reframe/internal/ffmpeg"
	"reframe/internal/logging"
	"reframe/internal/media/ffprobe"
	"reframe/internal/services"
)

// DurationProber resolves the playable duration of an input file. The
// controller uses it to derive percentages from the encoder's time marks.
type DurationProber func(ctx context.Context, path string) (time.Duration, error)

// eventBuffer bounds the progress channel; events are dropped when the
// consumer lags rather than stalling the encoder read loop.
const eventBuffer = 16

// Controller drives exactly one transcode from request to terminal outcome.
// Instances are single use: a new request requires a new controller.
type Controller struct {
	client ffmpeg.Client
	prober DurationProber
	logger *slog.Logger

	mu        sync.Mutex
	status    Status
	started   bool
	cancelled bool
	cancel    context.CancelFunc

	events  chan ProgressEvent
	outcome chan Outcome
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger attaches a logger; nil keeps the no-op default.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDurationProber replaces the ffprobe-backed duration lookup.
func WithDurationProber(prober DurationProber) ControllerOption {
	return func(c *Controller) {
		if prober != nil {
			c.prober = prober
		}
	}
}

// NewController builds a controller around the given encoder client.
func NewController(client ffmpeg.Client, opts ...ControllerOption) *Controller {
	c := &Controller{
		client: client,
		prober: ffprobeDuration(""),
		logger: logging.NewNop(),
		status: StatusPending,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ffprobeDuration adapts the ffprobe package to the DurationProber shape.
func ffprobeDuration(binary string) DurationProber {
	return func(ctx context.Context, path string) (time.Duration, error) {
		result, err := ffprobe.Inspect(ctx, binary, path)
		if err != nil {
			return 0, err
		}
		seconds := result.DurationSeconds()
		if seconds <= 0 {
			return 0, nil
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
}

// Start validates the request and launches the encoder. Validation failures
// are reported synchronously before any process is spawned; afterwards every
// run produces exactly one terminal Outcome on the returned channel, and the
// events channel is closed before the outcome is delivered.
func (c *Controller) Start(ctx context.Context, req ffmpeg.Request) (<-chan ProgressEvent, <-chan Outcome, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, nil, services.Wrap(services.ErrInvalidRequest, "transcode", "start", "controller already used", nil)
	}
	if err := req.Validate(); err != nil {
		c.status = StatusFailed
		c.started = true
		c.mu.Unlock()
		return nil, nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.started = true
	c.status = StatusRunning
	c.cancel = cancel
	c.events = make(chan ProgressEvent, eventBuffer)
	c.outcome = make(chan Outcome, 1)
	c.mu.Unlock()

	go c.run(runCtx, req)
	return c.events, c.outcome, nil
}

func (c *Controller) run(ctx context.Context, req ffmpeg.Request) {
	defer c.cancel()

	total := c.probeDuration(ctx, req.InputPath)
	sampler := logging.NewProgressSampler(5)

	err := c.client.Transcode(ctx, req, total, func(n ffmpeg.Notification) {
		if c.isCancelled() {
			return
		}
		event := ParseProgress(n)
		select {
		case c.events <- event:
		default:
			// Consumer lags; the latest state still reaches it via later events.
		}
		if sampler.ShouldLog(event.Percent) {
			c.logger.Info("transcode progress",
				logging.Float64("percent", event.Percent),
				logging.Float64("fps", event.CurrentFPS),
				logging.String("remaining", event.TimeRemaining),
			)
		}
	})

	c.finish(err)
}

func (c *Controller) probeDuration(ctx context.Context, path string) time.Duration {
	total, err := c.prober(ctx, path)
	if err != nil {
		c.logger.Debug("duration probe failed; percentages unavailable", logging.Error(err))
		return 0
	}
	return total
}

func (c *Controller) finish(err error) {
	c.mu.Lock()
	var terminal Outcome
	switch {
	case c.cancelled || errors.Is(err, context.Canceled):
		terminal = cancelled()
	case err != nil:
		terminal = failed(err.Error())
	default:
		terminal = succeeded()
	}
	c.status = terminal.Status
	c.mu.Unlock()

	close(c.events)
	c.outcome <- terminal
	close(c.outcome)

	switch terminal.Status {
	case StatusSucceeded:
		c.logger.Info("transcode finished")
	case StatusCancelled:
		c.logger.Info("transcode cancelled")
	default:
		c.logger.Error("transcode failed", logging.String("reason", terminal.Reason))
	}
}

// Cancel requests termination of the running encoder. Idempotent; a no-op
// before Start or after a terminal outcome. The partially written output
// file is left in place for the caller to inspect or delete.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.status.Terminal() || c.cancelled {
		return
	}
	c.cancelled = true
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Controller) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Status returns the controller's current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}
