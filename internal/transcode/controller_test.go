package transcode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reframe/internal/ffmpeg"
	"reframe/internal/services"
)

// stubClient scripts encoder behaviour for controller tests.
type stubClient struct {
	mu            sync.Mutex
	notifications []ffmpeg.Notification
	err           error
	blockUntilCtx bool
	started       chan struct{}
}

func (s *stubClient) Transcode(ctx context.Context, req ffmpeg.Request, total time.Duration, onProgress func(ffmpeg.Notification)) error {
	s.mu.Lock()
	notes := s.notifications
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
	}
	for _, n := range notes {
		if onProgress != nil {
			onProgress(n)
		}
	}
	if s.blockUntilCtx {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func staticDuration(d time.Duration) DurationProber {
	return func(context.Context, string) (time.Duration, error) {
		return d, nil
	}
}

func validRequest() ffmpeg.Request {
	return ffmpeg.Request{InputPath: "/tmp/in.mov", OutputPath: "/tmp/out.mp4", Format: "mp4"}
}

func collect(t *testing.T, events <-chan ProgressEvent, outcomes <-chan Outcome) ([]ProgressEvent, Outcome) {
	t.Helper()
	var got []ProgressEvent
	for event := range events {
		got = append(got, event)
	}
	select {
	case outcome := <-outcomes:
		return got, outcome
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return nil, Outcome{}
	}
}

func TestControllerSuccess(t *testing.T) {
	client := &stubClient{notifications: []ffmpeg.Notification{
		{Percent: 25, Timemark: "00:00:05", FPS: 30},
		{Percent: 150, Timemark: "00:00:15", FPS: 29},
		{Percent: 100, Timemark: "00:00:20", FPS: 28},
	}}
	ctrl := NewController(client, WithDurationProber(staticDuration(20*time.Second)))

	events, outcomes, err := ctrl.Start(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	got, outcome := collect(t, events, outcomes)

	if outcome.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %+v", outcome)
	}
	if len(got) != 3 {
		t.Fatalf("expected all mock events forwarded, got %d", len(got))
	}
	for _, event := range got {
		if event.Percent < 0 || event.Percent > 100 {
			t.Fatalf("event percent out of bounds: %+v", event)
		}
	}
	if got[1].Percent != 100 {
		t.Fatalf("expected out-of-range percent clamped to 100, got %v", got[1].Percent)
	}
	if ctrl.Status() != StatusSucceeded {
		t.Fatalf("controller status = %s", ctrl.Status())
	}
}

func TestControllerFailureCarriesReason(t *testing.T) {
	client := &stubClient{err: services.Wrap(services.ErrEncoding, "ffmpeg", "transcode", "broken pipe", nil)}
	ctrl := NewController(client, WithDurationProber(staticDuration(0)))

	events, outcomes, err := ctrl.Start(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, outcome := collect(t, events, outcomes)
	if outcome.Status != StatusFailed {
		t.Fatalf("expected failed, got %+v", outcome)
	}
	if outcome.Reason == "" {
		t.Fatal("failure reason must not be empty")
	}
}

func TestControllerValidationFailsSynchronously(t *testing.T) {
	ctrl := NewController(&stubClient{})
	_, _, err := ctrl.Start(context.Background(), ffmpeg.Request{Format: "mp4"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected invalid-request marker, got %v", err)
	}
	if ctrl.Status() != StatusFailed {
		t.Fatalf("expected failed status after invalid request, got %s", ctrl.Status())
	}
}

func TestControllerSingleUse(t *testing.T) {
	client := &stubClient{}
	ctrl := NewController(client, WithDurationProber(staticDuration(0)))
	events, outcomes, err := ctrl.Start(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	collect(t, events, outcomes)

	if _, _, err := ctrl.Start(context.Background(), validRequest()); err == nil {
		t.Fatal("expected error on second start")
	}
}

func TestControllerCancelIdempotent(t *testing.T) {
	client := &stubClient{blockUntilCtx: true, started: make(chan struct{})}
	ctrl := NewController(client, WithDurationProber(staticDuration(0)))

	events, outcomes, err := ctrl.Start(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-client.started
	ctrl.Cancel()
	ctrl.Cancel()

	var terminals []Outcome
	for range events {
	}
	for outcome := range outcomes {
		terminals = append(terminals, outcome)
	}
	if len(terminals) != 1 {
		t.Fatalf("expected exactly one terminal outcome, got %d", len(terminals))
	}
	if terminals[0].Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %+v", terminals[0])
	}

	// Terminal already; further cancels stay no-ops.
	ctrl.Cancel()
	if ctrl.Status() != StatusCancelled {
		t.Fatalf("status changed after terminal cancel: %s", ctrl.Status())
	}
}

func TestControllerNoEventsAfterCancel(t *testing.T) {
	client := &stubClient{
		notifications: []ffmpeg.Notification{{Percent: 10}},
		blockUntilCtx: true,
		started:       make(chan struct{}),
	}
	ctrl := NewController(client, WithDurationProber(staticDuration(0)))

	events, outcomes, err := ctrl.Start(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-client.started
	ctrl.Cancel()

	// Drain; everything still buffered was emitted before the cancel took
	// effect, and the channel must close without new arrivals.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				outcome := <-outcomes
				if outcome.Status != StatusCancelled {
					t.Fatalf("expected cancelled outcome, got %+v", outcome)
				}
				return
			}
		case <-deadline:
			t.Fatal("events channel never closed after cancel")
		}
	}
}
