package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reframe/internal/ffmpeg"
	"reframe/internal/logging"
	"reframe/internal/queue"
	"reframe/internal/services"
	"reframe/internal/testsupport"
	"reframe/internal/transcode"
)

type stubEncoder struct {
	notifications []ffmpeg.Notification
	err           error
	blockUntilCtx bool
}

func (s *stubEncoder) Transcode(ctx context.Context, req ffmpeg.Request, total time.Duration, onProgress func(ffmpeg.Notification)) error {
	for _, n := range s.notifications {
		onProgress(n)
	}
	if s.blockUntilCtx {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func newManager(t *testing.T, encoder ffmpeg.Client) (*Manager, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := NewManager(cfg, store, encoder, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mgr.Start(ctx)
	return mgr, store
}

func validRequest(t *testing.T) ffmpeg.Request {
	t.Helper()
	dir := t.TempDir()
	return ffmpeg.Request{
		InputPath:  testsupport.SampleInput(t, dir),
		OutputPath: filepath.Join(dir, "out.mp4"),
		Format:     "mp4",
	}
}

func waitTerminal(t *testing.T, store *queue.Store, id string) *queue.Record {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		record, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get record: %v", err)
		}
		if record.Status.Terminal() {
			return record
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached a terminal state (status %s)", id, record.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	encoder := &stubEncoder{notifications: []ffmpeg.Notification{
		{Percent: 50, Timemark: "00:00:04", FPS: 30},
	}}
	mgr, store := newManager(t, encoder)

	record, err := mgr.Submit(context.Background(), validRequest(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.Status != transcode.StatusRunning {
		t.Fatalf("expected running after submit, got %s", record.Status)
	}

	final := waitTerminal(t, store, record.ID)
	if final.Status != transcode.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", final.Status, final.FailureReason)
	}
	if final.Percent != 50 {
		t.Fatalf("expected persisted progress 50, got %v", final.Percent)
	}
}

func TestSubmitRecordsEncoderFailure(t *testing.T) {
	encoder := &stubEncoder{err: errors.New("encoder exploded")}
	mgr, store := newManager(t, encoder)

	record, err := mgr.Submit(context.Background(), validRequest(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitTerminal(t, store, record.ID)
	if final.Status != transcode.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.FailureReason == "" {
		t.Fatal("expected a failure reason on the record")
	}
}

func TestSubmitRejectsMissingInput(t *testing.T) {
	mgr, store := newManager(t, &stubEncoder{})

	req := validRequest(t)
	req.InputPath = filepath.Join(t.TempDir(), "no-such-input.mp4")
	if _, err := mgr.Submit(context.Background(), req); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records for rejected submission, got %d", len(records))
	}
}

func TestSubmitRejectsUnsupportedFormat(t *testing.T) {
	mgr, _ := newManager(t, &stubEncoder{})

	req := validRequest(t)
	req.Format = "wmv"
	if _, err := mgr.Submit(context.Background(), req); !errors.Is(err, services.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSubmitRejectsFullVolume(t *testing.T) {
	original := statfs
	statfs = func(string) (uint64, error) { return 1024, nil }
	t.Cleanup(func() { statfs = original })

	mgr, _ := newManager(t, &stubEncoder{})
	if _, err := mgr.Submit(context.Background(), validRequest(t)); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for full volume, got %v", err)
	}
}

func TestCancelRunningJob(t *testing.T) {
	encoder := &stubEncoder{blockUntilCtx: true}
	mgr, store := newManager(t, encoder)

	record, err := mgr.Submit(context.Background(), validRequest(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := mgr.Cancel(context.Background(), record.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	final := waitTerminal(t, store, record.ID)
	if final.Status != transcode.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", final.Status)
	}
}

func TestCancelTerminalJobIsNoop(t *testing.T) {
	mgr, store := newManager(t, &stubEncoder{})

	record, err := mgr.Submit(context.Background(), validRequest(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitTerminal(t, store, record.ID)

	cancelled, err := mgr.Cancel(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("cancel terminal job: %v", err)
	}
	if cancelled.Status != transcode.StatusSucceeded {
		t.Fatalf("cancel must not rewrite terminal status, got %s", cancelled.Status)
	}
}

func TestCancelUnknownJob(t *testing.T) {
	mgr, _ := newManager(t, &stubEncoder{})

	if _, err := mgr.Cancel(context.Background(), "missing-id"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
