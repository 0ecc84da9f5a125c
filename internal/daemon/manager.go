package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"reframe/internal/config"
	"reframe/internal/ffmpeg"
	"reframe/internal/logging"
	"reframe/internal/media/ffprobe"
	"reframe/internal/queue"
	"reframe/internal/services"
	"reframe/internal/transcode"
)

// progressPersistInterval throttles how often in-flight progress is written
// back to the store. The channel feed stays real time; the rows do not need
// to be.
const progressPersistInterval = 2 * time.Second

// Manager owns the in-flight transcode controllers. Each submitted job gets
// a fresh single-use controller; the manager tracks it by record id until a
// terminal outcome lands so cancellation can find it.
type Manager struct {
	cfg    *config.Config
	store  *queue.Store
	client ffmpeg.Client
	logger *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	jobs    map[string]*activeJob
}

type activeJob struct {
	controller *transcode.Controller
	done       chan struct{}
}

// NewManager constructs a manager; Start must be called before Submit.
func NewManager(cfg *config.Config, store *queue.Store, client ffmpeg.Client, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		store:  store,
		client: client,
		logger: logging.NewComponentLogger(logger, "manager"),
		jobs:   make(map[string]*activeJob),
	}
}

// Start records the lifetime context under which controllers run. Jobs
// outlive the HTTP requests that submit them, so controllers are bound to
// this context rather than the request's.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseCtx = ctx
}

// Submit persists a job record and launches its transcode. Validation and
// preflight failures are returned to the caller and recorded on the row;
// nothing is spawned for them.
func (m *Manager) Submit(ctx context.Context, req ffmpeg.Request) (*queue.Record, error) {
	m.mu.Lock()
	baseCtx := m.baseCtx
	m.mu.Unlock()
	if baseCtx == nil {
		return nil, errors.New("manager not started")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkJobPreflight(req); err != nil {
		return nil, err
	}

	record, err := m.store.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	jobLogger := logging.WithJobID(m.logger, record.ID)

	controller := transcode.NewController(m.client,
		transcode.WithLogger(jobLogger),
		transcode.WithDurationProber(m.durationProber()),
	)
	events, outcomes, err := controller.Start(baseCtx, req)
	if err != nil {
		failure := transcode.Outcome{Status: transcode.StatusFailed, Reason: err.Error()}
		if storeErr := m.store.SetOutcome(ctx, record.ID, failure); storeErr != nil {
			jobLogger.Warn("record failure outcome", logging.Error(storeErr))
		}
		return nil, err
	}

	if err := m.store.SetStatus(ctx, record.ID, transcode.StatusRunning); err != nil {
		jobLogger.Warn("mark job running", logging.Error(err))
	}

	job := &activeJob{controller: controller, done: make(chan struct{})}
	m.mu.Lock()
	m.jobs[record.ID] = job
	m.mu.Unlock()

	go m.track(record.ID, job, events, outcomes)

	jobLogger.Info("job submitted",
		logging.String(logging.FieldInput, req.InputPath),
		logging.String(logging.FieldOutput, req.OutputPath),
		logging.String(logging.FieldFormat, req.Format))
	record.Status = transcode.StatusRunning
	return record, nil
}

// track drains the controller's feeds, persisting throttled progress and the
// terminal outcome. It uses a background context: the job store must record
// the outcome even while the daemon is shutting down.
func (m *Manager) track(id string, job *activeJob, events <-chan transcode.ProgressEvent, outcomes <-chan transcode.Outcome) {
	defer close(job.done)
	jobLogger := logging.WithJobID(m.logger, id)

	var lastPersist time.Time
	for event := range events {
		if time.Since(lastPersist) < progressPersistInterval {
			continue
		}
		lastPersist = time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.store.UpdateProgress(ctx, id, event); err != nil {
			jobLogger.Warn("persist progress", logging.Error(err))
		}
		cancel()
	}

	outcome := <-outcomes
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.SetOutcome(ctx, id, outcome); err != nil {
		jobLogger.Warn("persist outcome", logging.Error(err))
	}
	jobLogger.Info("job finished", logging.String("status", string(outcome.Status)))

	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()
}

// Cancel requests cancellation of a running job. Cancelling a job that has
// already reached a terminal state is a no-op; an unknown id is an error.
func (m *Manager) Cancel(ctx context.Context, id string) (*queue.Record, error) {
	m.mu.Lock()
	job, running := m.jobs[id]
	m.mu.Unlock()

	if running {
		job.controller.Cancel()
		return m.store.GetByID(ctx, id)
	}

	record, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Status.Terminal() {
		// Known row but no live controller: the daemon that owned it is gone.
		failure := transcode.Outcome{Status: transcode.StatusFailed, Reason: "job is not running"}
		if err := m.store.SetOutcome(ctx, id, failure); err != nil {
			return nil, err
		}
		return m.store.GetByID(ctx, id)
	}
	return record, nil
}

// ActiveCount reports how many jobs currently hold a live controller.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Wait blocks until every in-flight job has reached a terminal outcome or
// the context expires. Used during shutdown so outcomes land in the store.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	pending := make([]*activeJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		pending = append(pending, job)
	}
	m.mu.Unlock()

	for _, job := range pending {
		select {
		case <-job.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Probe inspects a media file with ffprobe and summarizes the streams.
func (m *Manager) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, m.cfg.FFprobeBinary(), path)
}

func (m *Manager) durationProber() transcode.DurationProber {
	binary := m.cfg.FFprobeBinary()
	return func(ctx context.Context, path string) (time.Duration, error) {
		result, err := ffprobe.Inspect(ctx, binary, path)
		if err != nil {
			return 0, err
		}
		seconds := result.DurationSeconds()
		if seconds <= 0 {
			return 0, services.Wrap(services.ErrExternalTool, "manager", "probe-duration", "ffprobe reported no duration", nil)
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
}
