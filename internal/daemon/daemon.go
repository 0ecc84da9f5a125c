package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"reframe/internal/config"
	"reframe/internal/deps"
	"reframe/internal/ffmpeg"
	"reframe/internal/logging"
	"reframe/internal/preview"
	"reframe/internal/queue"
)

// Daemon is the composition root of the background process. It owns the job
// store, the manager, the preview server handle, and the control API, and it
// enforces single-instance execution through a lockfile.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	manager *Manager
	preview *preview.Server
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status reports daemon runtime information for the control API and CLI.
type Status struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	ActiveJobs   int           `json:"active_jobs"`
	JobDBPath    string        `json:"job_db_path"`
	LockFilePath string        `json:"lock_file_path"`
	PreviewAddr  string        `json:"preview_addr,omitempty"`
	Dependencies []deps.Status `json:"dependencies"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, client ffmpeg.Client, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || client == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, encoder client, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "reframed.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  NewManager(cfg, store, client, logger),
		preview:  preview.NewServer(cfg.Paths.PreviewBind, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and brings the servers up. It fails fast
// when another instance already holds the lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reframed instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.manager.Start(d.ctx)

	if err := d.api.start(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	if !d.cfg.Preview.LazyStart {
		if err := d.preview.Start(d.ctx); err != nil {
			d.logger.Warn("preview server failed to start", logging.Error(err))
		}
	}

	d.running.Store(true)
	d.logger.Info("reframed started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels running jobs, waits briefly for their outcomes to persist,
// and shuts the servers down.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := d.manager.Wait(waitCtx); err != nil {
		d.logger.Warn("jobs still in flight at shutdown", logging.Error(err))
	}
	cancel()

	d.api.stop()
	d.preview.Stop()
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("reframed stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Manager exposes the job manager for the control API and tests.
func (d *Daemon) Manager() *Manager {
	return d.manager
}

// PreviewServer exposes the preview handle so callers can mint file URLs.
func (d *Daemon) PreviewServer() *preview.Server {
	return d.preview
}

// APIAddr returns the control API's bound address, empty before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status summarizes the daemon's runtime state.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		ActiveJobs:   d.manager.ActiveCount(),
		JobDBPath:    d.store.Path(),
		LockFilePath: d.lockPath,
		PreviewAddr:  d.preview.Addr(),
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
