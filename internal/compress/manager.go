package compress

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyRunning rejects a start request while a job holds the
// worker slot.
var ErrAlreadyRunning = errors.New("compression already in progress")

// Manager owns the single compression job. Start requests are
// serialized; the most recently completed job stays readable until a
// new one is accepted.
type Manager struct {
	mu     sync.Mutex
	job    *Job
	logger *slog.Logger

	// onDone, when set, receives a snapshot of every finished job.
	onDone func(Job)
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// OnDone registers a completion hook. It must be set before Start and
// runs on the worker goroutine after the job reaches Completed.
func (m *Manager) OnDone(fn func(Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDone = fn
}

// Start validates opts, enumerates the target scope, and launches the
// background worker. Invalid configuration and concurrency conflicts
// are rejected synchronously without creating or replacing a job; a
// snapshot taken right after acceptance already carries the full total.
func (m *Manager) Start(opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	info, err := os.Stat(opts.TargetDir)
	if err != nil {
		return fmt.Errorf("target directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target %s is not a directory", opts.TargetDir)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job != nil && m.job.Active() {
		return ErrAlreadyRunning
	}

	files, err := enumeratePNGs(opts.TargetDir, opts.Recursive)
	if err != nil {
		return fmt.Errorf("enumerate target: %w", err)
	}

	job := &Job{
		ID:        uuid.NewString(),
		State:     StateRunning,
		Total:     len(files),
		StartedAt: time.Now(),
	}
	m.job = job

	m.logger.Info("compression started",
		slog.String("job", job.ID),
		slog.String("target", opts.TargetDir),
		slog.Int("total", job.Total),
		slog.String("format", opts.Format.String()))

	go m.run(files, opts)
	return nil
}

// Snapshot returns a consistent copy of the current job. Before the
// first accepted start it reports the Idle state.
func (m *Manager) Snapshot() Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return Job{State: StateIdle}
	}
	return *m.job
}

// RequestCancel asks the worker to stop at the next file boundary. It
// reports whether a running job observed the request; with no running
// job it is a no-op.
func (m *Manager) RequestCancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil || m.job.State != StateRunning {
		return false
	}
	m.job.State = StateCancelRequested
	m.logger.Info("cancellation requested", slog.String("job", m.job.ID))
	return true
}

func (m *Manager) cancelRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job.State == StateCancelRequested
}
