package compress

import "time"

// State is the lifecycle of the single compression job.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCancelRequested
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCancelRequested:
		return "cancel_requested"
	case StateCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// Job is the progress record of one compression run. The worker is its
// only writer; everyone else sees copies taken under the manager lock,
// so a snapshot is never torn.
type Job struct {
	ID    string
	State State

	Total       int
	Current     int
	CurrentFile string

	Compressed int
	Errors     int

	TotalOriginalBytes   int64
	TotalCompressedBytes int64

	MetadataFull    int
	MetadataPartial int
	MetadataNone    int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Active reports whether the job still owns the worker slot.
func (j Job) Active() bool {
	return j.State == StateRunning || j.State == StateCancelRequested
}

// Percent is the progress ratio scaled to 0-100.
func (j Job) Percent() float64 {
	if j.Total == 0 {
		return 0
	}
	return float64(j.Current) / float64(j.Total) * 100
}

func (j Job) SavingsBytes() int64 {
	return j.TotalOriginalBytes - j.TotalCompressedBytes
}

func (j Job) SavingsPercent() float64 {
	if j.TotalOriginalBytes == 0 {
		return 0
	}
	return float64(j.SavingsBytes()) / float64(j.TotalOriginalBytes) * 100
}
