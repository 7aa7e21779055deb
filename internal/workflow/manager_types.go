package workflow

import (
	"log/slog"

	"reencode/internal/logging"
	"reencode/internal/queue"
	"reencode/internal/transcode"
)

// Observer receives presentation updates for running jobs. Nothing the
// manager decides depends on what an observer does.
type Observer interface {
	JobStarted(job *queue.Job)
	JobProgress(job *queue.Job, progress transcode.Progress)
	JobFinished(job *queue.Job, err error)
}

// Notifier wakes the monitoring loop when the queue may have changed.
type Notifier interface {
	Changes() <-chan struct{}
}

// DuplicateAction is what admission does with a source whose content was
// already processed elsewhere.
type DuplicateAction int

const (
	// DuplicateWarn admits the job and reports the duplicate.
	DuplicateWarn DuplicateAction = iota
	// DuplicateSkip leaves the queue untouched.
	DuplicateSkip
	// DuplicateRemove deletes the source file and abandons the job.
	DuplicateRemove
)

// Admission reports the outcome of Enqueue.
type Admission struct {
	Job *queue.Job
	// Updated is set when an existing record for the same path was replaced.
	Updated   bool
	Duplicate bool
	Skipped   bool
	Removed   bool
}

// RunOptions controls one Run.
type RunOptions struct {
	// IDs restricts the run to these jobs in this order and disables monitoring.
	IDs     []int64
	Monitor bool
}

// RunSummary counts what a Run did.
type RunSummary struct {
	Recovered  int64
	Completed  int
	Failed     int
	Cancelled  int
	Duplicates int
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithObserver routes job progress to observer.
func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observer = observer
		}
	}
}

// WithNotifier lets the monitoring loop wake on queue changes instead of
// waiting for the recheck interval.
func WithNotifier(notifier Notifier) Option {
	return func(m *Manager) {
		m.notifier = notifier
	}
}

// WithSnapshotter enables thumbnail side artifacts when thumbnails are configured.
func WithSnapshotter(snapshotter transcode.Snapshotter) Option {
	return func(m *Manager) {
		m.snapshotter = snapshotter
	}
}

type nopObserver struct{}

func (nopObserver) JobStarted(*queue.Job)                       {}
func (nopObserver) JobProgress(*queue.Job, transcode.Progress) {}
func (nopObserver) JobFinished(*queue.Job, error)               {}

func componentLogger(logger *slog.Logger) *slog.Logger {
	return logging.NewComponentLogger(logger, "workflow")
}
