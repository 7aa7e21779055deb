package workflow

import (
	"context"
	"log/slog"
	"time"

	"reencode/internal/config"
	"reencode/internal/contenthash"
	"reencode/internal/logging"
	"reencode/internal/queue"
	"reencode/internal/services"
	"reencode/internal/transcode"
)

// Manager coordinates admission and execution of queued jobs.
type Manager struct {
	cfg    *config.Config
	store  *queue.Store
	engine transcode.Engine
	hasher contenthash.Hasher
	logger *slog.Logger

	snapshotter transcode.Snapshotter
	notifier    Notifier
	observer    Observer
	sampler     *logging.ProgressSampler

	now func() time.Time
}

// NewManager constructs a manager writing through store. engine may be nil
// for managers that only admit and reset jobs.
func NewManager(cfg *config.Config, store *queue.Store, engine transcode.Engine, hasher contenthash.Hasher, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		hasher:   hasher,
		logger:   componentLogger(logger),
		observer: nopObserver{},
		sampler:  logging.NewProgressSampler(float64(cfg.Logging.ProgressBucketSize)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the manager's job store for read-only views.
func (m *Manager) Store() *queue.Store {
	return m.store
}

// Stats returns job counts per status.
func (m *Manager) Stats(ctx context.Context) (queue.Stats, error) {
	return m.store.Stats(ctx)
}

// commit makes the session's pending writes durable.
func (m *Manager) commit() error {
	if err := m.store.Session().Commit(); err != nil {
		return services.Wrap(services.ErrStorage, "workflow", "commit", "", err)
	}
	return nil
}

func (m *Manager) rollback() {
	if err := m.store.Session().Rollback(); err != nil {
		m.logger.Warn("rollback failed", logging.Error(err))
	}
}

// commitOrRollback commits when err is nil and rolls back otherwise.
func (m *Manager) commitOrRollback(err error) error {
	if err != nil {
		m.rollback()
		return err
	}
	if err := m.commit(); err != nil {
		m.rollback()
		return err
	}
	return nil
}
