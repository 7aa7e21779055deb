// Package watch turns writes to the queue database into debounced wake-ups
// for the monitoring loop. Other processes admitting jobs touch the database
// or its WAL file; the encoder re-reads the queue when they do instead of
// waiting out the fallback recheck interval.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reencode/internal/logging"
)

// DefaultDelay is the quiet period before a burst of writes produces a wake-up.
const DefaultDelay = 250 * time.Millisecond

// Notifier watches one SQLite database file.
type Notifier struct {
	watcher *fsnotify.Watcher
	base    string
	delay   time.Duration
	logger  *slog.Logger

	changes chan struct{}
	stop    chan struct{}
	done    chan struct{}

	mu       sync.Mutex
	debounce *time.Timer
	closed   bool
}

// New watches the directory containing dbPath. A delay <= 0 uses DefaultDelay.
func New(dbPath string, delay time.Duration, logger *slog.Logger) (*Notifier, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(dbPath)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	n := &Notifier{
		watcher: fw,
		base:    filepath.Base(dbPath),
		delay:   delay,
		logger:  logging.NewComponentLogger(logger, "watch"),
		changes: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go n.eventLoop()
	return n, nil
}

// Changes delivers at most one pending wake-up at a time.
func (n *Notifier) Changes() <-chan struct{} {
	return n.changes
}

// Close stops watching. It is safe to call more than once.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	if n.debounce != nil {
		n.debounce.Stop()
	}
	n.mu.Unlock()

	close(n.stop)
	err := n.watcher.Close()
	<-n.done
	return err
}

func (n *Notifier) eventLoop() {
	defer close(n.done)
	for {
		select {
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handleEvent(event)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.logger.Warn("database watcher error", logging.Error(err))
		case <-n.stop:
			return
		}
	}
}

func (n *Notifier) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if !n.relevant(filepath.Base(event.Name)) {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	if n.debounce != nil {
		n.debounce.Stop()
	}
	n.debounce = time.AfterFunc(n.delay, n.signal)
}

// relevant accepts the database file and its -wal and -journal companions.
// The -shm index also changes on reads and is ignored.
func (n *Notifier) relevant(name string) bool {
	if name == n.base {
		return true
	}
	suffix, ok := strings.CutPrefix(name, n.base)
	if !ok {
		return false
	}
	return suffix == "-wal" || suffix == "-journal"
}

func (n *Notifier) signal() {
	select {
	case n.changes <- struct{}{}:
	default:
	}
}
