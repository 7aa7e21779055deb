package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reencode/internal/config"
	"reencode/internal/contenthash"
	"reencode/internal/queue"
	"reencode/internal/testsupport"
	"reencode/internal/transcode"
	"reencode/internal/workflow"
)

const encodedContent = "encoded output"

type fakeEngine struct {
	mu   sync.Mutex
	reqs []transcode.Request
	run  func(ctx context.Context, req transcode.Request, progress func(transcode.Progress)) error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Probe(context.Context, string) (transcode.ProbeResult, error) {
	return transcode.ProbeResult{}, nil
}

func (f *fakeEngine) Run(ctx context.Context, req transcode.Request, progress func(transcode.Progress)) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	run := f.run
	f.mu.Unlock()
	if run != nil {
		return run(ctx, req, progress)
	}
	progress(transcode.Progress{Percent: 50, Stage: "encoding"})
	if err := os.WriteFile(req.OutputPath, []byte(encodedContent), 0o644); err != nil {
		return err
	}
	progress(transcode.Progress{Percent: 100, Stage: "complete"})
	return nil
}

func (f *fakeEngine) requests() []transcode.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcode.Request(nil), f.reqs...)
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []int64
	progress []float64
	finished []error
}

func (r *recordingObserver) JobStarted(job *queue.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, job.ID)
}

func (r *recordingObserver) JobProgress(_ *queue.Job, p transcode.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p.Percent)
}

func (r *recordingObserver) JobFinished(_ *queue.Job, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, err)
}

type chanNotifier struct {
	ch chan struct{}
}

func (n *chanNotifier) Changes() <-chan struct{} { return n.ch }

type fakeSnapshotter struct {
	err   error
	calls int
}

func (f *fakeSnapshotter) Snapshot(_ context.Context, _, output string, _ time.Duration, _ int) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(output, []byte("jpeg"), 0o644)
}

type harness struct {
	cfg     *config.Config
	store   *queue.Store
	engine  *fakeEngine
	hasher  contenthash.Hasher
	manager *workflow.Manager
}

func newHarness(t *testing.T, cfgOpts []testsupport.ConfigOption, opts ...workflow.Option) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, cfgOpts...)
	store := testsupport.MustOpenQueue(t, cfg)
	hasher, err := contenthash.New(cfg.Queue.HashAlgorithm)
	if err != nil {
		t.Fatalf("contenthash.New: %v", err)
	}
	engine := &fakeEngine{}
	return &harness{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		hasher:  hasher,
		manager: workflow.NewManager(cfg, store, engine, hasher, nil, opts...),
	}
}

// newJob writes a source file and returns an unsaved job for it with its
// content hash filled in.
func (h *harness) newJob(t *testing.T, name string, fill byte) *queue.Job {
	t.Helper()
	source := filepath.Join(testsupport.BaseDir(h.cfg), "incoming", name+".mkv")
	testsupport.WriteFile(t, source, 2048, fill)
	hash, err := contenthash.File(context.Background(), h.hasher, source)
	if err != nil {
		t.Fatalf("hash source: %v", err)
	}
	return &queue.Job{
		SourcePath: source,
		OutputPath: filepath.Join(h.cfg.Paths.LibraryDir, name, name+".mkv"),
		SourceHash: hash,
		SourceSize: 2048,
		Series:     name,
		Episode:    1,
	}
}

func (h *harness) enqueue(t *testing.T, job *queue.Job) *queue.Job {
	t.Helper()
	admission, err := h.manager.Enqueue(context.Background(), job, workflow.DuplicateWarn)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return admission.Job
}

func (h *harness) get(t *testing.T, id int64) *queue.Job {
	t.Helper()
	job, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%d): %v", id, err)
	}
	if job == nil {
		t.Fatalf("job %d not found", id)
	}
	return job
}

func (h *harness) encodedHash(t *testing.T) string {
	t.Helper()
	sum, err := h.hasher.Sum(context.Background(), strings.NewReader(encodedContent))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return sum
}

func assertWorkDirEmpty(t *testing.T, cfg *config.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty work dir, found %d entries (first %s)", len(entries), entries[0].Name())
	}
}
