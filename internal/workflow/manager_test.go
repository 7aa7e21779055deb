package workflow_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"reencode/internal/config"
	"reencode/internal/queue"
	"reencode/internal/services"
	"reencode/internal/testsupport"
	"reencode/internal/transcode"
	"reencode/internal/workflow"
)

func TestRunCompletesJob(t *testing.T) {
	observer := &recordingObserver{}
	h := newHarness(t, nil, workflow.WithObserver(observer))
	job := h.enqueue(t, h.newJob(t, "Arte", 'a'))

	summary, err := h.manager.Run(context.Background(), workflow.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	got := h.get(t, job.ID)
	if got.Status != queue.StatusCompleted {
		t.Fatalf("status = %s (%s)", got.Status, got.StatusMessage)
	}
	if got.OutputHash != h.encodedHash(t) {
		t.Fatalf("OutputHash = %q", got.OutputHash)
	}
	if got.OutputSize != int64(len(encodedContent)) {
		t.Fatalf("OutputSize = %d", got.OutputSize)
	}
	if got.FinishedAt == nil || got.Failure != nil {
		t.Fatalf("unexpected completion fields: finished=%v failure=%+v", got.FinishedAt, got.Failure)
	}
	if !strings.HasPrefix(got.StatusMessage, "Encoded 2.0 kB to 14 B") {
		t.Fatalf("StatusMessage = %q", got.StatusMessage)
	}
	data, err := os.ReadFile(job.OutputPath)
	if err != nil || string(data) != encodedContent {
		t.Fatalf("output not moved into place: %q %v", data, err)
	}
	assertWorkDirEmpty(t, h.cfg)

	reqs := h.engine.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one engine run, got %d", len(reqs))
	}
	if reqs[0].VideoCodec != h.cfg.Encoding.VideoCodec || reqs[0].InputPath != job.SourcePath {
		t.Fatalf("unexpected request %+v", reqs[0])
	}
	if len(reqs[0].ExtraParameters) == 0 {
		t.Fatal("expected default extra parameters split into fields")
	}

	if len(observer.started) != 1 || len(observer.finished) != 1 || observer.finished[0] != nil {
		t.Fatalf("observer saw started=%v finished=%v", observer.started, observer.finished)
	}
	if len(observer.progress) != 2 {
		t.Fatalf("expected progress forwarded, got %v", observer.progress)
	}
}

func TestRunRecordsEngineFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.run = func(_ context.Context, req transcode.Request, _ func(transcode.Progress)) error {
		if err := os.WriteFile(req.OutputPath, []byte("partial"), 0o644); err != nil {
			return err
		}
		return &transcode.EngineError{Engine: "fake", Detail: "Invalid data found", Err: errors.New("exit status 1")}
	}
	job := h.enqueue(t, h.newJob(t, "Arte", 'a'))

	summary, err := h.manager.Run(context.Background(), workflow.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	got := h.get(t, job.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Failure == nil || got.Failure.Kind != services.KindEngine || got.Failure.Detail != "Invalid data found" {
		t.Fatalf("unexpected failure %+v", got.Failure)
	}
	if !strings.HasPrefix(got.StatusMessage, "Encode failed") {
		t.Fatalf("StatusMessage = %q", got.StatusMessage)
	}
	testsupport.AssertMissing(t, job.OutputPath)
	assertWorkDirEmpty(t, h.cfg)

	n, err := h.manager.ResetFailedQueue(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ResetFailedQueue = %d, %v", n, err)
	}
	got = h.get(t, job.ID)
	if got.Status != queue.StatusPending || got.Failure != nil || got.StatusMessage != "" {
		t.Fatalf("reset job not clean: %+v", got)
	}
}

func TestRunCancellationLeavesJobPending(t *testing.T) {
	observer := &recordingObserver{}
	h := newHarness(t, nil, workflow.WithObserver(observer))
	started := make(chan struct{})
	h.engine.run = func(ctx context.Context, req transcode.Request, _ func(transcode.Progress)) error {
		if err := os.WriteFile(req.OutputPath, []byte("partial"), 0o644); err != nil {
			return err
		}
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	job := h.enqueue(t, h.newJob(t, "Arte", 'a'))

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		summary workflow.RunSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := h.manager.Run(ctx, workflow.RunOptions{Monitor: true})
		done <- result{summary, err}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("engine never started")
	}
	cancel()

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	if res.err != nil {
		t.Fatalf("Run: %v", res.err)
	}
	if res.summary.Cancelled != 1 {
		t.Fatalf("unexpected summary %+v", res.summary)
	}

	got := h.get(t, job.ID)
	if got.Status != queue.StatusPending || got.StatusMessage != queue.CancelledMessage {
		t.Fatalf("expected pending cancelled job, got %s %q", got.Status, got.StatusMessage)
	}
	if got.Failure == nil || got.Failure.Kind != services.KindCancelled {
		t.Fatalf("unexpected failure %+v", got.Failure)
	}
	assertWorkDirEmpty(t, h.cfg)
	if len(observer.finished) != 1 || !errors.Is(observer.finished[0], context.Canceled) {
		t.Fatalf("observer finished = %v", observer.finished)
	}
}

func TestDuplicateOutputPolicy(t *testing.T) {
	cases := []struct {
		policy     string
		wantOutput bool
	}{
		{config.DuplicateDiscard, false},
		{config.DuplicateKeep, true},
	}
	for _, tc := range cases {
		t.Run(tc.policy, func(t *testing.T) {
			h := newHarness(t, []testsupport.ConfigOption{testsupport.WithDuplicatePolicy(tc.policy)})
			earlier := h.newJob(t, "Earlier", 'e')
			earlier.Status = queue.StatusCompleted
			earlier.OutputHash = h.encodedHash(t)
			testsupport.AddJob(t, h.store, earlier)

			job := h.enqueue(t, h.newJob(t, "Arte", 'a'))
			summary, err := h.manager.Run(context.Background(), workflow.RunOptions{})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if summary.Duplicates != 1 || summary.Completed != 1 {
				t.Fatalf("unexpected summary %+v", summary)
			}

			got := h.get(t, job.ID)
			if got.Status != queue.StatusCompleted {
				t.Fatalf("status = %s", got.Status)
			}
			if !strings.HasPrefix(got.StatusMessage, workflow.DuplicateOutputMessage) {
				t.Fatalf("StatusMessage = %q", got.StatusMessage)
			}
			_, statErr := os.Stat(job.OutputPath)
			if exists := statErr == nil; exists != tc.wantOutput {
				t.Fatalf("output exists = %v, want %v", exists, tc.wantOutput)
			}
			assertWorkDirEmpty(t, h.cfg)
		})
	}
}

func TestThumbnailsAreNonFatal(t *testing.T) {
	snap := &fakeSnapshotter{}
	h := newHarness(t, []testsupport.ConfigOption{testsupport.WithThumbnails()}, workflow.WithSnapshotter(snap))
	job := h.enqueue(t, h.newJob(t, "Arte", 'a'))
	if _, err := h.manager.Run(context.Background(), workflow.RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(workflow.ThumbnailPath(job.OutputPath)); err != nil {
		t.Fatalf("thumbnail missing: %v", err)
	}

	snap.err = errors.New("no frame")
	second := h.enqueue(t, h.newJob(t, "Bocchi", 'b'))
	if _, err := h.manager.Run(context.Background(), workflow.RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := h.get(t, second.ID); got.Status != queue.StatusCompleted {
		t.Fatalf("thumbnail failure should not fail the job, got %s", got.Status)
	}
	testsupport.AssertMissing(t, workflow.ThumbnailPath(second.OutputPath))
	if snap.calls != 2 {
		t.Fatalf("snapshot calls = %d", snap.calls)
	}
}

func TestRunStopsWhenPreflightFails(t *testing.T) {
	h := newHarness(t, nil)
	job := h.enqueue(t, h.newJob(t, "Arte", 'a'))
	if err := os.RemoveAll(h.cfg.Paths.WorkDir); err != nil {
		t.Fatalf("remove work dir: %v", err)
	}

	_, err := h.manager.Run(context.Background(), workflow.RunOptions{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	got := h.get(t, job.ID)
	if got.Status != queue.StatusPending {
		t.Fatalf("job should stay pending, got %s", got.Status)
	}
	if !strings.Contains(got.StatusMessage, "Work directory") {
		t.Fatalf("StatusMessage = %q", got.StatusMessage)
	}
	if len(h.engine.requests()) != 0 {
		t.Fatal("engine must not run after a failed preflight")
	}
}

func TestRunRecoversOrphanedActiveJobs(t *testing.T) {
	h := newHarness(t, nil)
	orphan := h.newJob(t, "Arte", 'a')
	orphan.Status = queue.StatusActive
	testsupport.AddJob(t, h.store, orphan)

	summary, err := h.manager.Run(context.Background(), workflow.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Recovered != 1 || summary.Completed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := h.get(t, orphan.ID); got.Status != queue.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestRunWithExplicitIDs(t *testing.T) {
	h := newHarness(t, nil)
	first := h.enqueue(t, h.newJob(t, "Arte", 'a'))
	second := h.enqueue(t, h.newJob(t, "Bocchi", 'b'))
	third := h.enqueue(t, h.newJob(t, "Chainsaw", 'c'))

	summary, err := h.manager.Run(context.Background(), workflow.RunOptions{IDs: []int64{third.ID, first.ID}, Monitor: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	reqs := h.engine.requests()
	if len(reqs) != 2 || reqs[0].InputPath != third.SourcePath || reqs[1].InputPath != first.SourcePath {
		t.Fatalf("jobs ran out of order: %+v", reqs)
	}
	if got := h.get(t, second.ID); got.Status != queue.StatusPending {
		t.Fatalf("unlisted job should stay pending, got %s", got.Status)
	}
}

func TestRunExplicitFailedJobRunsOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.run = func(context.Context, transcode.Request, func(transcode.Progress)) error {
		return &transcode.EngineError{Engine: "fake", Err: errors.New("exit status 1")}
	}
	job := h.enqueue(t, h.newJob(t, "Arte", 'a'))

	if _, err := h.manager.Run(context.Background(), workflow.RunOptions{IDs: []int64{job.ID}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(h.engine.requests()); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestRunMonitorWakesOnNotifier(t *testing.T) {
	h := newHarness(t, nil)
	notifier := &chanNotifier{ch: make(chan struct{}, 1)}
	h.cfg.Queue.RecheckInterval = 3600
	encoder := workflow.NewManager(h.cfg, h.store, h.engine, h.hasher, nil, workflow.WithNotifier(notifier))

	// Admission happens from a separate connection, as it would from another process.
	otherStore := testsupport.MustOpenQueue(t, h.cfg)
	admitter := workflow.NewManager(h.cfg, otherStore, nil, h.hasher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := encoder.Run(ctx, workflow.RunOptions{Monitor: true})
		done <- err
	}()

	admission, err := admitter.Enqueue(context.Background(), h.newJob(t, "Arte", 'a'), workflow.DuplicateWarn)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	notifier.ch <- struct{}{}

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := otherStore.Get(context.Background(), admission.Job.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status == queue.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job still %s after wake-up", job.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestRunWithoutEngine(t *testing.T) {
	h := newHarness(t, nil)
	m := workflow.NewManager(h.cfg, h.store, nil, h.hasher, nil)
	if _, err := m.Run(context.Background(), workflow.RunOptions{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

// failJobUpdates installs a trigger that aborts every update of the jobs table
// matching when. It writes through its own session, like another process would.
func failJobUpdates(t *testing.T, h *harness, name, when string) {
	t.Helper()
	ctx := context.Background()
	session := testsupport.MustOpenDatabase(t, h.cfg).NewSession()
	stmt := `CREATE TRIGGER ` + name + ` BEFORE UPDATE ON jobs WHEN ` + when +
		` BEGIN SELECT RAISE(ABORT, 'disk full'); END`
	if _, err := session.ExecContext(ctx, stmt); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := session.Commit(); err != nil {
		t.Fatalf("commit trigger: %v", err)
	}
}

func dropTrigger(t *testing.T, h *harness, name string) {
	t.Helper()
	session := testsupport.MustOpenDatabase(t, h.cfg).NewSession()
	if _, err := session.ExecContext(context.Background(), `DROP TRIGGER `+name); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	if err := session.Commit(); err != nil {
		t.Fatalf("commit drop: %v", err)
	}
}

func TestRunReturnsJobToPendingWhenFailureCannotBeRecorded(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.run = func(_ context.Context, req transcode.Request, _ func(transcode.Progress)) error {
		if err := os.WriteFile(req.OutputPath, []byte("partial"), 0o644); err != nil {
			return err
		}
		return &transcode.EngineError{Engine: "fake", Detail: "Invalid data found", Err: errors.New("exit status 1")}
	}
	job := h.enqueue(t, h.newJob(t, "Arte", 'a'))
	failJobUpdates(t, h, "reject_failed", "NEW.status = 'failed'")

	_, err := h.manager.Run(context.Background(), workflow.RunOptions{})
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	got := h.get(t, job.ID)
	if got.Status != queue.StatusPending {
		t.Fatalf("expected job back to pending, got %s", got.Status)
	}
	assertWorkDirEmpty(t, h.cfg)
}

func TestRunReportsStorageErrorWhenCancellationCannotBeRecorded(t *testing.T) {
	h := newHarness(t, nil)
	started := make(chan struct{})
	h.engine.run = func(ctx context.Context, req transcode.Request, _ func(transcode.Progress)) error {
		if err := os.WriteFile(req.OutputPath, []byte("partial"), 0o644); err != nil {
			return err
		}
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	job := h.enqueue(t, h.newJob(t, "Arte", 'a'))
	failJobUpdates(t, h, "reject_cancel", "NEW.status_message = '"+queue.CancelledMessage+"'")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.manager.Run(ctx, workflow.RunOptions{Monitor: true})
		done <- err
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("engine never started")
	}
	cancel()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	got := h.get(t, job.ID)
	if got.Status != queue.StatusPending {
		t.Fatalf("expected job back to pending, got %s", got.Status)
	}
	assertWorkDirEmpty(t, h.cfg)
}

func TestRunLeavesJobRecoverableWhenNoWriteSucceeds(t *testing.T) {
	h := newHarness(t, nil)
	started := make(chan struct{})
	h.engine.run = func(ctx context.Context, _ transcode.Request, _ func(transcode.Progress)) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	job := h.enqueue(t, h.newJob(t, "Arte", 'a'))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.manager.Run(ctx, workflow.RunOptions{})
		done <- err
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("engine never started")
	}
	failJobUpdates(t, h, "reject_all", "1")
	cancel()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if got := h.get(t, job.ID); got.Status != queue.StatusActive {
		t.Fatalf("expected job still active, got %s", got.Status)
	}

	dropTrigger(t, h, "reject_all")
	n, err := h.store.RecoverActive(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("RecoverActive = %d, %v", n, err)
	}
	if err := h.store.Session().Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := h.get(t, job.ID); got.Status != queue.StatusPending {
		t.Fatalf("expected recovered job pending, got %s", got.Status)
	}
}
