package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"reencode/internal/queue"
	"reencode/internal/services"
	"reencode/internal/testsupport"
)

func newJob(path string) *queue.Job {
	season := 1
	return &queue.Job{
		SourcePath: path,
		OutputPath: path + ".out.mkv",
		Streams:    []int{0, 1, 3},
		VideoCodec: "libx265",
		StereoMode: queue.StereoMono,
		Status:     queue.StatusPending,
		SourceHash: "hash-" + path,
		Series:     "Arte",
		Season:     &season,
		Episode:    12,
	}
}

func TestUpsertInsertsAndRoundTripsFields(t *testing.T) {
	store := testsupport.MustOpenQueue(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := newJob("/media/Arte - S01E12.mkv")
	job.Failure = &queue.Failure{Kind: services.KindEngine, Message: "exit 1", Detail: "tail"}
	saved := testsupport.AddJob(t, store, job)
	if saved.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	fetched, err := store.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected job")
	}
	if fetched.SourcePath != job.SourcePath || fetched.OutputPath != job.OutputPath {
		t.Fatalf("unexpected paths: %#v", fetched)
	}
	if len(fetched.Streams) != 3 || fetched.Streams[2] != 3 {
		t.Fatalf("unexpected streams: %v", fetched.Streams)
	}
	if fetched.Season == nil || *fetched.Season != 1 || fetched.Episode != 12 {
		t.Fatalf("unexpected identity: %v %d", fetched.Season, fetched.Episode)
	}
	if fetched.Failure == nil || fetched.Failure.Kind != services.KindEngine || fetched.Failure.Detail != "tail" {
		t.Fatalf("unexpected failure: %#v", fetched.Failure)
	}
	if fetched.CreatedAt.IsZero() || fetched.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps")
	}
	if fetched.Label() != "Arte S01E12" {
		t.Fatalf("unexpected label %q", fetched.Label())
	}
}

func TestGetUnknownReturnsNil(t *testing.T) {
	store := testsupport.MustOpenQueue(t, testsupport.NewConfig(t))
	job, err := store.Get(context.Background(), 404)
	if err != nil || job != nil {
		t.Fatalf("expected nil job and no error, got %#v %v", job, err)
	}
}

func TestUpsertIsIdempotentByPathIgnoringCase(t *testing.T) {
	store := testsupport.MustOpenQueue(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.AddJob(t, store, newJob("/media/Show/Episode.mkv"))

	again := newJob("/MEDIA/show/episode.MKV")
	again.VideoCodec = "libsvtav1"
	second := testsupport.AddJob(t, store, again)

	if second.ID != first.ID {
		t.Fatalf("expected same id, got %d and %d", first.ID, second.ID)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}
	byPath, err := store.GetByPath(ctx, "/media/show/EPISODE.mkv")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if byPath == nil || byPath.VideoCodec != "libsvtav1" {
		t.Fatalf("expected updated record, got %#v", byPath)
	}
}

func TestUpsertMatchesByIDWhenPathChanges(t *testing.T) {
	store := testsupport.MustOpenQueue(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := testsupport.AddJob(t, store, newJob("/media/old.mkv"))
	job.SourcePath = "/media/renamed.mkv"
	testsupport.AddJob(t, store, job)

	if count, _ := store.Count(ctx); count != 1 {
		t.Fatalf("expected a single row, got %d", count)
	}
	renamed, err := store.GetByPath(ctx, "/media/renamed.mkv")
	if err != nil || renamed == nil || renamed.ID != job.ID {
		t.Fatalf("expected renamed job, got %#v %v", renamed, err)
	}
}

func TestFindAndCountByStatus(t *testing.T) {
	store := testsupport.MustOpenQueue(t, testsupport.NewConfig(t))
	ctx := context.Background()

	statuses := []queue.Status{queue.StatusPending, queue.StatusFailed, queue.StatusCompleted, queue.StatusPending}
	for i, status := range statuses {
		job := newJob(fmt.Sprintf("/media/%d.mkv", i))
		job.Status = status
		testsupport.AddJob(t, store, job)
	}

	all, err := store.Find(ctx)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatal("expected admission order")
		}
	}

	pending, err := store.Find(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("Find pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	n, err := store.Count(ctx, queue.StatusFailed, queue.StatusCompleted)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 failed+completed, got %d %v", n, err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusPending] != 2 || stats[queue.StatusActive] != 0 || stats.Total() != 4 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestDeleteByStatusDefaultLeavesActive(t *testing.T) {
	store := testsupport.MustOpenQueue(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for i, status := range queue.AllStatuses() {
		job := newJob(fmt.Sprintf("/media/%d.mkv", i))
		job.Status = status
		testsupport.AddJob(t, store, job)
	}

	removed, err := store.DeleteByStatus(ctx)
	if err != nil {
		t.Fatalf("DeleteByStatus: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	remaining, err := store.Find(ctx)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Status != queue.StatusActive {
		t.Fatalf("expected only the active job to remain, got %#v", remaining)
	}
}

func TestDeleteByStatusCompletedOnly(t *testing.T) {
	store := testsupport.MustOpenQueue(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for i, status := range []queue.Status{queue.StatusCompleted, queue.StatusCompleted, queue.StatusFailed, queue.StatusPending} {
		job := newJob(fmt.Sprintf("/media/%d.mkv", i))
		job.Status = status
		testsupport.AddJob(t, store, job)
	}
	removed, err := store.DeleteByStatus(ctx, queue.StatusCompleted)
	if err != nil {
		t.Fatalf("DeleteByStatus: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if n, _ := store.Count(ctx); n != 2 {
		t.Fatalf("expected 2 remaining, got %d", n)
	}
}

func TestDeleteByStatusRejectsActive(t *testing.T) {
	store := testsupport.MustOpenQueue(t, testsupport.NewConfig(t))
	_, err := store.DeleteByStatus(context.Background(), queue.StatusActive)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteByID(t *testing.T) {
	store := testsupport.MustOpenQueue(t, testsupport.NewConfig(t))
	ctx := context.Background()

	pending := testsupport.AddJob(t, store, newJob("/media/a.mkv"))
	activeJob := newJob("/media/b.mkv")
	activeJob.Status = queue.StatusActive
	active := testsupport.AddJob(t, store, activeJob)

	if err := store.DeleteByID(ctx, pending.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if job, _ := store.Get(ctx, pending.ID); job != nil {
		t.Fatal("expected job to be deleted")
	}
	if err := store.DeleteByID(ctx, active.ID); !errors.Is(err, services.ErrAlreadyActive) {
		t.Fatalf("expected active job to be refused, got %v", err)
	}
	if err := store.DeleteByID(ctx, 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExistsByContentOnlyCountsCompletedJobs(t *testing.T) {
	store := testsupport.MustOpenQueue(t, testsupport.NewConfig(t))
	ctx := context.Background()

	done := newJob("/media/done.mkv")
	done.Status = queue.StatusCompleted
	done.SourceHash = "source-h"
	done.OutputHash = "output-h"
	testsupport.AddJob(t, store, done)

	failed := newJob("/media/failed.mkv")
	failed.Status = queue.StatusFailed
	failed.SourceHash = "failed-h"
	testsupport.AddJob(t, store, failed)

	pending := newJob("/media/pending.mkv")
	pending.SourceHash = "pending-h"
	testsupport.AddJob(t, store, pending)

	cases := []struct {
		name string
		path string
		hash string
		want bool
	}{
		{"output hash from any path", "/elsewhere.mkv", "output-h", true},
		{"output hash from same path", "/media/done.mkv", "output-h", true},
		{"source hash from other path", "/elsewhere.mkv", "source-h", true},
		{"source hash from same path", "/MEDIA/DONE.mkv", "source-h", false},
		{"failed hash", "/elsewhere.mkv", "failed-h", false},
		{"pending hash", "/elsewhere.mkv", "pending-h", false},
		{"empty hash", "/elsewhere.mkv", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.ExistsByContent(ctx, tc.path, tc.hash)
			if err != nil {
				t.Fatalf("ExistsByContent: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ExistsByContent(%q, %q) = %v, want %v", tc.path, tc.hash, got, tc.want)
			}
		})
	}
}

func TestValidateRejectsMalformedJobs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*queue.Job)
	}{
		{"missing source", func(j *queue.Job) { j.SourcePath = "" }},
		{"missing output", func(j *queue.Job) { j.OutputPath = "" }},
		{"negative stream", func(j *queue.Job) { j.Streams = []int{-1} }},
		{"bad stereo", func(j *queue.Job) { j.StereoMode = "3d" }},
		{"negative episode", func(j *queue.Job) { j.Episode = -2 }},
		{"negative season", func(j *queue.Job) { s := -1; j.Season = &s }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := newJob("/media/x.mkv")
			tc.mutate(job)
			if err := queue.Validate(job); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if err := queue.Validate(newJob("/media/ok.mkv")); err != nil {
		t.Fatalf("expected valid job, got %v", err)
	}
}

func TestParseHelpers(t *testing.T) {
	if status, err := queue.ParseStatus(" Failed "); err != nil || status != queue.StatusFailed {
		t.Fatalf("ParseStatus: %v %v", status, err)
	}
	if _, err := queue.ParseStatus("review"); err == nil {
		t.Fatal("expected unknown status error")
	}
	if mode, err := queue.ParseStereoMode(""); err != nil || mode != queue.StereoMono {
		t.Fatalf("ParseStereoMode empty: %v %v", mode, err)
	}
	if mode, err := queue.ParseStereoMode("HSBS"); err != nil || mode != queue.StereoHalfSideBySide {
		t.Fatalf("ParseStereoMode: %v %v", mode, err)
	}
	if _, err := queue.ParseStereoMode("anaglyph"); err == nil {
		t.Fatal("expected unknown stereo mode error")
	}
}
