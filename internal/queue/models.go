package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// CancelledMessage is the status message stored when a user aborts a running job.
const CancelledMessage = "Cancelled by user"

// RecoveredMessage is the status message stored when an orphaned active job is swept back to pending.
const RecoveredMessage = "Recovered after interrupted run"

var allStatuses = []Status{StatusPending, StatusActive, StatusCompleted, StatusFailed}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus normalizes a user-supplied status name.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if candidate == status {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// StereoMode describes how stereoscopic frames are packed in the source.
type StereoMode string

const (
	StereoMono           StereoMode = "mono"
	StereoSideBySide     StereoMode = "sbs"
	StereoHalfSideBySide StereoMode = "hsbs"
	StereoTopBottom      StereoMode = "tab"
	StereoHalfTopBottom  StereoMode = "htab"
)

// ParseStereoMode normalizes a user-supplied stereo mode. Empty means mono.
func ParseStereoMode(value string) (StereoMode, error) {
	switch mode := StereoMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "":
		return StereoMono, nil
	case StereoMono, StereoSideBySide, StereoHalfSideBySide, StereoTopBottom, StereoHalfTopBottom:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown stereo mode %q (want mono, sbs, hsbs, tab, or htab)", value)
	}
}

// Failure is the reportable summary of why a job did not complete.
type Failure struct {
	Kind    string
	Message string
	Detail  string
}

// Job represents one durable unit of transcoding work.
type Job struct {
	ID              int64
	SourcePath      string `validate:"required"`
	OutputPath      string `validate:"required"`
	Streams         []int  `validate:"dive,gte=0"`
	VideoCodec      string
	AudioCodec      string
	SubtitleCodec   string
	ExtraParameters string
	StereoMode      StereoMode `validate:"omitempty,oneof=mono sbs hsbs tab htab"`
	Status          Status     `validate:"omitempty,oneof=pending active completed failed"`
	StatusMessage   string
	Failure         *Failure
	SourceHash      string
	OutputHash      string

	Series      string
	Season      *int `validate:"omitempty,gte=0"`
	Episode     int  `validate:"gte=0"`
	EpisodeName string

	SourceSize int64 `validate:"gte=0"`
	OutputSize int64 `validate:"gte=0"`

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Label returns a short human-readable job description such as "Arte S01E12".
func (j *Job) Label() string {
	if j == nil {
		return ""
	}
	series := strings.TrimSpace(j.Series)
	if series == "" {
		return j.SourcePath
	}
	if j.Season != nil {
		return fmt.Sprintf("%s S%02dE%02d", series, *j.Season, j.Episode)
	}
	return fmt.Sprintf("%s - %02d", series, j.Episode)
}

// IsTerminal reports whether the job finished its last run.
func (j *Job) IsTerminal() bool {
	return j != nil && (j.Status == StatusCompleted || j.Status == StatusFailed)
}

// Stats holds job counts per status.
type Stats map[Status]int

// Total returns the number of jobs across all statuses.
func (s Stats) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}
