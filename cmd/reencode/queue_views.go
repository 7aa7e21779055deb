package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"reencode/internal/queue"
)

const listMessageWidth = 60

func buildQueueStatusRows(stats queue.Stats) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count, ok := stats[status]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(status), fmt.Sprintf("%d", count)})
	}
	return rows
}

func buildQueueListRows(jobs []*queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		label := job.Label()
		if strings.TrimSpace(job.Series) == "" {
			label = filepath.Base(job.SourcePath)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			label,
			formatStatusLabel(job.Status),
			formatDisplayTime(job.UpdatedAt),
			truncate(firstLine(job.StatusMessage, "-"), listMessageWidth),
		})
	}
	return rows
}

func renderJobDetail(job *queue.Job) string {
	rows := [][]string{
		{"ID", fmt.Sprintf("%d", job.ID)},
		{"Episode", job.Label()},
		{"Status", formatStatusLabel(job.Status)},
		{"Source", job.SourcePath},
		{"Output", job.OutputPath},
		{"Source size", formatSize(job.SourceSize)},
		{"Output size", formatSize(job.OutputSize)},
		{"Streams", streamsLabel(job.Streams)},
		{"Video codec", orDash(job.VideoCodec)},
		{"Audio codec", orDash(job.AudioCodec)},
		{"Subtitle codec", orDash(job.SubtitleCodec)},
		{"Extra parameters", orDash(job.ExtraParameters)},
		{"Stereo", string(job.StereoMode)},
		{"Source hash", orDash(job.SourceHash)},
		{"Output hash", orDash(job.OutputHash)},
		{"Created", formatDisplayTime(job.CreatedAt)},
		{"Updated", formatDisplayTime(job.UpdatedAt)},
	}
	if job.StartedAt != nil {
		rows = append(rows, []string{"Started", formatDisplayTime(*job.StartedAt)})
	}
	if job.FinishedAt != nil {
		rows = append(rows, []string{"Finished", formatDisplayTime(*job.FinishedAt)})
	}
	if job.StatusMessage != "" {
		rows = append(rows, []string{"Message", job.StatusMessage})
	}
	if job.Failure != nil {
		rows = append(rows, []string{"Failure kind", job.Failure.Kind})
		if detail := strings.TrimSpace(job.Failure.Detail); detail != "" {
			rows = append(rows, []string{"Failure detail", detail})
		}
	}
	return renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
}

func formatStatusLabel(status queue.Status) string {
	value := strings.TrimSpace(string(status))
	if value == "" {
		return ""
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

func formatDisplayTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02 15:04")
}

func formatSize(size int64) string {
	if size <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(size))
}

func streamsLabel(streams []int) string {
	if len(streams) == 0 {
		return "all"
	}
	return formatStreams(streams)
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}
