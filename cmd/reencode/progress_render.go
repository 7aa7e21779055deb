package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"reencode/internal/queue"
	"reencode/internal/transcode"
)

const progressBarWidth = 24

// progressRenderer draws job progress for `encode`. On a terminal it redraws a
// single line; otherwise it writes one line per job start and finish.
type progressRenderer struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	style       lineStyle
	lineWidth   int
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	return &progressRenderer{
		out:         out,
		interactive: isTerminal(out),
		style:       newLineStyle(out),
	}
}

func (r *progressRenderer) JobStarted(job *queue.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.interactive {
		fmt.Fprintf(r.out, "Encoding #%d %s\n", job.ID, job.Label())
		return
	}
	r.redraw(progressLine(job, transcode.Progress{}))
}

func (r *progressRenderer) JobProgress(job *queue.Job, progress transcode.Progress) {
	if !r.interactive {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redraw(progressLine(job, progress))
}

func (r *progressRenderer) JobFinished(job *queue.Job, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interactive {
		r.clear()
	}
	fmt.Fprintln(r.out, r.style.status(fmt.Sprintf("#%d %s", job.ID, job.Label()), jobTone(job), finishedMessage(job, err)))
}

func (r *progressRenderer) redraw(line string) {
	r.clear()
	fmt.Fprint(r.out, line)
	r.lineWidth = len(line)
}

func (r *progressRenderer) clear() {
	if r.lineWidth == 0 {
		return
	}
	fmt.Fprint(r.out, "\r"+strings.Repeat(" ", r.lineWidth)+"\r")
	r.lineWidth = 0
}

func progressLine(job *queue.Job, progress transcode.Progress) string {
	percent := min(max(progress.Percent, 0), 100)
	filled := int(percent / 100 * progressBarWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressBarWidth-filled)
	line := fmt.Sprintf("#%d %s [%s] %5.1f%%", job.ID, job.Label(), bar, percent)
	if progress.Speed > 0 {
		line += fmt.Sprintf(" %.2fx", progress.Speed)
	}
	if progress.Elapsed > 0 {
		line += " " + progress.Elapsed.Truncate(time.Second).String()
	}
	if stage := strings.TrimSpace(progress.Stage); stage != "" {
		line += " " + stage
	}
	return line
}

func finishedMessage(job *queue.Job, err error) string {
	switch job.Status {
	case queue.StatusCompleted:
		return job.StatusMessage
	case queue.StatusPending:
		return firstLine(job.StatusMessage, "Returned to queue")
	default:
		message := job.StatusMessage
		if message == "" && err != nil {
			message = err.Error()
		}
		return firstLine(message, "Failed")
	}
}

func firstLine(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		return value[:idx]
	}
	return value
}
