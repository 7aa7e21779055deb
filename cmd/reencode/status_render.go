package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"reencode/internal/queue"
	"reencode/internal/workflow"
)

// tone flags a status line: a check result in `config show` or a finished
// job in `encode`.
type tone int

const (
	toneInfo tone = iota
	toneOK
	toneWarn
	toneError
)

var toneTags = map[tone]string{
	toneInfo:  "INFO",
	toneOK:    "OK",
	toneWarn:  "WARN",
	toneError: "ERROR",
}

var toneColors = map[tone]string{
	toneInfo:  "\x1b[34m",
	toneOK:    "\x1b[32m",
	toneWarn:  "\x1b[33m",
	toneError: "\x1b[31m",
}

const ansiReset = "\x1b[0m"

// lineLabelWidth fits "Encoder running:" and "#123 Series S01E01" labels.
const lineLabelWidth = 22

// lineStyle formats "  label: [TAG] message" lines, coloured only when
// writing to a terminal that has not opted out with NO_COLOR.
type lineStyle struct {
	colorize bool
}

func newLineStyle(w io.Writer) lineStyle {
	_, noColor := os.LookupEnv("NO_COLOR")
	return lineStyle{colorize: !noColor && isTerminal(w)}
}

func (s lineStyle) status(label string, t tone, message string) string {
	text := "[" + toneTags[t] + "]"
	if message = strings.TrimSpace(message); message != "" {
		text += " " + message
	}
	return s.paint(t, fmt.Sprintf("  %-*s %s", lineLabelWidth, label+":", text))
}

// header underlines a section title such as "Checks".
func (s lineStyle) header(title string) string {
	title = strings.TrimSpace(title)
	return s.paint(toneInfo, title) + "\n" + s.paint(toneInfo, strings.Repeat("=", len(title)))
}

func (s lineStyle) paint(t tone, text string) string {
	if !s.colorize {
		return text
	}
	return toneColors[t] + text + ansiReset
}

// jobTone flags a job that just left the encoder: completed work is OK unless
// it duplicated earlier output, a job back in the queue was interrupted, and
// anything else failed.
func jobTone(job *queue.Job) tone {
	switch job.Status {
	case queue.StatusCompleted:
		if strings.HasPrefix(job.StatusMessage, workflow.DuplicateOutputMessage) {
			return toneWarn
		}
		return toneOK
	case queue.StatusPending:
		return toneWarn
	default:
		return toneError
	}
}

// isTerminal reports whether writer is an interactive terminal.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
