package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reencode/internal/config"
)

// Requirement defines an external binary reencode relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configured engine needs. The drapto
// engine still shells out to ffprobe for inspection, so ffprobe is always
// required.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	reqs := []Requirement{{
		Name:        "FFprobe",
		Command:     cfg.Encoding.FFprobeBinary,
		Description: "Required for stream inspection",
	}}
	ffmpeg := Requirement{
		Name:        "FFmpeg",
		Command:     cfg.Encoding.FFmpegBinary,
		Description: "Required for encoding and thumbnails",
	}
	if strings.EqualFold(cfg.Encoding.Engine, config.EngineDrapto) {
		ffmpeg.Description = "Required for thumbnails"
		ffmpeg.Optional = true
	}
	return append(reqs, ffmpeg)
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
