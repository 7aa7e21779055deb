package workflow

import (
	"fmt"
	"log/slog"
	"strings"

	"reencode/internal/logging"
	"reencode/internal/preflight"
	"reencode/internal/services"
)

// runPreflightChecks validates the work and library directories before a job.
// Returns nil when all checks pass, or an error describing all failures.
func (m *Manager) runPreflightChecks(logger *slog.Logger) error {
	results := preflight.RunAll(m.cfg)
	if len(results) == 0 {
		return nil
	}

	var failures []string
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
			continue
		}
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "free disk space or fix directory permissions, then run encode again"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}

	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "workflow", "preflight", strings.Join(failures, "; "), nil)
	}
	return nil
}
