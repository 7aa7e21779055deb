package queue

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// PathKey returns the case-insensitive lookup key for a source path.
func PathKey(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	return cases.Fold().String(filepath.Clean(trimmed))
}
