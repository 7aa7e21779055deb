package preflight

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"reencode/internal/config"
	"reencode/internal/deps"
	"reencode/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that gate a job: the work and library
// directories must be writable and both must keep the configured free-space
// floor.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	minFree := cfg.MinFreeBytes()

	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	results = append(results, CheckFreeSpace("Work directory free space", cfg.Paths.WorkDir, minFree))

	if cfg.Paths.LibraryDir != "" {
		results = append(results, CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir))
		results = append(results, CheckFreeSpace("Library directory free space", cfg.Paths.LibraryDir, minFree))
	}
	return results
}

// FirstFailure converts the first failed result into a configuration error.
func FirstFailure(results []Result) error {
	for _, result := range results {
		if !result.Passed {
			return services.Wrap(services.ErrConfiguration, "preflight", result.Name, result.Detail, nil)
		}
	}
	return nil
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path keeps at least minBytes
// available to unprivileged writers. A zero floor always passes.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	if minBytes == 0 {
		return Result{Name: name, Passed: true, Detail: "no minimum configured"}
	}
	available, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if available < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s free, need %s)",
			path, humanize.IBytes(available), humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s free)", path, humanize.IBytes(available))}
}

// FreeBytes reports the bytes available to unprivileged writers on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("path is empty")
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs: %w", err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckSystemDeps evaluates the external binaries for the configured engine.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}
