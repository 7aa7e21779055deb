package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reencode/internal/config"
	"reencode/internal/queue"
	"reencode/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()
	t.Setenv("REENCODE_STATE_DIR", "")
	t.Setenv("REENCODE_LIBRARY_DIR", "")

	cfg := testsupport.NewConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenQueue(t, cfg),
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

// sourceFile writes a media file under the incoming directory.
func (e *cliTestEnv) sourceFile(t *testing.T, name string, fill byte) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "incoming", name)
	testsupport.WriteFile(t, path, 4096, fill)
	return path
}

func (e *cliTestEnv) addJob(t *testing.T, name string, status queue.Status, message string) *queue.Job {
	t.Helper()
	job := testsupport.AddJob(t, e.store, &queue.Job{
		SourcePath:    filepath.Join(e.baseDir, "incoming", name+".mkv"),
		OutputPath:    filepath.Join(e.cfg.Paths.LibraryDir, name+".mkv"),
		Series:        name,
		Episode:       1,
		StereoMode:    queue.StereoMono,
		Status:        status,
		StatusMessage: message,
		SourceHash:    "xxh64:" + name,
	})
	return job
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
