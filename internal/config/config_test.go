package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reencode/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "reencode")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "library", "tv") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "queue.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Encoding.Engine != config.EngineFFmpeg {
		t.Fatalf("expected ffmpeg engine by default, got %q", cfg.Encoding.Engine)
	}
	if cfg.Queue.HashAlgorithm != "xxh64" {
		t.Fatalf("expected xxh64 by default, got %q", cfg.Queue.HashAlgorithm)
	}
	if cfg.Queue.DuplicatePolicy != config.DuplicateKeep {
		t.Fatalf("expected keep duplicate policy, got %q", cfg.Queue.DuplicatePolicy)
	}
	if cfg.Queue.Monitor {
		t.Fatal("expected monitoring disabled by default")
	}
	if cfg.RecheckInterval() != time.Minute {
		t.Fatalf("unexpected recheck interval: %s", cfg.RecheckInterval())
	}
	if cfg.MinFreeBytes() != 5<<30 {
		t.Fatalf("unexpected free-space floor: %d", cfg.MinFreeBytes())
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "reencode.toml")
	content := `
[paths]
state_dir = "~/state"
library_dir = "~/shows"

[encoding]
engine = "DRAPTO"
container = ".MP4"
audio_languages = ["JPN", "eng", "jpn", " "]

[queue]
hash_algorithm = "sha256"
duplicate_policy = "discard"
monitor = true
recheck_interval = 15

[logging]
format = "pretty"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "shows") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.Encoding.Engine != config.EngineDrapto {
		t.Fatalf("expected engine normalized to drapto, got %q", cfg.Encoding.Engine)
	}
	if cfg.Encoding.Container != "mp4" {
		t.Fatalf("expected container normalized to mp4, got %q", cfg.Encoding.Container)
	}
	if got := strings.Join(cfg.Encoding.AudioLanguages, ","); got != "jpn,eng" {
		t.Fatalf("unexpected audio languages: %q", got)
	}
	if cfg.Encoding.VideoCodec != "libx265" {
		t.Fatalf("expected default video codec to survive partial config, got %q", cfg.Encoding.VideoCodec)
	}
	if cfg.Queue.HashAlgorithm != "sha256" || cfg.Queue.DuplicatePolicy != config.DuplicateDiscard {
		t.Fatalf("unexpected queue settings: %+v", cfg.Queue)
	}
	if !cfg.Queue.Monitor || cfg.RecheckInterval() != 15*time.Second {
		t.Fatalf("unexpected monitor settings: %+v", cfg.Queue)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging settings: %+v", cfg.Logging)
	}
}

func TestLoadHonoursStateDirEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	stateDir := filepath.Join(t.TempDir(), "state")
	t.Setenv("REENCODE_STATE_DIR", stateDir)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.StateDir != stateDir {
		t.Fatalf("expected env state dir, got %q", cfg.Paths.StateDir)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"engine", func(c *config.Config) { c.Encoding.Engine = "handbrake" }, "encoding.engine"},
		{"hash", func(c *config.Config) { c.Queue.HashAlgorithm = "md5" }, "queue.hash_algorithm"},
		{"policy", func(c *config.Config) { c.Queue.DuplicatePolicy = "ask" }, "queue.duplicate_policy"},
		{"template", func(c *config.Config) { c.Naming.Template = "{{.Series" }, "naming.template"},
		{"empty template", func(c *config.Config) { c.Naming.Template = " " }, "naming.template"},
		{"container", func(c *config.Config) { c.Encoding.Container = "a/b" }, "encoding.container"},
		{"video codec", func(c *config.Config) { c.Encoding.VideoCodec = "" }, "encoding.video_codec"},
		{"thumb width", func(c *config.Config) { c.Thumbnails.Width = 4 }, "thumbnails.width"},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"state dir", func(c *config.Config) { c.Paths.StateDir = "" }, "paths.state_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDraptoEngineDoesNotRequireVideoCodec(t *testing.T) {
	cfg := config.Default()
	cfg.Encoding.Engine = config.EngineDrapto
	cfg.Encoding.VideoCodec = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected drapto config to validate, got %v", err)
	}
}

func TestCreateSampleProducesParsableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	cfg := config.Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config should parse: %v", err)
	}
	if cfg.Naming.Template != config.Default().Naming.Template {
		t.Fatalf("sample template drifted from default: %q", cfg.Naming.Template)
	}
	if cfg.Queue.HashAlgorithm != "xxh64" {
		t.Fatalf("unexpected sample hash algorithm: %q", cfg.Queue.HashAlgorithm)
	}
}

func TestEnsureDirectoriesCreatesStateAndWork(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.WorkDir, cfg.Paths.LibraryDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
