package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	WorkDir    string `toml:"work_dir"`
	LibraryDir string `toml:"library_dir"`
}

// Encoding contains the defaults applied to jobs that do not carry their own
// codec selections, plus the engine used to run them.
type Encoding struct {
	Engine            string   `toml:"engine"`
	FFmpegBinary      string   `toml:"ffmpeg_binary"`
	FFprobeBinary     string   `toml:"ffprobe_binary"`
	VideoCodec        string   `toml:"video_codec"`
	AudioCodec        string   `toml:"audio_codec"`
	SubtitleCodec     string   `toml:"subtitle_codec"`
	ExtraParameters   string   `toml:"extra_parameters"`
	Container         string   `toml:"container"`
	AudioLanguages    []string `toml:"audio_languages"`
	SubtitleLanguages []string `toml:"subtitle_languages"`
}

// Naming contains the output path template.
type Naming struct {
	// Template is a text/template rendered with the resolved episode identity.
	// The container extension is appended automatically.
	Template string `toml:"template"`
}

// Queue contains queue and deduplication behaviour.
type Queue struct {
	HashAlgorithm   string `toml:"hash_algorithm"`
	DuplicatePolicy string `toml:"duplicate_policy"`
	Monitor         bool   `toml:"monitor"`
	RecheckInterval int    `toml:"recheck_interval"`
	MinFreeGiB      int    `toml:"min_free_gib"`
}

// Thumbnails contains side artifact settings for completed jobs.
type Thumbnails struct {
	Enabled       bool `toml:"enabled"`
	OffsetSeconds int  `toml:"offset_seconds"`
	Width         int  `toml:"width"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string `toml:"format"`
	Level              string `toml:"level"`
	ProgressBucketSize int    `toml:"progress_bucket_size"`
}

// Config encapsulates all configuration values for reencode.
//
// Configuration sections by subsystem:
//   - Paths: state, log, work, and library directories
//   - Encoding: engine selection and default codec settings
//   - Naming: output path template
//   - Queue: hashing, duplicate handling, and monitoring
//   - Thumbnails: still frames written next to completed outputs
//   - Logging: log format, level, and progress sampling
type Config struct {
	Paths      Paths      `toml:"paths"`
	Encoding   Encoding   `toml:"encoding"`
	Naming     Naming     `toml:"naming"`
	Queue      Queue      `toml:"queue"`
	Thumbnails Thumbnails `toml:"thumbnails"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reencode/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reencode.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the encoder writes into.
// LibraryDir is created on a best-effort basis so queue commands keep working
// when external storage is offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite file holding jobs and rewrite rules.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, defaultDatabaseFileName)
}

// EncoderLockPath returns the lock file guarding the encoder loop.
func (c *Config) EncoderLockPath() string {
	return filepath.Join(c.Paths.StateDir, defaultEncoderLockName)
}

// LogFilePath returns the file that mirrors console logs.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, defaultLogFileName)
}

// RecheckInterval returns the fallback interval between pending-queue checks
// while monitoring.
func (c *Config) RecheckInterval() time.Duration {
	return time.Duration(c.Queue.RecheckInterval) * time.Second
}

// MinFreeBytes returns the free-space floor enforced before each job.
func (c *Config) MinFreeBytes() uint64 {
	if c.Queue.MinFreeGiB <= 0 {
		return 0
	}
	return uint64(c.Queue.MinFreeGiB) << 30
}

// ThumbnailOffset returns the seek position used for thumbnails.
func (c *Config) ThumbnailOffset() time.Duration {
	return time.Duration(c.Thumbnails.OffsetSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
