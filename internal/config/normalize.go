package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncoding()
	c.normalizeQueue()
	c.normalizeThumbnails()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("REENCODE_STATE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.StateDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("REENCODE_LIBRARY_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.LibraryDir = strings.TrimSpace(value)
	}
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Engine = strings.ToLower(strings.TrimSpace(c.Encoding.Engine))
	if c.Encoding.Engine == "" {
		c.Encoding.Engine = defaultEngine
	}
	c.Encoding.FFmpegBinary = strings.TrimSpace(c.Encoding.FFmpegBinary)
	if c.Encoding.FFmpegBinary == "" {
		c.Encoding.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoding.FFprobeBinary = strings.TrimSpace(c.Encoding.FFprobeBinary)
	if c.Encoding.FFprobeBinary == "" {
		c.Encoding.FFprobeBinary = defaultFFprobeBinary
	}
	c.Encoding.VideoCodec = strings.TrimSpace(c.Encoding.VideoCodec)
	c.Encoding.AudioCodec = strings.TrimSpace(c.Encoding.AudioCodec)
	c.Encoding.SubtitleCodec = strings.TrimSpace(c.Encoding.SubtitleCodec)
	c.Encoding.ExtraParameters = strings.TrimSpace(c.Encoding.ExtraParameters)
	c.Encoding.Container = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Encoding.Container)), ".")
	if c.Encoding.Container == "" {
		c.Encoding.Container = defaultContainer
	}
	c.Encoding.AudioLanguages = normalizeLanguages(c.Encoding.AudioLanguages)
	c.Encoding.SubtitleLanguages = normalizeLanguages(c.Encoding.SubtitleLanguages)
}

func normalizeLanguages(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		lang := strings.ToLower(strings.TrimSpace(value))
		if lang == "" {
			continue
		}
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	return out
}

func (c *Config) normalizeQueue() {
	c.Queue.HashAlgorithm = strings.ToLower(strings.TrimSpace(c.Queue.HashAlgorithm))
	if c.Queue.HashAlgorithm == "" {
		c.Queue.HashAlgorithm = defaultHashAlgorithm
	}
	c.Queue.DuplicatePolicy = strings.ToLower(strings.TrimSpace(c.Queue.DuplicatePolicy))
	if c.Queue.DuplicatePolicy == "" {
		c.Queue.DuplicatePolicy = defaultDuplicatePolicy
	}
	if c.Queue.RecheckInterval == 0 {
		c.Queue.RecheckInterval = defaultRecheckInterval
	}
}

func (c *Config) normalizeThumbnails() {
	if c.Thumbnails.Width == 0 {
		c.Thumbnails.Width = defaultThumbnailWidth
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "text", "pretty":
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.ProgressBucketSize <= 0 {
		c.Logging.ProgressBucketSize = defaultProgressBucketSize
	}
}
