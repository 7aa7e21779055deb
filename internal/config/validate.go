package config

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateNaming(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateThumbnails(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.LibraryDir == "" {
		return errors.New("paths.library_dir must be set")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	switch c.Encoding.Engine {
	case EngineFFmpeg, EngineDrapto:
	default:
		return fmt.Errorf("encoding.engine must be %q or %q, got %q", EngineFFmpeg, EngineDrapto, c.Encoding.Engine)
	}
	if c.Encoding.Engine == EngineFFmpeg && c.Encoding.VideoCodec == "" {
		return errors.New("encoding.video_codec must be set when encoding.engine is ffmpeg")
	}
	if strings.ContainsAny(c.Encoding.Container, `/\`) {
		return fmt.Errorf("encoding.container %q must be a bare extension", c.Encoding.Container)
	}
	return nil
}

func (c *Config) validateNaming() error {
	if strings.TrimSpace(c.Naming.Template) == "" {
		return errors.New("naming.template must be set")
	}
	if _, err := template.New("naming").Option("missingkey=error").Parse(c.Naming.Template); err != nil {
		return fmt.Errorf("naming.template: %w", err)
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.HashAlgorithm {
	case "xxh64", "sha256":
	default:
		return fmt.Errorf("queue.hash_algorithm must be xxh64 or sha256, got %q", c.Queue.HashAlgorithm)
	}
	switch c.Queue.DuplicatePolicy {
	case DuplicateKeep, DuplicateDiscard:
	default:
		return fmt.Errorf("queue.duplicate_policy must be %q or %q, got %q", DuplicateKeep, DuplicateDiscard, c.Queue.DuplicatePolicy)
	}
	if c.Queue.RecheckInterval < 0 {
		return errors.New("queue.recheck_interval must be positive")
	}
	if c.Queue.MinFreeGiB < 0 {
		return errors.New("queue.min_free_gib must be zero or positive")
	}
	return nil
}

func (c *Config) validateThumbnails() error {
	if !c.Thumbnails.Enabled {
		return nil
	}
	if c.Thumbnails.OffsetSeconds < 0 {
		return errors.New("thumbnails.offset_seconds must be zero or positive")
	}
	if c.Thumbnails.Width < 16 {
		return errors.New("thumbnails.width must be at least 16")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
