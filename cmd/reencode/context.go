package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reencode/internal/config"
	"reencode/internal/contenthash"
	"reencode/internal/database"
	"reencode/internal/logging"
	"reencode/internal/queue"
	"reencode/internal/rewrite"
	"reencode/internal/transcode"
	"reencode/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// app bundles what one command invocation needs from the state directory.
// Queue and rule stores share a single database session.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	rules  *rewrite.Engine
	hasher contenthash.Hasher
}

func (c *commandContext) withApp(ctx context.Context, fn func(*app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	hasher, err := contenthash.New(cfg.Queue.HashAlgorithm)
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open queue database: %w", err)
	}
	defer db.Close()
	session := db.NewSession()
	defer session.Close()

	return fn(&app{
		cfg:    cfg,
		logger: logger,
		store:  queue.NewStore(session),
		rules:  rewrite.NewEngine(rewrite.NewStore(session), logger),
		hasher: hasher,
	})
}

func (a *app) manager(engine transcode.Engine, opts ...workflow.Option) *workflow.Manager {
	return workflow.NewManager(a.cfg, a.store, engine, a.hasher, a.logger, opts...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
