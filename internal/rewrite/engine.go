package rewrite

import (
	"context"
	"log/slog"

	"reencode/internal/episode"
	"reencode/internal/logging"
)

// Engine applies stored rules to resolved identities and records new ones.
type Engine struct {
	store  *Store
	logger *slog.Logger
}

// NewEngine returns an engine reading and writing rules through store.
func NewEngine(store *Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{store: store, logger: logging.NewComponentLogger(logger, "rewrite")}
}

// Store exposes the engine's rule store.
func (e *Engine) Store() *Store {
	return e.store
}

// Apply tries the series' rules in store order and returns the identity
// produced by the first rule that changes it. The returned rule is nil when
// nothing applied.
func (e *Engine) Apply(ctx context.Context, id episode.Identity) (episode.Identity, *Rule, error) {
	rules, err := e.store.FindRules(ctx, id.Series)
	if err != nil {
		return id, nil, err
	}
	for i := range rules {
		rewritten, applied := rules[i].Apply(id)
		if !applied {
			continue
		}
		e.logger.DebugContext(ctx, "rewrite rule applied",
			logging.Int64("rule_id", rules[i].ID),
			logging.String("series", id.Series),
			logging.String("new_series", rewritten.Series),
			logging.Int("episode", id.Episode),
			logging.Int("new_episode", rewritten.Episode),
		)
		return rewritten, &rules[i], nil
	}
	return id, nil, nil
}

// AddOrUpdateRule validates criteria and upserts them into the series bucket
// followed by a session checkpoint. The caller commits or rolls back.
func (e *Engine) AddOrUpdateRule(ctx context.Context, c Criteria) (*Rule, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	rule, err := e.store.Upsert(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := e.store.Session().Checkpoint(ctx); err != nil {
		return nil, storageError("checkpoint", err)
	}
	if rule.IsInert() {
		logging.WarnWithContext(e.logger, "rewrite rule has no new series or season", "rewrite_rule_inert",
			logging.String(logging.FieldErrorHint, "pass --new-series or --new-season for the rule to take effect"),
			logging.String(logging.FieldImpact, "matching files keep their resolved identity"),
			logging.String("series", rule.Series),
		)
	}
	return rule, nil
}
