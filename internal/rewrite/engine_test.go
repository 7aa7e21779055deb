package rewrite_test

import (
	"context"
	"errors"
	"testing"

	"reencode/internal/episode"
	"reencode/internal/rewrite"
	"reencode/internal/services"
	"reencode/internal/testsupport"
)

func newEngine(t *testing.T) *rewrite.Engine {
	t.Helper()
	return rewrite.NewEngine(testsupport.MustOpenRules(t, testsupport.NewConfig(t)), nil)
}

func TestAddOrUpdateRuleUpdatesPlaceholderInPlace(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	first, err := engine.AddOrUpdateRule(ctx, rewrite.Criteria{Series: "Arte", NewSeriesName: "Arte (2020)"})
	if err != nil {
		t.Fatalf("AddOrUpdateRule: %v", err)
	}
	second, err := engine.AddOrUpdateRule(ctx, rewrite.Criteria{Series: "ARTE", NewSeriesName: "Arte 2020"})
	if err != nil {
		t.Fatalf("AddOrUpdateRule: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected placeholder to be updated, got ids %d and %d", first.ID, second.ID)
	}

	rules, err := engine.Store().FindRules(ctx, "arte")
	if err != nil {
		t.Fatalf("FindRules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected one rule, got %d", len(rules))
	}
	if rules[0].NewSeriesName != "Arte 2020" || rules[0].Series != "Arte" {
		t.Fatalf("unexpected rule: %+v", rules[0])
	}
}

func TestFindRulesOrdersByOldEpisodeThenSeason(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	add := func(c rewrite.Criteria) {
		t.Helper()
		if _, err := engine.AddOrUpdateRule(ctx, c); err != nil {
			t.Fatalf("AddOrUpdateRule: %v", err)
		}
	}
	add(rewrite.Criteria{Series: "X", OldSeason: intPtr(1), OldEpisode: intPtr(13), NewSeason: intPtr(2), NewEpisode: intPtr(1)})
	add(rewrite.Criteria{Series: "X", OldSeason: intPtr(1), OldEpisode: intPtr(26), NewSeason: intPtr(3), NewEpisode: intPtr(1)})
	add(rewrite.Criteria{Series: "X", OldSeason: intPtr(2), NewSeason: intPtr(4)})
	add(rewrite.Criteria{Series: "X", OldSeason: intPtr(3), NewSeason: intPtr(5)})

	rules, err := engine.Store().FindRules(ctx, "X")
	if err != nil {
		t.Fatalf("FindRules: %v", err)
	}
	if len(rules) != 4 {
		t.Fatalf("expected 4 rules, got %d", len(rules))
	}
	if *rules[0].OldEpisode != 26 || *rules[1].OldEpisode != 13 {
		t.Fatalf("episode ordering wrong: %v, %v", *rules[0].OldEpisode, *rules[1].OldEpisode)
	}
	if rules[2].OldEpisode != nil || *rules[2].OldSeason != 3 || *rules[3].OldSeason != 2 {
		t.Fatalf("season ordering wrong: %+v %+v", rules[2], rules[3])
	}
}

func TestApplyUsesFirstMatchingRule(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	for _, c := range []rewrite.Criteria{
		{Series: "X", OldSeason: intPtr(1), OldEpisode: intPtr(13), NewSeason: intPtr(2), NewEpisode: intPtr(1)},
		{Series: "X", OldSeason: intPtr(1), OldEpisode: intPtr(26), NewSeason: intPtr(3), NewEpisode: intPtr(1)},
	} {
		if _, err := engine.AddOrUpdateRule(ctx, c); err != nil {
			t.Fatalf("AddOrUpdateRule: %v", err)
		}
	}

	got, rule, err := engine.Apply(ctx, episode.Identity{Series: "x", Season: intPtr(1), Episode: 30})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rule == nil || *rule.OldEpisode != 26 {
		t.Fatalf("expected the episode 26 rule, got %+v", rule)
	}
	if *got.Season != 3 || got.Episode != 5 {
		t.Fatalf("unexpected identity: season=%d episode=%d", *got.Season, got.Episode)
	}

	got, rule, err = engine.Apply(ctx, episode.Identity{Series: "X", Season: intPtr(1), Episode: 14})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rule == nil || *got.Season != 2 || got.Episode != 2 {
		t.Fatalf("unexpected identity: season=%v episode=%d rule=%+v", got.Season, got.Episode, rule)
	}

	untouched := episode.Identity{Series: "X", Season: intPtr(1), Episode: 3}
	got, rule, err = engine.Apply(ctx, untouched)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rule != nil || got.Episode != 3 || *got.Season != 1 {
		t.Fatalf("expected no rule to apply, got %+v", rule)
	}
}

func TestApplyWithoutBucketReturnsIdentity(t *testing.T) {
	engine := newEngine(t)
	id := episode.Identity{Series: "Unknown", Episode: 2}
	got, rule, err := engine.Apply(context.Background(), id)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rule != nil || got.Series != "Unknown" {
		t.Fatalf("unexpected result: %+v %+v", got, rule)
	}
}

// Refining a series that only has a rename rule overwrites the rename, and
// criteria with no new values are stored as an inert rule. Both are long
// standing behaviors of the placeholder upsert.
func TestAddOrUpdateRulePlaceholderEdgeCases(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	if _, err := engine.AddOrUpdateRule(ctx, rewrite.Criteria{Series: "Y", NewSeriesName: "Why"}); err != nil {
		t.Fatalf("AddOrUpdateRule: %v", err)
	}
	if _, err := engine.AddOrUpdateRule(ctx, rewrite.Criteria{Series: "Y", OldSeason: intPtr(1), OldEpisode: intPtr(10), NewSeason: intPtr(2), NewEpisode: intPtr(1)}); err != nil {
		t.Fatalf("AddOrUpdateRule: %v", err)
	}
	rules, err := engine.Store().FindRules(ctx, "Y")
	if err != nil {
		t.Fatalf("FindRules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected the rename placeholder to be replaced, got %d rules", len(rules))
	}
	if rules[0].NewSeriesName != "" {
		t.Fatalf("rename survived: %+v", rules[0])
	}

	inert, err := engine.AddOrUpdateRule(ctx, rewrite.Criteria{Series: "Z", OldEpisode: intPtr(4)})
	if err != nil {
		t.Fatalf("AddOrUpdateRule: %v", err)
	}
	if !inert.IsInert() {
		t.Fatalf("expected inert rule, got %+v", inert)
	}
	got, rule, err := engine.Apply(ctx, episode.Identity{Series: "Z", Episode: 9})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rule != nil || got.Episode != 9 {
		t.Fatalf("inert rule changed identity: %+v", got)
	}
}

func TestAddOrUpdateRuleValidatesCriteria(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	for _, c := range []rewrite.Criteria{
		{Series: "  "},
		{Series: "X", OldEpisode: intPtr(-1)},
		{Series: "X", NewSeason: intPtr(-2)},
	} {
		if _, err := engine.AddOrUpdateRule(ctx, c); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", c, err)
		}
	}
}

func TestAddOrUpdateRuleRollsBackUncommitted(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	if _, err := engine.AddOrUpdateRule(ctx, rewrite.Criteria{Series: "Kept", NewSeriesName: "Kept!"}); err != nil {
		t.Fatalf("AddOrUpdateRule: %v", err)
	}
	if err := engine.Store().Session().Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := engine.AddOrUpdateRule(ctx, rewrite.Criteria{Series: "Dropped", NewSeriesName: "Gone"}); err != nil {
		t.Fatalf("AddOrUpdateRule: %v", err)
	}
	if err := engine.Store().Session().Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	all, err := engine.Store().AllRules(ctx)
	if err != nil {
		t.Fatalf("AllRules: %v", err)
	}
	if len(all) != 1 || all[0].Series != "Kept" {
		t.Fatalf("unexpected rules after rollback: %+v", all)
	}
}
