package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"reencode/internal/rewrite"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage series rewrite rules",
	}
	rulesCmd.AddCommand(newRulesListCommand(ctx))
	rulesCmd.AddCommand(newRulesSetCommand(ctx))
	return rulesCmd
}

func newRulesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [series]",
		Short: "List rewrite rules, optionally for one series",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				var rules []rewrite.Rule
				var err error
				if len(args) == 1 {
					rules, err = a.rules.Store().FindRules(cmd.Context(), args[0])
				} else {
					rules, err = a.rules.Store().AllRules(cmd.Context())
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(rules) == 0 {
					fmt.Fprintln(out, "No rewrite rules")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Series", "Old season", "Old episode", "New season", "New episode", "New series"},
					buildRuleRows(rules),
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newRulesSetCommand(ctx *commandContext) *cobra.Command {
	var criteria rewrite.Criteria
	var oldSeason, oldEpisode, newSeason, newEpisode int

	cmd := &cobra.Command{
		Use:   "set <series>",
		Short: "Add or update a rewrite rule",
		Long: `Add a rule to the series' bucket. A rule with the same season and episode
filters replaces the existing one. Without --old-season and --old-episode the
rule applies to every episode of the series.

Example: episodes 25 and later of "Darwin's Game" stored as season 1 are
really season 2 starting at episode 1:

  reencode rules set "Darwin's Game" --old-episode 25 --new-season 2 --new-episode 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria.Series = args[0]
			flags := cmd.Flags()
			criteria.OldSeason = intFlag(flags, "old-season", oldSeason)
			criteria.OldEpisode = intFlag(flags, "old-episode", oldEpisode)
			criteria.NewSeason = intFlag(flags, "new-season", newSeason)
			criteria.NewEpisode = intFlag(flags, "new-episode", newEpisode)

			return ctx.withApp(cmd.Context(), func(a *app) error {
				session := a.rules.Store().Session()
				rule, err := a.rules.AddOrUpdateRule(cmd.Context(), criteria)
				if err != nil {
					_ = session.Rollback()
					return err
				}
				if err := session.Commit(); err != nil {
					return fmt.Errorf("commit rewrite rule: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved rule #%d for %s\n", rule.ID, rule.Series)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&oldSeason, "old-season", 0, "Only rewrite files resolved to this season (0 matches files without one)")
	cmd.Flags().IntVar(&oldEpisode, "old-episode", 0, "Only rewrite episodes at or after this number")
	cmd.Flags().IntVar(&newSeason, "new-season", 0, "Season to assign")
	cmd.Flags().IntVar(&newEpisode, "new-episode", 0, "Episode number --old-episode maps to")
	cmd.Flags().StringVar(&criteria.NewSeriesName, "new-series", "", "Series name to assign")
	return cmd
}

func intFlag(flags *pflag.FlagSet, name string, value int) *int {
	if !flags.Changed(name) {
		return nil
	}
	return &value
}

func buildRuleRows(rules []rewrite.Rule) [][]string {
	rows := make([][]string, 0, len(rules))
	for _, rule := range rules {
		rows = append(rows, []string{
			fmt.Sprintf("%d", rule.ID),
			rule.Series,
			optionalInt(rule.OldSeason),
			optionalInt(rule.OldEpisode),
			optionalInt(rule.NewSeason),
			optionalInt(rule.NewEpisode),
			orDash(strings.TrimSpace(rule.NewSeriesName)),
		})
	}
	return rows
}

func optionalInt(value *int) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *value)
}
