package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reencode/internal/episode"
	"reencode/internal/ingest"
	"reencode/internal/media/ffprobe"
	"reencode/internal/media/tracks"
	"reencode/internal/transcode"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <filename>...",
		Short: "Show how filenames resolve to episodes and library paths",
		Long: `Resolve each filename to a series, season, and episode, apply rewrite rules,
and print the library path it would be encoded to. Files are not read, so
the names need not exist.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				planner, err := ingest.NewPlanner(a.cfg, a.rules, nil, a.hasher, a.logger)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(args))
				for _, name := range args {
					resolved, ok := episode.Resolve(name)
					if !ok {
						rows = append(rows, []string{filepath.Base(name), "not recognized", "", "", "", "", ""})
						continue
					}
					identity, rule, err := a.rules.Apply(cmd.Context(), resolved)
					if err != nil {
						return err
					}
					output, err := planner.OutputPath(identity)
					if err != nil {
						output = err.Error()
					}
					ruleLabel := "-"
					if rule != nil {
						ruleLabel = fmt.Sprintf("#%d", rule.ID)
					}
					rows = append(rows, []string{
						filepath.Base(name),
						identity.Series,
						optionalInt(identity.Season),
						fmt.Sprintf("%d", identity.Episode),
						orDash(identity.EpisodeName),
						ruleLabel,
						output,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"File", "Series", "Season", "Episode", "Title", "Rule", "Output"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "List a file's streams and which ones would be kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			engine, err := transcode.New(cfg, logger)
			if err != nil {
				return err
			}
			result, err := engine.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			selection := tracks.Select(result.Raw, tracks.Preferences{
				AudioLanguages:    cfg.Encoding.AudioLanguages,
				SubtitleLanguages: cfg.Encoding.SubtitleLanguages,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s, %s, %d streams\n", filepath.Base(args[0]),
				result.Duration.Round(time.Second), formatSize(result.Size), len(result.Raw.Streams))
			fmt.Fprint(out, renderTable(
				[]string{"Index", "Type", "Codec", "Language", "Details", "Title", "Keep"},
				buildStreamRows(result.Raw.Streams, selection),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			if label := selection.PrimaryLabel(); label != "" {
				fmt.Fprintf(out, "Primary audio: %s\n", label)
			}
			return nil
		},
	}
}

func buildStreamRows(streams []ffprobe.Stream, selection tracks.Selection) [][]string {
	rows := make([][]string, 0, len(streams))
	for _, stream := range streams {
		rows = append(rows, []string{
			fmt.Sprintf("%d", stream.Index),
			stream.CodecType,
			orDash(stream.CodecName),
			orDash(stream.Language()),
			streamDetails(stream),
			orDash(stream.Title()),
			yesNo(!slices.Contains(selection.Removed, stream.Index)),
		})
	}
	return rows
}

func streamDetails(stream ffprobe.Stream) string {
	var parts []string
	switch stream.CodecType {
	case ffprobe.TypeVideo:
		if stream.Width > 0 && stream.Height > 0 {
			parts = append(parts, fmt.Sprintf("%dx%d", stream.Width, stream.Height))
		}
	case ffprobe.TypeAudio:
		if layout := strings.TrimSpace(stream.ChannelLayout); layout != "" {
			parts = append(parts, layout)
		} else if stream.Channels > 0 {
			parts = append(parts, fmt.Sprintf("%dch", stream.Channels))
		}
	}
	if stream.IsDefault() {
		parts = append(parts, "default")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
