package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reencode/internal/config"
	"reencode/internal/episode"
	"reencode/internal/ingest"
	"reencode/internal/queue"
	"reencode/internal/services"
	"reencode/internal/transcode"
	"reencode/internal/workflow"
)

type addFlags struct {
	videoCodec       string
	audioCodec       string
	subtitleCodec    string
	extra            string
	stereo           string
	allStreams       bool
	skipDuplicates   bool
	removeDuplicates bool
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var flags addFlags

	cmd := &cobra.Command{
		Use:   "add <file|directory>...",
		Short: "Queue episode files for encoding",
		Long: `Resolve each file's series and episode from its name, apply rewrite rules,
and queue it for encoding into the library. Directories are scanned
recursively for media files. Files that cannot be queued are reported and
skipped; the command fails at the end if any were skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.skipDuplicates && flags.removeDuplicates {
				return errors.New("specify only one of --skip-duplicates or --remove-duplicates")
			}
			stereo, err := queue.ParseStereoMode(flags.stereo)
			if err != nil {
				return err
			}
			sources, err := collectSources(args)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return errors.New("no media files found")
			}
			action := workflow.DuplicateWarn
			switch {
			case flags.skipDuplicates:
				action = workflow.DuplicateSkip
			case flags.removeDuplicates:
				action = workflow.DuplicateRemove
			}
			opts := ingest.Options{
				VideoCodec:      flags.videoCodec,
				AudioCodec:      flags.audioCodec,
				SubtitleCodec:   flags.subtitleCodec,
				ExtraParameters: flags.extra,
				StereoMode:      stereo,
				KeepAllStreams:  flags.allStreams,
			}

			return ctx.withApp(cmd.Context(), func(a *app) error {
				engine, err := transcode.New(a.cfg, a.logger)
				if err != nil {
					return err
				}
				planner, err := ingest.NewPlanner(a.cfg, a.rules, engine, a.hasher, a.logger)
				if err != nil {
					return err
				}
				manager := a.manager(engine)
				out := cmd.OutOrStdout()

				skipped := 0
				for _, source := range sources {
					plan, err := planner.Plan(cmd.Context(), source, opts)
					if err != nil {
						if errors.Is(err, services.ErrStorage) {
							return err
						}
						skipped++
						fmt.Fprintf(out, "Skipped %s: %v\n", source, err)
						continue
					}
					admission, err := manager.Enqueue(cmd.Context(), plan.Job, action)
					if err != nil {
						if errors.Is(err, services.ErrStorage) {
							return err
						}
						skipped++
						fmt.Fprintf(out, "Skipped %s: %v\n", source, err)
						continue
					}
					printAdmission(out, plan, admission)
				}
				if skipped > 0 {
					return fmt.Errorf("%d of %d files were not queued", skipped, len(sources))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.videoCodec, "video-codec", "", "Video encoder for these jobs (default from [encoding])")
	cmd.Flags().StringVar(&flags.audioCodec, "audio-codec", "", "Audio encoder for these jobs (default from [encoding])")
	cmd.Flags().StringVar(&flags.subtitleCodec, "subtitle-codec", "", "Subtitle encoder for these jobs (default from [encoding])")
	cmd.Flags().StringVar(&flags.extra, "extra", "", "Extra encoder parameters, split shell-style")
	cmd.Flags().StringVar(&flags.stereo, "stereo", "", "Stereoscopic packing of the source: mono, sbs, hsbs, tab, htab")
	cmd.Flags().BoolVar(&flags.allStreams, "all-streams", false, "Keep every stream instead of filtering by language")
	cmd.Flags().BoolVar(&flags.skipDuplicates, "skip-duplicates", false, "Do not queue files whose content was already encoded")
	cmd.Flags().BoolVar(&flags.removeDuplicates, "remove-duplicates", false, "Delete source files whose content was already encoded")
	return cmd
}

// collectSources expands args into the files to plan. Directories contribute
// every non-hidden file with a known media extension, in lexical order.
// Paths that do not exist are passed through so planning reports them.
func collectSources(args []string) ([]string, error) {
	var sources []string
	for _, arg := range args {
		path, err := config.ExpandPath(strings.TrimSpace(arg))
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", arg, err)
		}
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			sources = append(sources, path)
			continue
		}
		err = filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			name := d.Name()
			if entry != path && strings.HasPrefix(name, ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := episode.ContainerForExtension(filepath.Ext(name)); ok {
				sources = append(sources, entry)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
	}
	return sources, nil
}

func printAdmission(out io.Writer, plan *ingest.Plan, admission workflow.Admission) {
	job := admission.Job
	source := plan.Job.SourcePath
	switch {
	case admission.Skipped:
		fmt.Fprintf(out, "Skipped %s: content was already encoded\n", source)
		return
	case admission.Removed:
		fmt.Fprintf(out, "Removed %s: content was already encoded\n", source)
		return
	}
	verb := "Queued"
	if admission.Updated {
		verb = "Requeued"
	}
	fmt.Fprintf(out, "%s #%d %s (%s) -> %s\n", verb, job.ID, job.Label(), humanize.Bytes(uint64(max(job.SourceSize, 0))), job.OutputPath)
	if plan.Rule != nil {
		fmt.Fprintf(out, "  rewrite rule #%d applied to %q\n", plan.Rule.ID, plan.Rule.Series)
	}
	if len(job.Streams) > 0 {
		fmt.Fprintf(out, "  keeping streams %s\n", formatStreams(job.Streams))
	}
	if admission.Duplicate {
		fmt.Fprintf(out, "  warning: content of %s was already encoded; queued anyway\n", filepath.Base(source))
	}
}

func formatStreams(streams []int) string {
	parts := make([]string, len(streams))
	for i, index := range streams {
		parts[i] = fmt.Sprintf("%d", index)
	}
	return strings.Join(parts, ",")
}
