package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reencode/internal/deps"
	"reencode/internal/logging"
	"reencode/internal/preflight"
	"reencode/internal/runlock"
	"reencode/internal/services"
	"reencode/internal/transcode"
	"reencode/internal/watch"
	"reencode/internal/workflow"
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var monitor bool

	cmd := &cobra.Command{
		Use:   "encode [id...]",
		Short: "Encode queued jobs",
		Long: `Encode pending jobs oldest first, or only the listed job ids in the given
order. With --monitor the encoder keeps running and picks up jobs queued
by other processes. Only one encoder may run per state directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				lock := runlock.New(a.cfg.EncoderLockPath())
				if err := lock.Acquire(); err != nil {
					return err
				}
				defer lock.Release()

				statuses := preflight.CheckSystemDeps(a.cfg)
				if missing := deps.Missing(statuses); len(missing) > 0 {
					return missingDependenciesError(missing)
				}

				engine, err := transcode.New(a.cfg, a.logger)
				if err != nil {
					return err
				}

				watchQueue := a.cfg.Queue.Monitor
				if cmd.Flags().Changed("monitor") {
					watchQueue = monitor
				}

				opts := []workflow.Option{workflow.WithObserver(newProgressRenderer(cmd.ErrOrStderr()))}
				if snapshotter := thumbnailSnapshotter(a, engine, statuses); snapshotter != nil {
					opts = append(opts, workflow.WithSnapshotter(snapshotter))
				}
				if watchQueue && len(ids) == 0 {
					notifier, err := watch.New(a.cfg.DatabasePath(), watch.DefaultDelay, a.logger)
					if err != nil {
						logging.WarnWithContext(a.logger, "queue change notifications unavailable", "watch_unavailable",
							logging.Error(err),
							logging.String(logging.FieldImpact, "new jobs are picked up on the recheck interval"),
							logging.String(logging.FieldErrorHint, "check inotify limits for the state directory"),
						)
					} else {
						defer notifier.Close()
						opts = append(opts, workflow.WithNotifier(notifier))
					}
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				summary, err := a.manager(engine, opts...).Run(runCtx, workflow.RunOptions{IDs: ids, Monitor: watchQueue})
				printRunSummary(cmd.OutOrStdout(), summary)
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&monitor, "monitor", "m", false, "Keep running and wait for new jobs (default from queue.monitor)")
	return cmd
}

// thumbnailSnapshotter returns the still-frame writer for completed jobs, or
// nil when thumbnails are off or ffmpeg is unavailable.
func thumbnailSnapshotter(a *app, engine transcode.Engine, statuses []deps.Status) transcode.Snapshotter {
	if !a.cfg.Thumbnails.Enabled {
		return nil
	}
	if snapshotter, ok := engine.(transcode.Snapshotter); ok {
		return snapshotter
	}
	for _, status := range statuses {
		if status.Command == a.cfg.Encoding.FFmpegBinary && status.Available {
			return transcode.NewFFmpeg(a.cfg.Encoding.FFmpegBinary, a.cfg.Encoding.FFprobeBinary, a.logger)
		}
	}
	logging.WarnWithContext(a.logger, "thumbnails disabled for this run", "thumbnails_unavailable",
		logging.String(logging.FieldImpact, "completed jobs get no thumbnail"),
		logging.String(logging.FieldErrorHint, "install ffmpeg or set thumbnails.enabled = false"),
	)
	return nil
}

func missingDependenciesError(missing []deps.Status) error {
	parts := make([]string, 0, len(missing))
	for _, status := range missing {
		parts = append(parts, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "encode", "check dependencies",
		"missing "+strings.Join(parts, ", "), nil)
}

func printRunSummary(out io.Writer, summary workflow.RunSummary) {
	if summary.Recovered > 0 {
		fmt.Fprintf(out, "Recovered %d interrupted jobs\n", summary.Recovered)
	}
	fmt.Fprintf(out, "Completed %d, failed %d, cancelled %d, duplicates %d\n",
		summary.Completed, summary.Failed, summary.Cancelled, summary.Duplicates)
}
