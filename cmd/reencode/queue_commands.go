package main

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reencode/internal/queue"
	"reencode/internal/runlock"
	"reencode/internal/services"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				stats, err := a.store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if stats.Total() == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, buildQueueStatusRows(stats), []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				jobs, err := a.store.Find(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Episode", "Status", "Updated", "Message"},
					buildQueueListRows(jobs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				job, err := a.store.Get(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if job == nil {
					return services.Wrap(services.ErrNotFound, "queue", "show", fmt.Sprintf("job %d", ids[0]), nil)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJobDetail(job))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearStatuses []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete idle jobs",
		Long:  "Delete pending, completed, and failed jobs, or only those in the given statuses. Running jobs are never deleted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(clearStatuses)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				removed, err := a.manager(nil).ClearQueue(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, pluralJobs(removed))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&clearStatuses, "status", "s", nil, "Only clear jobs in this status (repeatable)")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Delete specific jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				if err := a.manager(nil).RemoveJobs(cmd.Context(), ids); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", len(ids), pluralJobs(int64(len(ids))))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed jobs to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				manager := a.manager(nil)
				var n int64
				if len(ids) == 0 {
					n, err = manager.ResetFailedQueue(cmd.Context())
				} else {
					n, err = manager.ResetQueueItems(cmd.Context(), ids, []queue.Status{queue.StatusFailed})
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d failed %s\n", n, pluralJobs(n))
				return nil
			})
		},
	}
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	var resetStatuses []string
	var force bool

	cmd := &cobra.Command{
		Use:   "reset [id...]",
		Short: "Return jobs in any status to pending",
		Long: `Return the listed jobs, or every job in the given statuses, to pending so
they are encoded again. Resetting active jobs is refused while an encoder is
running unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			statuses, err := parseStatuses(resetStatuses)
			if err != nil {
				return err
			}
			if len(ids) == 0 && len(statuses) == 0 {
				return errors.New("specify job ids or --status")
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				if !force && (len(statuses) == 0 || slices.Contains(statuses, queue.StatusActive)) {
					busy, err := runlock.InUse(a.cfg.EncoderLockPath())
					if err != nil {
						return err
					}
					if busy {
						return services.Wrap(services.ErrAlreadyActive, "queue", "reset",
							"an encoder is running; stop it or pass --force", nil)
					}
				}
				n, err := a.manager(nil).ResetQueueItems(cmd.Context(), ids, statuses)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d %s to pending\n", n, pluralJobs(n))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&resetStatuses, "status", "s", nil, "Reset jobs in this status (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "Reset even while an encoder is running")
	return cmd
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, err := queue.ParseStatus(value)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func pluralJobs(n int64) string {
	if n == 1 {
		return "job"
	}
	return "jobs"
}
