package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yehx1/video-translate/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the task queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueuePositionCommand(ctx))
	queueCmd.AddCommand(newQueueStopCommand(ctx))
	queueCmd.AddCommand(newQueueRestartCommand(ctx))
	queueCmd.AddCommand(newQueueConfirmCommand(ctx))
	queueCmd.AddCommand(newQueueReburnCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))

	return queueCmd
}

func (c *commandContext) openStore() (*queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg)
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []queue.Status
			for _, raw := range listStatuses {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			tasks, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				rows = append(rows, []string{
					strconv.FormatInt(task.ID, 10),
					task.Title,
					string(task.QueuedFor),
					string(task.Status),
					fmt.Sprintf("%d%%", task.Progress),
					task.Msg,
					task.CreatedAt.Local().Format(time.DateTime),
				})
			}
			out := renderTable(
				[]string{"ID", "Title", "Phase", "Status", "Progress", "Message", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueuePositionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "position <id>",
		Short: "Show a task's position in the admission order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			if client := ctx.dialClient(); client != nil {
				defer client.Close()
				resp, err := client.QueuePosition(id)
				if err != nil {
					return err
				}
				printPosition(cmd, resp.Position, resp.Total)
				return nil
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			position, total, err := store.QueuePosition(cmd.Context(), id)
			if err != nil {
				return err
			}
			printPosition(cmd, position, total)
			return nil
		},
	}
}

func printPosition(cmd *cobra.Command, position, total int) {
	if position == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Not queued (%d task(s) waiting)\n", total)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Position %d of %d\n", position, total)
}

func newQueueStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a queued or running task",
		RunE:  stopRunE(ctx),
		Args:  cobra.ExactArgs(1),
	}
}

// stopRunE prefers the daemon so running subprocesses are terminated; when
// no daemon is listening the task can only be queued, so the direct store
// transition suffices.
func stopRunE(ctx *commandContext) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}

		if client := ctx.dialClient(); client != nil {
			defer client.Close()
			resp, err := client.StopTask(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d stopped: %s\n", resp.ID, resp.Status)
			return nil
		}

		store, err := ctx.openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		task, err := store.StopTask(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %d stopped: %s\n", task.ID, task.Status)
		return nil
	}
}

func newQueueRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <id>",
		Short: "Restart a settled task from the beginning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.transition(cmd, args[0], func(store *queue.Store, id int64, maxQueued int) (*queue.Task, error) {
				return store.RestartTask(cmd.Context(), id, maxQueued)
			})
		},
	}
}

func newQueueConfirmCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <id>",
		Short: "Accept the reviewed translation and queue finalization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.transition(cmd, args[0], func(store *queue.Store, id int64, maxQueued int) (*queue.Task, error) {
				return store.ConfirmTask(cmd.Context(), id, maxQueued)
			})
		},
	}
}

func newQueueReburnCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reburn <id>",
		Short: "Re-render captions for a finished task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.transition(cmd, args[0], func(store *queue.Store, id int64, maxQueued int) (*queue.Task, error) {
				return store.RequestReburn(cmd.Context(), id, maxQueued)
			})
		},
	}
}

func (c *commandContext) transition(cmd *cobra.Command, arg string, fn func(*queue.Store, int64, int) (*queue.Task, error)) error {
	id, err := parseTaskID(arg)
	if err != nil {
		return err
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	task, err := fn(store, id, cfg.Dispatcher.MaxQueuedPerUser)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task %d is now %s (%s)\n", task.ID, task.Status, task.QueuedFor)
	return nil
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a task and its subtitles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("task %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d removed\n", id)
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if client := ctx.dialClient(); client != nil {
				defer client.Close()
				resp, err := client.Status()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon running (worker %s, up since %s)\n",
					resp.WorkerID, resp.StartedAt.Local().Format(time.DateTime))
				printHealth(cmd, queue.HealthSummary{
					Total:      resp.Total,
					Queued:     resp.Queued,
					Processing: resp.Processing,
					Review:     resp.Review,
					Success:    resp.Success,
					Failed:     resp.Failed,
				})
				return nil
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon not running")
			printHealth(cmd, health)
			return nil
		},
	}
}

func printHealth(cmd *cobra.Command, health queue.HealthSummary) {
	rows := [][]string{
		{"Queued", strconv.Itoa(health.Queued)},
		{"Processing", strconv.Itoa(health.Processing)},
		{"Review", strconv.Itoa(health.Review)},
		{"Success", strconv.Itoa(health.Success)},
		{"Failed", strconv.Itoa(health.Failed)},
		{"Total", strconv.Itoa(health.Total)},
	}
	out := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
	fmt.Fprintln(cmd.OutOrStdout(), out)
}
