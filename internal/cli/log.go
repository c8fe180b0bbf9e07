package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/shaiso/taskflow/internal/mq"
	"github.com/shaiso/taskflow/internal/telemetry"
)

// NewLogCmd создаёт группу команд для журнала аудита.
// amqpURLFn возвращает адрес брокера для log tail.
func NewLogCmd(clientFn func() *Client, outputFn func() *Output, amqpURLFn func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect the audit log",
	}

	cmd.AddCommand(
		newLogListCmd(clientFn, outputFn),
		newLogTailCmd(outputFn, amqpURLFn),
	)

	return cmd
}

var logHeaders = table.Row{"Timestamp", "Action", "Task ID", "User ID", "Role", "Bulk"}

func logRow(e LogEntryResponse) table.Row {
	role, _ := e.Metadata["userRole"].(string)
	bulk, _ := e.Metadata["bulkUpdate"].(bool)
	return table.Row{e.Timestamp, e.Action, e.TaskID, e.UserID, role, bulk}
}

func newLogListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListLogsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit log entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			entries, err := client.ListLogs(cmd.Context(), opts)
			if err != nil {
				return err
			}

			rows := make([]table.Row, len(entries))
			for i, e := range entries {
				rows[i] = logRow(e)
			}

			out.Print(logHeaders, rows, entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.TaskID, "task-id", "", "Only entries for this task (including deleted tasks)")
	cmd.Flags().StringVar(&opts.UserID, "user-id", "", "Only entries by this user")
	cmd.Flags().StringVar(&opts.Action, "action", "", "Filter by action (create, update, delete)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of entries (default 10, max 100)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of entries to skip")

	return cmd
}

func newLogTailCmd(outputFn func() *Output, amqpURLFn func() string) *cobra.Command {
	var action string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream audit events from RabbitMQ until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()

			key := mq.RoutingKeyAll
			if action != "" {
				key = mq.RoutingKey(action)
			}

			// служебные сообщения mq только в stderr
			logger := telemetry.NewLogger(os.Stderr, slog.LevelWarn, "text")

			conn, err := mq.Dial(ctx, amqpURLFn(), logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return err
			}

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Declare: func(ctx context.Context) (mq.Queue, error) {
					return mq.DeclareTailQueue(ctx, conn, key)
				},
				Handler:  tailHandler(out),
				Prefetch: 32,
			})

			out.Success(fmt.Sprintf("Tailing audit events (%s), Ctrl+C to stop", key))
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "Only events with this action (create, update, delete)")
	return cmd
}

// tailHandler печатает каждое событие одной строкой.
func tailHandler(out *Output) mq.Handler {
	return func(_ context.Context, d *mq.Delivery) error {
		entry, err := d.Entry()
		if err != nil {
			// нечитаемое событие не должно блокировать поток
			out.Error(fmt.Sprintf("skip message %s: %v", d.Message.ID, err))
			return nil
		}

		if out.jsonMode {
			out.JSONLine(entry)
			return nil
		}

		role, _ := entry.Metadata["userRole"].(string)
		fmt.Fprintf(out.w, "%s  %-7s  task=%s  user=%s  role=%s\n",
			entry.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			entry.Action, entry.TaskID, entry.UserID, role)
		return nil
	}
}
