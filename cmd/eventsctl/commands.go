package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/delifood/delifood/internal/events"
)

// opener connects to the broker lazily so --help works offline.
type opener func(ctx context.Context) (events.Inspector, func(), error)

type replayResult struct {
	Queue    string `json:"queue"`
	Replayed int    `json:"replayed"`
}

func newRootCmd(open opener) *cobra.Command {
	var asJSON bool
	root := &cobra.Command{
		Use:           "eventsctl",
		Short:         "Inspect delifood event queues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON")

	// query wraps a single inspector call in a subcommand.
	query := func(use, short string, fn func(ctx context.Context, in events.Inspector, arg string) (any, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				in, closeFn, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()
				out, err := fn(cmd.Context(), in, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(out)
				}
				printTable(cmd.OutOrStdout(), out)
				return nil
			},
		}
	}

	root.AddCommand(
		query("bindings <topic>", "List queues bound to a topic", func(ctx context.Context, in events.Inspector, topic string) (any, error) {
			queues, err := in.Bindings(ctx, topic)
			if queues == nil {
				queues = []string{}
			}
			return queues, err
		}),
		query("dead <queue>", "List dead-lettered envelopes", func(ctx context.Context, in events.Inspector, queue string) (any, error) {
			envs, err := in.DeadLetters(ctx, queue)
			if envs == nil {
				envs = []events.Envelope{}
			}
			return envs, err
		}),
		query("replay <queue>", "Requeue every dead-lettered envelope", func(ctx context.Context, in events.Inspector, queue string) (any, error) {
			n, err := in.Replay(ctx, queue)
			return replayResult{Queue: queue, Replayed: n}, err
		}),
		query("stats <queue>", "Show queue counters", func(ctx context.Context, in events.Inspector, queue string) (any, error) {
			return in.Stats(ctx, queue)
		}),
	)
	return root
}

func printTable(w io.Writer, out any) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	switch v := out.(type) {
	case []string:
		for _, q := range v {
			fmt.Fprintln(tw, q)
		}
	case []events.Envelope:
		fmt.Fprintln(tw, "ID\tTOPIC\tTIMESTAMP\tPAYLOAD")
		for _, env := range v {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", env.ID, env.Topic, env.Timestamp.Format(time.RFC3339), env.Payload)
		}
	case replayResult:
		fmt.Fprintf(tw, "replayed %d message(s) on %s\n", v.Replayed, v.Queue)
	case events.QueueStats:
		fmt.Fprintln(tw, "QUEUE\tPENDING\tACKED\tREDELIVERED\tDEAD")
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", v.Queue, v.Pending, v.Acked, v.Redelivered, v.DeadLettered)
	}
}
