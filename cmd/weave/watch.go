package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/casualjim/weave/internal/broker"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newWatchCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <topic>",
		Short: "Follow the updates a run publishes with --publish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			inf, err := connectInfra(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer inf.close()
			if !inf.remote {
				return errors.New("watch needs a NATS server, set NATS_URL")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			return watch(ctx, inf.broker.Topic(ctx, args[0]), cmd.OutOrStdout(), g.json, cancel)
		},
	}
}

// watch prints the updates of topic until the final one arrives or ctx ends.
func watch(ctx context.Context, topic broker.Topic, w io.Writer, asJSON bool, done func()) error {
	printer := newStreamPrinter(w)
	enc := json.NewEncoder(w)
	sub, err := topic.Subscribe(ctx, func(_ context.Context, msg broker.Message) {
		if asJSON {
			if err := enc.Encode(msg); err != nil {
				slog.Warn("failed to encode update", slog.String("topic", msg.Topic))
			}
		} else {
			printer.Update(msg.Update())
		}
		if msg.Final() {
			if !asJSON {
				fmt.Fprintln(w)
			}
			done()
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}
