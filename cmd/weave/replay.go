package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/casualjim/weave/pkg/messages"
	"github.com/casualjim/weave/provider"
	"github.com/spf13/cobra"
)

// recording is a provider that plays back events read from a JSON lines file,
// one event per line as written by provider.MarshalEvent.
type recording struct {
	name   string
	caps   provider.Capabilities
	events []provider.StreamEvent
}

func readRecording(r io.Reader) (*recording, error) {
	rec := &recording{name: "replay", caps: provider.Capabilities{ToolUse: true, Vision: true, Reasoning: true, SystemMessage: true}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		ev, err := provider.UnmarshalEvent(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec.events = append(rec.events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *recording) Name() string                        { return r.name }
func (r *recording) Capabilities() provider.Capabilities { return r.caps }

func (r *recording) Stream(ctx context.Context, _ provider.Request) (<-chan provider.StreamEvent, error) {
	events := make(chan provider.StreamEvent)
	go func() {
		defer close(events)
		for _, ev := range r.events {
			if !provider.Send(ctx, events, ev) {
				return
			}
		}
	}()
	return events, nil
}

func newReplayCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{maxSteps: 1, temperature: -1, topP: -1}
	cmd := &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "Assemble a recorded event stream without calling a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			rec, err := readRecording(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			logger := slog.Default()
			inf, err := connectInfra(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer inf.close()

			engine, err := newEngine(rec, inf, true, logger)
			if err != nil {
				return err
			}
			msgs := []messages.Message{messages.User("replay of " + args[0])}
			return runAndPrint(cmd.Context(), cmd.OutOrStdout(), engine, msgs, g, f)
		},
	}
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "render the finished response as markdown instead of streaming it")
	return cmd
}
