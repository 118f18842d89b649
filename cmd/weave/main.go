// Command weave runs completions from the terminal. It streams the assembled
// entries as they change, generates images and replays recorded event streams.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	// Ensure API Key is loaded
	_ "github.com/joho/godotenv/autoload"

	"github.com/casualjim/weave/pkg/slogx"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	model   string
	debug   bool
	json    bool
	noColor bool
	trace   bool

	shutdownTracing func(context.Context) error
}

func setupLogging(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log := zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: level}),
	))
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "weave",
		Short:         "Stream completions and assemble them into ordered content entries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(g.debug)
			if g.noColor {
				disableColor()
			}
			if !g.trace {
				return nil
			}
			shutdown, err := setupTracing(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			g.shutdownTracing = shutdown
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.shutdownTracing == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 5*time.Second)
			defer cancel()
			if err := g.shutdownTracing(ctx); err != nil {
				slog.Warn("failed to flush traces", slogx.Error(err))
			}
		},
	}

	model := os.Getenv("WEAVE_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	root.PersistentFlags().StringVarP(&g.model, "model", "m", model, "chat model to use (env WEAVE_MODEL)")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging and dump the full result")
	root.PersistentFlags().BoolVar(&g.json, "json", false, "print the result as JSON")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVar(&g.trace, "trace", false, "print OpenTelemetry spans to stderr")

	root.AddCommand(
		newRunCommand(g),
		newImagesCommand(g),
		newReplayCommand(g),
		newWatchCommand(g),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("weave failed", slogx.Error(err))
		os.Exit(1)
	}
}
