package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/casualjim/weave"
	"github.com/casualjim/weave/blobstore"
	"github.com/casualjim/weave/content"
	"github.com/casualjim/weave/internal/broker"
	"github.com/casualjim/weave/llmerr"
	"github.com/casualjim/weave/pkg/dataurl"
	"github.com/casualjim/weave/pkg/messages"
	"github.com/casualjim/weave/pkg/slogx"
	"github.com/casualjim/weave/provider"
	json "github.com/goccy/go-json"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
)

type runFlags struct {
	system      string
	images      []string
	noStream    bool
	markdown    bool
	tools       bool
	maxSteps    int
	temperature float64
	topP        float64
	maxTokens   int64
	publish     string
}

func newRunCommand(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run a completion and print the entries as they arrive",
		Long: `Run sends the prompt, or standard input when no prompt is given, to the
model and prints text, reasoning, tool calls and images as they are assembled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			logger := slog.Default()
			inf, err := connectInfra(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer inf.close()

			engine, err := newEngine(openAIProvider(g.model, logger), inf, !f.noStream, logger)
			if err != nil {
				return err
			}

			msgs, err := f.conversation(cmd.Context(), inf.store, prompt)
			if err != nil {
				return err
			}
			var onChange []func(weave.Update)
			if f.publish != "" {
				onChange = append(onChange, broker.Publisher(cmd.Context(), inf.broker.Topic(cmd.Context(), f.publish), logger))
			}
			return runAndPrint(cmd.Context(), cmd.OutOrStdout(), engine, msgs, g, f, onChange...)
		},
	}

	cmd.Flags().StringVarP(&f.system, "system", "s", "", "system prompt")
	cmd.Flags().StringArrayVarP(&f.images, "image", "i", nil, "attach an image file or URL, can be repeated")
	cmd.Flags().BoolVar(&f.noStream, "no-stream", false, "request a whole completion instead of a stream")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "render the finished response as markdown instead of streaming it")
	cmd.Flags().BoolVar(&f.tools, "tools", false, "let the model call the built-in tools")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", 8, "maximum number of model round trips when tools are called")
	cmd.Flags().Float64Var(&f.temperature, "temperature", -1, "sampling temperature, negative for the model default")
	cmd.Flags().Float64Var(&f.topP, "top-p", -1, "nucleus sampling, negative for the model default")
	cmd.Flags().Int64Var(&f.maxTokens, "max-tokens", 0, "maximum output tokens, 0 for the model default")
	cmd.Flags().StringVar(&f.publish, "publish", "", "publish every content update to this topic for weave watch")
	return cmd
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(b))
	if prompt == "" {
		return "", errors.New("a prompt is required")
	}
	return prompt, nil
}

func (f *runFlags) settings() provider.CallSettings {
	var s provider.CallSettings
	if f.temperature >= 0 {
		s.Temperature = &f.temperature
	}
	if f.topP >= 0 {
		s.TopP = &f.topP
	}
	if f.maxTokens > 0 {
		s.MaxOutputTokens = &f.maxTokens
	}
	return s
}

// conversation builds the request messages. Local image files are inlined as
// data URLs and kept in the blob store as references.
func (f *runFlags) conversation(ctx context.Context, store blobstore.Store, prompt string) ([]messages.Message, error) {
	var msgs []messages.Message
	if f.system != "" {
		msgs = append(msgs, messages.System(f.system))
	}

	parts := make([]messages.ContentPart, 0, len(f.images))
	for _, img := range f.images {
		if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") || strings.HasPrefix(img, "data:") {
			parts = append(parts, messages.Image(img))
			continue
		}
		data, err := os.ReadFile(img)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		u := dataurl.Encode(http.DetectContentType(data), data)
		key, err := store.Save(ctx, blobstore.KindReference, u)
		if err != nil {
			return nil, fmt.Errorf("failed to store reference image: %w", err)
		}
		slog.Debug("stored reference image", slog.String("key", key), slog.String("path", img))
		parts = append(parts, messages.Image(u))
	}
	return append(msgs, messages.User(prompt, parts...)), nil
}

func runAndPrint(ctx context.Context, w io.Writer, engine *weave.Engine, msgs []messages.Message, g *globalFlags, f *runFlags, onChange ...func(weave.Update)) error {
	runOpts := []weave.RunOption{
		weave.MaxSteps(f.maxSteps),
		weave.CallSettings(f.settings()),
	}
	if f.tools {
		runOpts = append(runOpts, weave.Tools(builtinTools()...))
	}
	streamed := !g.json && !f.markdown
	if streamed {
		onChange = append(onChange, newStreamPrinter(w).Update)
	}
	if len(onChange) > 0 {
		runOpts = append(runOpts, weave.OnContentChange(func(u weave.Update) {
			for _, fn := range onChange {
				fn(u)
			}
		}))
	}

	result, err := engine.Run(ctx, msgs, runOpts...)
	if err != nil {
		var partial *llmerr.PartialResultError
		if errors.As(err, &partial) && !streamed && len(partial.Entries) > 0 {
			if perr := printEntries(w, partial.Entries, g); perr != nil {
				slog.Warn("failed to print partial result", slogx.Error(perr))
			}
		}
		return describeError(err)
	}
	if streamed {
		fmt.Fprintln(w)
		if result.State == weave.StateCancelled {
			fmt.Fprintln(w, errorColor.Sprint("cancelled"))
		}
	} else {
		if err := printResult(w, result, g); err != nil {
			return err
		}
	}
	if g.debug {
		pp.Fprintln(os.Stderr, result)
	}
	return nil
}

func printResult(w io.Writer, result *weave.Result, g *globalFlags) error {
	if g.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printEntries(w, result.Entries, g)
}

func printEntries(w io.Writer, entries content.List, g *globalFlags) error {
	if g.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	glam, err := newMarkdownRenderer()
	if err != nil {
		return err
	}
	return renderEntries(w, entries, glam)
}

// describeError adds the user facing message of capability errors.
func describeError(err error) error {
	var capErr *llmerr.CapabilityError
	if errors.As(err, &capErr) {
		return fmt.Errorf("%s (%s)", capErr.Message, capErr.Code)
	}
	var apiErr *llmerr.APICallError
	if errors.As(err, &apiErr) && apiErr.IsRetryable() {
		return fmt.Errorf("%w, retrying later may help", err)
	}
	return err
}
