package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/casualjim/weave/content"
	"github.com/casualjim/weave/llmerr"
	"github.com/casualjim/weave/media"
	"github.com/casualjim/weave/pkg/slogx"
	"github.com/casualjim/weave/provider"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
)

// Materializer stores a base64 payload and returns its storage key.
type Materializer interface {
	Materialize(ctx context.Context, mediaType, payload string) (string, error)
}

// Update is handed to the change callback. Usage is only set on the final
// update of a completed request.
type Update struct {
	Entries content.List
	Usage   *provider.Usage
}

// Result is the terminal value of a completed request.
type Result struct {
	Entries      content.List
	Usage        provider.Usage
	FinishReason provider.FinishReason
}

// Option configures an Assembler.
type Option = opts.Option[Assembler]

// WithClock replaces time.Now for reasoning timing.
func WithClock(now func() time.Time) Option {
	return opts.Type[Assembler](func(a *Assembler) error {
		if now == nil {
			return fmt.Errorf("clock can not be nil")
		}
		a.timer.now = now
		return nil
	})
}

// WithOnChange registers the callback invoked after every mutation.
func WithOnChange(fn func(Update)) Option {
	return opts.Type[Assembler](func(a *Assembler) error {
		a.onChange = fn
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return opts.Type[Assembler](func(a *Assembler) error {
		if logger != nil {
			a.logger = logger
		}
		return nil
	})
}

// Assembler builds the content list of one request.
type Assembler struct {
	entries  content.List
	text     *content.Text
	timer    reasoningTimer
	calls    correlationTable
	media    Materializer
	onChange func(Update)
	logger   *slog.Logger

	usage        provider.Usage
	finishReason provider.FinishReason
}

// New creates an assembler that stores generated images through m.
func New(m Materializer, options ...Option) (*Assembler, error) {
	a := &Assembler{
		timer:  reasoningTimer{now: time.Now},
		calls:  make(correlationTable),
		media:  m,
		logger: slog.Default(),
	}
	if err := opts.Apply(a, options); err != nil {
		return nil, err
	}
	return a, nil
}

// Entries returns a snapshot of the list built so far.
func (a *Assembler) Entries() content.List {
	return a.entries.Snapshot()
}

// Apply folds one event into the list. It returns an error when the event ends
// the request: a stream error or a failure to store generated media.
func (a *Assembler) Apply(ctx context.Context, ev provider.StreamEvent) error {
	changed, err := a.apply(ctx, ev)
	if changed {
		a.notify(nil)
	}
	return err
}

func (a *Assembler) apply(ctx context.Context, ev provider.StreamEvent) (bool, error) {
	switch e := ev.(type) {
	case provider.TextDelta:
		return a.appendText(e.Text), nil
	case provider.ReasoningDelta:
		return a.appendReasoning(e), nil
	case provider.ToolCall:
		return a.addToolCall(e), nil
	case provider.ToolResult:
		if failure, ok := e.Failure(); ok {
			return a.failToolCall(e.ID, e.Name, e.Args, failure), nil
		}
		return a.resolveToolCall(e), nil
	case provider.ToolError:
		closed := a.timer.close()
		return a.failToolCall(e.ID, e.Name, e.Args, provider.FailureOf(e.Err)) || closed, nil
	case provider.File:
		return a.addFile(ctx, e)
	case provider.Error:
		return a.Interrupt(), e
	case provider.Finish:
		a.usage = e.Usage
		a.finishReason = e.FinishReason
		return false, nil
	case provider.StepStart, provider.StepFinish:
		return false, nil
	default:
		a.logger.Debug("ignoring unknown stream event", slog.String("type", fmt.Sprintf("%T", ev)))
		return false, nil
	}
}

func (a *Assembler) appendText(delta string) bool {
	if delta == "" {
		return false
	}
	a.timer.close()
	if a.text == nil {
		a.text = &content.Text{}
		a.entries = append(a.entries, a.text)
	}
	a.text.Text += delta
	return true
}

func (a *Assembler) appendReasoning(e provider.ReasoningDelta) bool {
	// some providers interleave empty reasoning with text
	if strings.TrimSpace(e.Text) == "" {
		return false
	}
	a.text = nil
	if e.Complete {
		a.timer.close()
		a.entries = append(a.entries, a.timer.complete(e.Text))
		return true
	}
	r, created := a.timer.start()
	if created {
		a.entries = append(a.entries, r)
	}
	r.Text += e.Text
	return true
}

func (a *Assembler) addToolCall(e provider.ToolCall) bool {
	tc := &content.ToolCall{
		ID:    e.ID,
		Name:  e.Name,
		Args:  e.Args,
		State: content.ToolStateCall,
	}
	if !a.calls.register(tc) {
		a.logger.Warn("ignoring repeated tool call id", slogx.ToolCallID(e.ID), slog.String("tool", e.Name))
		return false
	}
	a.timer.close()
	a.text = nil
	a.entries = append(a.entries, tc)
	return true
}

func (a *Assembler) resolveToolCall(e provider.ToolResult) bool {
	tc, ok := a.calls.lookup(e.ID)
	if !ok {
		a.logger.Debug("ignoring result for unknown tool call", slogx.ToolCallID(e.ID))
		return false
	}
	return tc.Resolve(e.Result)
}

func (a *Assembler) failToolCall(id, name string, args json.RawMessage, failure *provider.ToolFailure) bool {
	tc, ok := a.calls.lookup(id)
	if !ok {
		a.logger.Debug("ignoring error for unknown tool call", slogx.ToolCallID(id))
		return false
	}
	if name == "" {
		name = tc.Name
	}
	if len(args) == 0 {
		args = tc.Args
	}
	te := &llmerr.ToolExecutionError{ToolCallID: id, ToolName: name}
	if failure != nil {
		te.Cause = failure
	}
	payload, err := te.Payload(args)
	if err != nil {
		a.logger.Warn("failed to encode tool error", slogx.ToolCallID(id), slogx.Error(err))
		payload = nil
	}
	return tc.Fail(payload)
}

func (a *Assembler) addFile(ctx context.Context, e provider.File) (bool, error) {
	if !media.IsImage(e.MediaType) || e.Base64 == "" {
		return false, nil
	}
	key, err := a.media.Materialize(ctx, e.MediaType, e.Base64)
	if err != nil {
		return a.Interrupt(), err
	}
	a.timer.close()
	a.text = nil
	a.entries = append(a.entries, &content.Image{StorageKey: key})
	return true, nil
}

// Interrupt closes every open reasoning span. The orchestrator calls it when a
// request ends early so partial entries carry durations.
func (a *Assembler) Interrupt() bool {
	a.text = nil
	return a.timer.closeAll(a.entries)
}

// Abort interrupts the request, reports the closed spans to the change
// callback when anything changed and returns the entries built so far.
func (a *Assembler) Abort() content.List {
	if a.Interrupt() {
		a.notify(nil)
	}
	return a.entries.Snapshot()
}

// Finalize closes any reasoning still open, reports the final update with
// usage and returns the result. usage and reason override what the stream's
// finish event reported when they are set.
func (a *Assembler) Finalize(usage *provider.Usage, reason provider.FinishReason) Result {
	a.Interrupt()
	if usage != nil {
		a.usage = *usage
	}
	if reason != "" {
		a.finishReason = reason
	}
	u := a.usage
	a.notify(&u)
	return Result{
		Entries:      a.entries.Snapshot(),
		Usage:        a.usage,
		FinishReason: a.finishReason,
	}
}

func (a *Assembler) notify(usage *provider.Usage) {
	if a.onChange == nil {
		return
	}
	a.onChange(Update{Entries: a.entries.Snapshot(), Usage: usage})
}
