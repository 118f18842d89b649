package weave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/casualjim/weave/blobstore"
	"github.com/casualjim/weave/diagnostics"
	"github.com/casualjim/weave/internal/assembler"
	"github.com/casualjim/weave/internal/steps"
	"github.com/casualjim/weave/llmerr"
	"github.com/casualjim/weave/media"
	"github.com/casualjim/weave/pkg/messages"
	"github.com/casualjim/weave/pkg/reflectx"
	"github.com/casualjim/weave/pkg/slogx"
	"github.com/casualjim/weave/pkg/uuidx"
	"github.com/casualjim/weave/provider"
	"github.com/casualjim/weave/remoteconfig"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/casualjim/weave"

// Update is what the content change callback receives.
type Update = assembler.Update

// Engine runs completions against one provider. It holds no per-run state and
// can serve concurrent runs.
type Engine struct {
	provider  provider.Provider
	streaming bool
	store     blobstore.Store
	flag      remoteconfig.Flag
	sink      diagnostics.Sink
	logger    *slog.Logger
	tracer    trace.Tracer
	clock     func() time.Time
}

// New creates an engine for p. Runs stream by default.
func New(p provider.Provider, options ...Option) (*Engine, error) {
	if reflectx.IsNil(p) {
		return nil, errors.New("provider is required")
	}
	e := &Engine{
		provider:  p,
		streaming: true,
		flag:      remoteconfig.Static(false),
		sink:      diagnostics.Discard{},
		logger:    slog.Default().With(slogx.LoggerName("weave")),
		tracer:    otel.Tracer(tracerName),
		clock:     time.Now,
	}
	if err := opts.Apply(e, options); err != nil {
		return nil, err
	}
	if e.store == nil {
		e.store = blobstore.NewMemory()
	}
	if !e.streaming {
		b, ok := p.(provider.Batcher)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support whole completions", p.Name())
		}
		e.provider = provider.SimulateStreaming(b)
	}
	return e, nil
}

// NewBatch creates an engine for a provider that only produces whole
// completions.
func NewBatch(b provider.Batcher, options ...Option) (*Engine, error) {
	if reflectx.IsNil(b) {
		return nil, errors.New("provider is required")
	}
	return New(provider.SimulateStreaming(b), options...)
}

// Provider returns the provider runs are sent to.
func (e *Engine) Provider() provider.Provider {
	return e.provider
}

// run is the state of one Run call.
type run struct {
	id         uuid.UUID
	engine     *Engine
	options    RunOptions
	request    provider.Request
	assembler  *assembler.Assembler
	classifier llmerr.Classifier
	logger     *slog.Logger
	span       trace.Span
	state      State
}

// Run sends msgs to the provider and assembles the response. It returns once
// the stream finished, failed or ctx was cancelled.
//
// A failed run returns a *llmerr.PartialResultError holding the classified
// error and the entries built before the failure. A cancelled run is not an
// error: it returns a result in StateCancelled.
func (e *Engine) Run(ctx context.Context, msgs []messages.Message, options ...RunOption) (*Result, error) {
	ro := RunOptions{MaxSteps: math.MaxInt}
	if err := opts.Apply(&ro, options); err != nil {
		return nil, err
	}

	name := e.provider.Name()
	id := uuidx.New()
	ctx, span := e.tracer.Start(ctx, "weave.Run", trace.WithAttributes(
		attribute.String("weave.provider", name),
		attribute.String("weave.run_id", id.String()),
		attribute.Int("weave.messages", len(msgs)),
	))
	defer span.End()

	logger := e.logger.With(slogx.RunID(id), slogx.Provider(name))
	asm, err := assembler.New(
		media.Materializer{Store: e.store},
		assembler.WithClock(e.clock),
		assembler.WithOnChange(ro.OnContentChange),
		assembler.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	tools := ro.Tools
	if len(tools) > 0 && !e.provider.Capabilities().ToolUse {
		logger.Debug("provider does not support tools, sending none", slog.Int("tools", len(tools)))
		tools = nil
	}

	r := &run{
		id:         id,
		engine:     e,
		options:    ro,
		request:    provider.Request{Messages: msgs, Tools: tools, Settings: ro.CallSettings},
		assembler:  asm,
		classifier: llmerr.Classifier{Provider: name, Flag: e.flag},
		logger:     logger,
		span:       span,
		state:      StateIdle,
	}
	return r.execute(ctx)
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	runner := &steps.Runner{
		Provider: r.engine.provider,
		Tools:    r.request.Tools,
		Settings: r.request.Settings,
		MaxSteps: r.options.MaxSteps,
		Logger:   r.logger,
	}
	stream, err := runner.Stream(ctx, r.request.Messages)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.transition(StateStreaming)

	for {
		select {
		case <-ctx.Done():
			return r.cancel()
		case ev, ok := <-stream:
			if !ok {
				if ctx.Err() != nil {
					return r.cancel()
				}
				return r.finish(), nil
			}
			if ctx.Err() != nil {
				return r.cancel()
			}
			if err := r.assembler.Apply(ctx, ev); err != nil {
				return r.fail(ctx, err)
			}
		}
	}
}

func (r *run) finish() *Result {
	res := r.assembler.Finalize(nil, "")
	r.transition(StateFinished)
	r.span.SetAttributes(
		attribute.String("weave.finish_reason", string(res.FinishReason)),
		attribute.Int64("weave.usage.input_tokens", res.Usage.InputTokens),
		attribute.Int64("weave.usage.output_tokens", res.Usage.OutputTokens),
		attribute.Int("weave.entries", len(res.Entries)),
	)
	r.span.SetStatus(codes.Ok, "")
	return &Result{
		RunID:        r.id,
		State:        StateFinished,
		Entries:      res.Entries,
		Usage:        res.Usage,
		FinishReason: res.FinishReason,
	}
}

func (r *run) cancel() (*Result, error) {
	entries := r.assembler.Abort()
	r.transition(StateCancelled)
	r.span.SetAttributes(attribute.Bool("weave.cancelled", true))
	return &Result{RunID: r.id, State: StateCancelled, Entries: entries}, nil
}

func (r *run) fail(ctx context.Context, err error) (*Result, error) {
	var streamErr provider.Error
	fromStream := errors.As(err, &streamErr) && streamErr.Err != nil
	if fromStream {
		err = streamErr.Err
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return r.cancel()
	}

	entries := r.assembler.Abort()
	classify := r.classifier.Classify
	if fromStream {
		classify = r.classifier.ClassifyStream
	}
	classified := classify(ctx, err)
	r.transition(StateErrored)
	r.span.RecordError(classified)
	r.span.SetStatus(codes.Error, classified.Error())

	if llmerr.IsUnexpected(classified) {
		r.report(ctx, classified)
	}
	return nil, &llmerr.PartialResultError{Err: classified, Entries: entries}
}

// report sends the failure to the diagnostics sink. Sink failures are logged
// and never replace the run's error.
func (r *run) report(ctx context.Context, err error) {
	payload, merr := json.Marshal(r.request)
	if merr != nil {
		r.logger.Warn("failed to encode request for diagnostics", slogx.Error(merr))
	}
	rep := diagnostics.Report{
		RunID:     r.id,
		Provider:  r.classifier.Provider,
		Error:     err.Error(),
		Request:   payload,
		Timestamp: strfmt.DateTime(r.engine.clock()),
	}
	if serr := r.engine.sink.Report(context.WithoutCancel(ctx), rep); serr != nil {
		r.logger.Warn("failed to report completion failure", slogx.Error(serr))
	}
}

func (r *run) transition(to State) {
	r.logger.Debug("run state changed", slog.String("from", string(r.state)), slog.String("to", string(to)))
	r.state = to
}
