package weave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/weave/blobstore"
	"github.com/casualjim/weave/content"
	"github.com/casualjim/weave/diagnostics"
	"github.com/casualjim/weave/llmerr"
	"github.com/casualjim/weave/pkg/messages"
	"github.com/casualjim/weave/provider"
	"github.com/casualjim/weave/remoteconfig"
	"github.com/casualjim/weave/tool"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type mockProvider struct {
	caps   provider.Capabilities
	stream func(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error)

	mu       sync.Mutex
	requests []provider.Request
}

func (m *mockProvider) Name() string                        { return "mock" }
func (m *mockProvider) Capabilities() provider.Capabilities { return m.caps }

func (m *mockProvider) Stream(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.stream(ctx, req)
}

func (m *mockProvider) lastRequest() provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

// emit streams evs from a goroutine, then blocks until ctx is done when hang
// is set.
func emit(hang bool, evs ...provider.StreamEvent) func(context.Context, provider.Request) (<-chan provider.StreamEvent, error) {
	return func(ctx context.Context, _ provider.Request) (<-chan provider.StreamEvent, error) {
		ch := make(chan provider.StreamEvent)
		go func() {
			defer close(ch)
			for _, ev := range evs {
				if !provider.Send(ctx, ch, ev) {
					return
				}
			}
			if hang {
				<-ctx.Done()
			}
		}()
		return ch, nil
	}
}

func fails(err error) func(context.Context, provider.Request) (<-chan provider.StreamEvent, error) {
	return func(context.Context, provider.Request) (<-chan provider.StreamEvent, error) {
		return nil, err
	}
}

type recordingSink struct {
	mu      sync.Mutex
	reports []diagnostics.Report
	err     error
}

func (s *recordingSink) Report(_ context.Context, r diagnostics.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

type statusError struct{ code int }

func (e statusError) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusError) StatusCode() int { return e.code }

func stopFinish() provider.Finish {
	return provider.Finish{FinishReason: provider.FinishReasonStop, Usage: provider.Usage{InputTokens: 3, OutputTokens: 9, TotalTokens: 12}}
}

func newEngine(t *testing.T, p provider.Provider, options ...Option) *Engine {
	t.Helper()
	e, err := New(p, options...)
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	t.Run("requires a provider", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)

		var typedNil *mockProvider
		_, err = New(typedNil)
		assert.Error(t, err)
	})

	t.Run("whole completions need a batcher", func(t *testing.T) {
		_, err := New(&mockProvider{}, WithStreaming(false))
		assert.ErrorContains(t, err, "does not support whole completions")
	})

	t.Run("rejects nil logger", func(t *testing.T) {
		_, err := New(&mockProvider{}, WithLogger(nil))
		assert.Error(t, err)
	})
}

func TestRun_Text(t *testing.T) {
	p := &mockProvider{stream: emit(false, provider.TextDelta{Text: "Hi"}, provider.TextDelta{Text: " there"}, stopFinish())}
	e := newEngine(t, p)

	var updates []Update
	res, err := e.Run(context.Background(), []messages.Message{messages.User("hello")},
		OnContentChange(func(u Update) { updates = append(updates, u) }),
	)
	require.NoError(t, err)

	assert.Equal(t, StateFinished, res.State)
	assert.Equal(t, "Hi there", res.Text())
	assert.Equal(t, provider.FinishReasonStop, res.FinishReason)
	assert.Equal(t, int64(12), res.Usage.TotalTokens)
	assert.NotEqual(t, uuid.Nil, res.RunID)

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	require.NotNil(t, last.Usage)
	assert.Equal(t, int64(9), last.Usage.OutputTokens)
	assert.Equal(t, res.Entries, last.Entries)
}

func TestRun_ReasoningThenText(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &mockProvider{stream: emit(false,
		provider.ReasoningDelta{Text: "thinking"},
		provider.TextDelta{Text: "42"},
		stopFinish(),
	)}
	e := newEngine(t, p, WithClock(func() time.Time {
		clock = clock.Add(25 * time.Millisecond)
		return clock
	}))

	res, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	r := res.Entries[0].(*content.Reasoning)
	require.NotNil(t, r.Duration)
	assert.Equal(t, 25*time.Millisecond, *r.Duration)
}

func TestRun_StreamErrorKeepsPartialEntries(t *testing.T) {
	boom := errors.New("connection reset")
	p := &mockProvider{stream: emit(false, provider.TextDelta{Text: "partial"}, provider.Error{Err: boom})}
	sink := &recordingSink{err: errors.New("sink offline")}
	e := newEngine(t, p, WithSink(sink))

	res, err := e.Run(context.Background(), []messages.Message{messages.User("hello")})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)

	var apiErr *llmerr.APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "mock", apiErr.Provider)

	entries, ok := llmerr.Entries(err)
	require.True(t, ok)
	assert.Equal(t, content.List{&content.Text{Text: "partial"}}, entries)

	require.Len(t, sink.reports, 1)
	rep := sink.reports[0]
	assert.Equal(t, "mock", rep.Provider)
	assert.Contains(t, rep.Error, "connection reset")
	assert.Equal(t, "hello", gjson.GetBytes(rep.Request, "messages.0.content").String())
}

func TestRun_StreamTransportErrorIsAPICallError(t *testing.T) {
	p := &mockProvider{stream: emit(false, provider.TextDelta{Text: "partial"}, provider.Error{Err: io.ErrUnexpectedEOF})}
	e := newEngine(t, p)

	_, err := e.Run(context.Background(), nil)
	var apiErr *llmerr.APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var unclassified *llmerr.UnclassifiedError
	assert.False(t, errors.As(err, &unclassified))
}

func TestRun_StartFailureIsUnclassified(t *testing.T) {
	boom := errors.New("request encoding failed")
	e := newEngine(t, &mockProvider{stream: fails(boom)})

	_, err := e.Run(context.Background(), nil)
	var unclassified *llmerr.UnclassifiedError
	require.ErrorAs(t, err, &unclassified)
	assert.ErrorIs(t, err, boom)
}

func TestRun_APICallError(t *testing.T) {
	p := &mockProvider{stream: fails(statusError{code: 429})}
	sink := &recordingSink{}
	e := newEngine(t, p, WithSink(sink))

	_, err := e.Run(context.Background(), nil)
	var apiErr *llmerr.APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.True(t, apiErr.IsRetryable())
	assert.Len(t, sink.reports, 1)

	entries, ok := llmerr.Entries(err)
	assert.True(t, ok)
	assert.Empty(t, entries)
}

func TestRun_CapabilityError(t *testing.T) {
	vendorErr := errors.New("400 Invalid content type. image_url is only supported by certain models.")

	for _, tt := range []struct {
		flag    bool
		variant string
	}{
		{flag: true, variant: llmerr.VariantModelNotSupportImage},
		{flag: false, variant: llmerr.VariantModelNotSupportImage2},
	} {
		t.Run(tt.variant, func(t *testing.T) {
			sink := &recordingSink{}
			e := newEngine(t, &mockProvider{stream: fails(vendorErr)},
				WithFlag(remoteconfig.Static(tt.flag)),
				WithSink(sink),
			)

			_, err := e.Run(context.Background(), []messages.Message{
				messages.User("what is this", messages.Image("data:image/png;base64,iVBORw0KGgo=")),
			})
			var capErr *llmerr.CapabilityError
			require.ErrorAs(t, err, &capErr)
			assert.Equal(t, llmerr.CodeModelNotSupportImage, capErr.Code)
			assert.Equal(t, tt.variant, capErr.Variant)
			assert.Empty(t, sink.reports)
		})
	}
}

func TestRun_CancelPreservesPrefix(t *testing.T) {
	p := &mockProvider{stream: emit(true,
		provider.ReasoningDelta{Text: "let me search"},
		provider.ToolCall{ID: "1", Name: "search", Args: json.RawMessage(`{"q":"x"}`)},
	)}
	sink := &recordingSink{}
	e := newEngine(t, p, WithSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var last Update
	res, err := e.Run(ctx, nil, OnContentChange(func(u Update) {
		last = u
		if len(u.Entries.ToolCalls()) > 0 {
			cancel()
		}
	}))
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, res.State)
	require.Len(t, res.Entries, 2)
	assert.True(t, res.Entries[0].(*content.Reasoning).Closed())
	tc := res.Entries[1].(*content.ToolCall)
	assert.Equal(t, content.ToolStateCall, tc.State)
	assert.Nil(t, tc.Result)
	assert.Equal(t, res.Entries, last.Entries)
	assert.Empty(t, sink.reports)
}

func TestRun_CancelStopsBufferedEvents(t *testing.T) {
	buffered := func(context.Context, provider.Request) (<-chan provider.StreamEvent, error) {
		ch := make(chan provider.StreamEvent, 4)
		ch <- provider.TextDelta{Text: "a"}
		ch <- provider.TextDelta{Text: "b"}
		ch <- provider.TextDelta{Text: "c"}
		ch <- stopFinish()
		close(ch)
		return ch, nil
	}

	for i := 0; i < 200; i++ {
		e := newEngine(t, &mockProvider{stream: buffered})
		ctx, cancel := context.WithCancel(context.Background())
		res, err := e.Run(ctx, nil, OnContentChange(func(u Update) {
			if u.Entries.Text() == "a" {
				cancel()
			}
		}))
		cancel()
		require.NoError(t, err)
		require.Equal(t, StateCancelled, res.State)
		require.Equal(t, "a", res.Text())
	}
}

func TestRun_DeadlineBeforeStartIsCancellation(t *testing.T) {
	p := &mockProvider{stream: func(ctx context.Context, _ provider.Request) (<-chan provider.StreamEvent, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	sink := &recordingSink{}
	e := newEngine(t, p, WithSink(sink))

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	res, err := e.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, res.State)
	assert.Empty(t, sink.reports)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	p := &mockProvider{stream: func(ctx context.Context, _ provider.Request) (<-chan provider.StreamEvent, error) {
		return nil, ctx.Err()
	}}
	e := newEngine(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, res.State)
	assert.Empty(t, res.Entries)
}

type batchProvider struct {
	resp *provider.Response
}

func (b *batchProvider) Name() string                        { return "batch" }
func (b *batchProvider) Capabilities() provider.Capabilities { return provider.Capabilities{Reasoning: true} }
func (b *batchProvider) Complete(context.Context, provider.Request) (*provider.Response, error) {
	return b.resp, nil
}

func TestRun_WholeCompletion(t *testing.T) {
	e, err := NewBatch(&batchProvider{resp: &provider.Response{
		Reasoning: "considered it",
		Text:      "done",
		Usage:     provider.Usage{InputTokens: 1, OutputTokens: 2},
	}})
	require.NoError(t, err)

	res, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	r := res.Entries[0].(*content.Reasoning)
	require.NotNil(t, r.Duration)
	assert.Equal(t, time.Millisecond, *r.Duration)
	assert.Equal(t, "done", res.Text())
	assert.Equal(t, provider.FinishReasonStop, res.FinishReason)
	assert.Equal(t, int64(3), res.Usage.TotalTokens)
}

func TestRun_ExecutesTools(t *testing.T) {
	var step int
	var mu sync.Mutex
	p := &mockProvider{caps: provider.Capabilities{ToolUse: true}}
	p.stream = func(ctx context.Context, req provider.Request) (<-chan provider.StreamEvent, error) {
		mu.Lock()
		step++
		current := step
		mu.Unlock()
		if current == 1 {
			return emit(false,
				provider.ToolCall{ID: "c1", Name: "weather", Args: json.RawMessage(`{"city":"Paris"}`)},
				provider.Finish{FinishReason: provider.FinishReasonToolCalls, Usage: provider.Usage{InputTokens: 5, OutputTokens: 5}},
			)(ctx, req)
		}
		return emit(false, provider.TextDelta{Text: "Sunny in Paris"}, stopFinish())(ctx, req)
	}
	weather := tool.Must(func(city string) string { return "sunny in " + city },
		tool.Name("weather"), tool.Parameters("city"))
	e := newEngine(t, p)

	res, err := e.Run(context.Background(), []messages.Message{messages.User("weather?")}, Tools(weather), MaxSteps(3))
	require.NoError(t, err)

	assert.Equal(t, []content.Kind{content.KindToolCall, content.KindText}, res.Entries.Kinds())
	tc := res.Entries[0].(*content.ToolCall)
	assert.Equal(t, content.ToolStateResult, tc.State)
	assert.JSONEq(t, `"sunny in Paris"`, string(tc.Result))
	assert.Equal(t, int64(22), res.Usage.TotalTokens)
	assert.Len(t, p.lastRequest().Messages, 3)
}

func TestRun_DropsToolsForProvidersWithoutToolUse(t *testing.T) {
	p := &mockProvider{stream: emit(false, stopFinish())}
	e := newEngine(t, p)

	_, err := e.Run(context.Background(), nil, Tools(tool.Must(func() string { return "" }, tool.Name("noop"))))
	require.NoError(t, err)
	assert.Empty(t, p.lastRequest().Tools)
}

func TestRun_ImagesAreStored(t *testing.T) {
	store := blobstore.NewMemory()
	p := &mockProvider{stream: emit(false, provider.File{MediaType: "image/png", Base64: "iVBORw0KGgo="}, stopFinish())}
	e := newEngine(t, p, WithBlobStore(store))

	res, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	key := res.Entries[0].(*content.Image).StorageKey

	dataURL, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", dataURL)
}

func TestRun_Tracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ok := newEngine(t, &mockProvider{stream: emit(false, provider.TextDelta{Text: "ok"}, stopFinish())}, WithTracer(tp.Tracer("test")))
	_, err := ok.Run(context.Background(), nil)
	require.NoError(t, err)

	broken := newEngine(t, &mockProvider{stream: fails(errors.New("boom"))}, WithTracer(tp.Tracer("test")))
	_, err = broken.Run(context.Background(), nil)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "weave.Run", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	require.NotEmpty(t, spans[1].Events())
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestRun_ConcurrentRuns(t *testing.T) {
	p := &mockProvider{stream: emit(false, provider.TextDelta{Text: "same"}, stopFinish())}
	e := newEngine(t, p)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Run(context.Background(), nil)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, "same", res.Text())
	}
}
