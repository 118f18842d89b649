package steps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/weave/pkg/messages"
	"github.com/casualjim/weave/pkg/slogx"
	"github.com/casualjim/weave/provider"
	"github.com/casualjim/weave/tool"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
)

// Runner executes up to MaxSteps provider round trips.
type Runner struct {
	Provider provider.Provider
	Tools    []tool.Definition
	Settings provider.CallSettings
	MaxSteps int
	Logger   *slog.Logger
}

// step collects what one provider stream produced.
type step struct {
	number int
	text   string
	calls  []provider.ToolCall
	usage  provider.Usage
	reason provider.FinishReason
}

// Stream starts the first step and returns the merged event stream. Errors
// starting the first step are returned directly; later failures arrive as a
// provider.Error event. The stream ends with a Finish event carrying the usage
// of all steps, unless it failed or ctx was cancelled.
func (r *Runner) Stream(ctx context.Context, conversation []messages.Message) (<-chan provider.StreamEvent, error) {
	if r.Provider == nil {
		return nil, fmt.Errorf("runner requires a provider")
	}
	msgs := append([]messages.Message(nil), conversation...)
	first, err := r.Provider.Stream(ctx, r.request(msgs))
	if err != nil {
		return nil, err
	}

	out := make(chan provider.StreamEvent, 16)
	go func() {
		defer close(out)
		r.loop(ctx, first, msgs, out)
	}()
	return out, nil
}

func (r *Runner) loop(ctx context.Context, upstream <-chan provider.StreamEvent, msgs []messages.Message, out chan<- provider.StreamEvent) {
	logger := r.logger()
	maxSteps := max(r.MaxSteps, 1)
	var total provider.Usage
	var reason provider.FinishReason

	for number := 1; ; number++ {
		if !provider.Send(ctx, out, provider.StepStart{Step: number}) {
			return
		}
		st, ok := r.forward(ctx, number, upstream, out)
		if !ok {
			return
		}
		total.Add(st.usage)
		reason = st.reason
		if !provider.Send(ctx, out, provider.StepFinish{Step: number, FinishReason: st.reason, Usage: st.usage}) {
			return
		}

		if st.reason != provider.FinishReasonToolCalls || len(st.calls) == 0 {
			break
		}
		responses, complete, ok := r.executeTools(ctx, st.calls, out)
		if !ok {
			return
		}
		if !complete || number >= maxSteps {
			logger.Debug("stopping after tool calls", slog.Int("step", number), slog.Bool("complete", complete))
			break
		}

		msgs = append(msgs, messages.AssistantToolCalls(st.text, toolCallData(st.calls)...))
		msgs = append(msgs, responses...)

		next, err := r.Provider.Stream(ctx, r.request(msgs))
		if err != nil {
			provider.Send(ctx, out, provider.Error{Err: err, Timestamp: strfmt.DateTime(time.Now())})
			return
		}
		upstream = next
	}

	provider.Send(ctx, out, provider.Finish{
		FinishReason: reason,
		Usage:        total,
		Timestamp:    strfmt.DateTime(time.Now()),
	})
}

// forward relays the events of one step. The step's Finish event is held back
// so only the merged one reaches the consumer. It reports false when the
// stream failed or ctx ended.
func (r *Runner) forward(ctx context.Context, number int, upstream <-chan provider.StreamEvent, out chan<- provider.StreamEvent) (step, bool) {
	st := step{number: number, reason: provider.FinishReasonUnknown}
	for {
		select {
		case <-ctx.Done():
			return st, false
		case ev, ok := <-upstream:
			if !ok {
				return st, true
			}
			if ctx.Err() != nil {
				return st, false
			}
			switch e := ev.(type) {
			case provider.Finish:
				st.usage = e.Usage
				if e.FinishReason != "" {
					st.reason = e.FinishReason
				}
				continue
			case provider.Error:
				provider.Send(ctx, out, e)
				return st, false
			case provider.TextDelta:
				st.text += e.Text
			case provider.ToolCall:
				st.calls = append(st.calls, e)
			}
			if !provider.Send(ctx, out, ev) {
				return st, false
			}
		}
	}
}

// executeTools runs every requested tool in order and emits its outcome.
// Calls to unknown tools are answered with an error so the model can recover
// in the next step. complete is false when a call names a tool without a
// function: the caller has to answer it, so the run can not continue on its own.
func (r *Runner) executeTools(ctx context.Context, calls []provider.ToolCall, out chan<- provider.StreamEvent) (responses []messages.Message, complete bool, ok bool) {
	logger := r.logger()
	complete = true
	for _, call := range calls {
		def, found := r.lookup(call.Name)
		if found && !def.Executable() {
			complete = false
			continue
		}

		var ev provider.StreamEvent
		if !found {
			err := fmt.Errorf("tool %q is not available", call.Name)
			ev = provider.ToolError{ID: call.ID, Name: call.Name, Args: call.Args, Err: err}
			responses = append(responses, messages.ToolResponse(call.ID, call.Name, err.Error(), true))
		} else if result, err := def.Call(ctx, call.Args); err != nil {
			logger.Debug("tool call failed", slogx.ToolCallID(call.ID), slog.String("tool", call.Name), slogx.Error(err))
			ev = provider.ToolError{ID: call.ID, Name: call.Name, Args: call.Args, Err: err}
			responses = append(responses, messages.ToolResponse(call.ID, call.Name, err.Error(), true))
		} else {
			ev = provider.ToolResult{ID: call.ID, Name: call.Name, Args: call.Args, Result: result}
			responses = append(responses, messages.ToolResponse(call.ID, call.Name, string(result), false))
		}
		if !provider.Send(ctx, out, ev) {
			return nil, false, false
		}
	}
	return responses, complete, true
}

func (r *Runner) lookup(name string) (tool.Definition, bool) {
	for _, def := range r.Tools {
		if n, _ := def.ToNameAndSchema(); n == name {
			return def, true
		}
	}
	return tool.Definition{}, false
}

func (r *Runner) request(msgs []messages.Message) provider.Request {
	return provider.Request{Messages: msgs, Tools: r.Tools, Settings: r.Settings}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func toolCallData(calls []provider.ToolCall) []messages.ToolCallData {
	data := make([]messages.ToolCallData, len(calls))
	for i, c := range calls {
		args := c.Args
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		data[i] = messages.ToolCallData{ID: c.ID, Name: c.Name, Arguments: args}
	}
	return data
}
