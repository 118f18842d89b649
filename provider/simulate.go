package provider

import (
	"context"
	"time"

	"github.com/go-openapi/strfmt"
)

// SimulateStreaming adapts a Batcher to the Provider interface. Stream performs
// the whole request up front, so request errors are returned directly, and then
// replays the response as events from a separate goroutine.
func SimulateStreaming(b Batcher) Provider {
	return &simulated{batcher: b}
}

type simulated struct {
	batcher Batcher
}

func (s *simulated) Name() string               { return s.batcher.Name() }
func (s *simulated) Capabilities() Capabilities { return s.batcher.Capabilities() }

// Unwrap returns the wrapped Batcher so optional capabilities such as
// ImageGenerator stay discoverable.
func (s *simulated) Unwrap() Batcher { return s.batcher }

func (s *simulated) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	resp, err := s.batcher.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 8)
	go func() {
		defer close(events)
		for _, ev := range Replay(resp) {
			if !Send(ctx, events, ev) {
				return
			}
		}
	}()
	return events, nil
}

// Replay converts a whole response to the event sequence a streaming backend
// would have produced: reasoning first, then text, tool calls, files and the
// finish event.
func Replay(resp *Response) []StreamEvent {
	evs := make([]StreamEvent, 0, 3+len(resp.ToolCalls)+len(resp.Files))
	if resp.Reasoning != "" {
		evs = append(evs, ReasoningDelta{Text: resp.Reasoning, Complete: true})
	}
	if resp.Text != "" {
		evs = append(evs, TextDelta{Text: resp.Text})
	}
	for _, tc := range resp.ToolCalls {
		evs = append(evs, tc)
	}
	for _, f := range resp.Files {
		evs = append(evs, f)
	}
	reason := resp.FinishReason
	if reason == "" {
		reason = FinishReasonStop
		if len(resp.ToolCalls) > 0 {
			reason = FinishReasonToolCalls
		}
	}
	return append(evs, Finish{
		FinishReason: reason,
		Usage:        resp.Usage,
		Timestamp:    strfmt.DateTime(time.Now()),
	})
}
