// Package provider defines the contract between the completion engine and model
// backends.
//
// A backend implements Provider when it can stream natively, or Batcher when it
// only produces whole responses; SimulateStreaming turns a Batcher into a
// Provider by replaying the response as a stream. Image generation is a separate
// capability (ImageGenerator) that a backend may or may not implement.
//
// Streams are channels of StreamEvent values. The producer owns the channel,
// closes it when the request is over and stops sending once the request context
// is done. Events are consumed in order by a single goroutine:
//
//	events, err := p.Stream(ctx, provider.Request{Messages: msgs})
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    switch e := ev.(type) {
//	    case provider.TextDelta:
//	        // append e.Text
//	    case provider.ToolCall:
//	        // correlate e.ID
//	    case provider.Error:
//	        return e.Err
//	    }
//	}
//
// Every event has a JSON form with a "type" discriminator so streams can be
// recorded and replayed (see MarshalEvent and UnmarshalEvent).
package provider
