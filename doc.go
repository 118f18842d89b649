/*
Package weave turns the event stream of any model provider into one ordered,
append-only list of content entries.

A completion run feeds provider events through an assembler that merges text
deltas, times reasoning spans, correlates tool calls with their results and
stores generated images in a blob store. Callers observe the list through a
change callback, which always receives a snapshot, and get the final list,
usage and finish reason when the run completes.

# Basic Usage

	p := breaker.Wrap(openai.GPT4oMini(), breaker.Config{}, logger)
	engine, err := weave.New(p,
		weave.WithBlobStore(blobstore.NewMemory()),
	)
	if err != nil {
		return err
	}

	res, err := engine.Run(ctx, []messages.Message{messages.User("Hi")},
		weave.OnContentChange(func(u weave.Update) {
			render(u.Entries)
		}),
	)

# Failures

Run returns a *llmerr.PartialResultError when the run fails. It wraps the
classified error (see package llmerr) and carries the entries produced before
the failure. Cancelling ctx is not a failure: the run resolves with
StateCancelled and the entries built so far.

Unexpected failures are reported to the configured diagnostics.Sink.

# Tools

Tools passed with the Tools run option are offered to the model. When a step
ends asking for tools, the run executes them, records their results on the
tool call entries and continues with the next step, up to MaxSteps.
*/
package weave
