/*
Package openai adapts OpenAI compatible chat completion APIs to the provider
interfaces.

A Provider streams completions (provider.Provider), returns whole completions
(provider.Batcher) and generates images (provider.ImageGenerator):

	p := openai.New(openai.ChatModelGPT4oMini,
		option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
	)

Any backend speaking the same wire protocol works by pointing the client
elsewhere with option.WithBaseURL. Reasoning output that such backends send as
a reasoning_content (or reasoning) field next to the regular delta content is
surfaced as provider.ReasoningDelta.

# Streaming

Stream sends the request before it returns, so authentication failures and
rejected requests come back as an error instead of an event. Text and
reasoning deltas are forwarded as they arrive. Tool calls are accumulated
across chunks and emitted once their arguments are complete, right before the
finish event.

# Errors

API failures are returned as *llmerr.APICallError carrying the status code and
the response body.
*/
package openai
