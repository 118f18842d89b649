// Package content defines the canonical, provider-independent representation of an
// assistant response: an ordered list of entries that grows while a completion
// streams in.
//
// Entry kinds:
//   - Text: a run of plain output text
//   - Reasoning: a run of "thinking" output with a start time and a duration
//   - ToolCall: a tool invocation together with its eventual result or error
//   - Image: a reference into blob storage for a generated image
//
// A List is append-only. Entries are mutated in place while they are the open
// entry of their kind, but they are never removed, reordered or retyped. Callers
// that receive a List from a callback get a Snapshot and cannot affect the list
// that is still being assembled.
package content
