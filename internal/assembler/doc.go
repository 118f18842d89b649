// Package assembler folds a provider event stream into a content list.
//
// The assembler keeps at most one open text entry and one open reasoning entry.
// Text and reasoning deltas extend the open entry of their kind or start a new
// one; anything else closes the open reasoning span and clears both handles, so
// interleaved output produces alternating entries in arrival order. Tool calls
// are correlated with their results and errors by id.
//
// An Assembler is owned by the goroutine consuming one stream and is not safe
// for concurrent use.
package assembler
