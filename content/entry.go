package content

import (
	"bytes"
	"slices"
	"time"

	json "github.com/goccy/go-json"
)

// Kind discriminates the entries of a List.
type Kind string

const (
	// KindText marks a *Text entry.
	KindText Kind = "text"
	// KindReasoning marks a *Reasoning entry.
	KindReasoning Kind = "reasoning"
	// KindToolCall marks a *ToolCall entry.
	KindToolCall Kind = "tool-call"
	// KindImage marks an *Image entry.
	KindImage Kind = "image"
)

// Entry is one unit of assistant output. Implementations are *Text, *Reasoning,
// *ToolCall and *Image.
type Entry interface {
	Kind() Kind
	clone() Entry
}

// Text is a run of output text. It only ever grows by appending.
type Text struct {
	Text string
}

func (*Text) Kind() Kind { return KindText }

func (t *Text) clone() Entry {
	c := *t
	return &c
}

// Reasoning is a contiguous run of reasoning output. Duration stays nil while the
// span is open and is set exactly once when it closes.
type Reasoning struct {
	Text      string
	StartTime time.Time
	Duration  *time.Duration
}

func (*Reasoning) Kind() Kind { return KindReasoning }

// Closed reports whether the span has a duration.
func (r *Reasoning) Closed() bool {
	return r.Duration != nil
}

// Close sets the duration of the span relative to now. Closing an already closed
// span is a no-op. Negative durations (clock skew) are clamped to zero.
func (r *Reasoning) Close(now time.Time) bool {
	if r.Duration != nil {
		return false
	}
	d := now.Sub(r.StartTime).Truncate(time.Millisecond)
	if d < 0 {
		d = 0
	}
	r.Duration = &d
	return true
}

// CloseWith sets a fixed duration if the span is still open.
func (r *Reasoning) CloseWith(d time.Duration) bool {
	if r.Duration != nil {
		return false
	}
	r.Duration = &d
	return true
}

func (r *Reasoning) clone() Entry {
	c := *r
	if r.Duration != nil {
		d := *r.Duration
		c.Duration = &d
	}
	return &c
}

// ToolState is the lifecycle state of a tool call entry.
type ToolState string

const (
	ToolStateCall   ToolState = "call"
	ToolStateResult ToolState = "result"
	ToolStateError  ToolState = "error"
)

// ToolCall is a tool invocation. Args and Result are opaque JSON values; Result is
// only present once State is no longer ToolStateCall.
type ToolCall struct {
	ID     string
	Name   string
	Args   json.RawMessage
	State  ToolState
	Result json.RawMessage
}

func (*ToolCall) Kind() Kind { return KindToolCall }

// Resolve moves the call into the result state. It returns false when the call was
// already resolved.
func (t *ToolCall) Resolve(result json.RawMessage) bool {
	if t.State != ToolStateCall {
		return false
	}
	t.State = ToolStateResult
	t.Result = orNull(result)
	return true
}

// Fail moves the call into the error state. It returns false when the call was
// already resolved.
func (t *ToolCall) Fail(payload json.RawMessage) bool {
	if t.State != ToolStateCall {
		return false
	}
	t.State = ToolStateError
	t.Result = orNull(payload)
	return true
}

func (t *ToolCall) clone() Entry {
	c := *t
	c.Args = bytes.Clone(t.Args)
	c.Result = bytes.Clone(t.Result)
	return &c
}

// Image references a generated image persisted in blob storage.
type Image struct {
	StorageKey string
}

func (*Image) Kind() Kind { return KindImage }

func (i *Image) clone() Entry {
	c := *i
	return &c
}

// List is the ordered list of entries for one response.
type List []Entry

// Snapshot returns a deep copy of the list.
func (l List) Snapshot() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	for i, e := range l {
		out[i] = e.clone()
	}
	return out
}

// Text concatenates all text entries.
func (l List) Text() string {
	var buf bytes.Buffer
	for _, e := range l {
		if t, ok := e.(*Text); ok {
			buf.WriteString(t.Text)
		}
	}
	return buf.String()
}

// ToolCalls returns the tool call entries in order.
func (l List) ToolCalls() []*ToolCall {
	var calls []*ToolCall
	for _, e := range l {
		if tc, ok := e.(*ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// Kinds returns the kind of every entry, mostly useful in tests and logs.
func (l List) Kinds() []Kind {
	kinds := make([]Kind, len(l))
	for i, e := range l {
		kinds[i] = e.Kind()
	}
	return kinds
}

// IsPrefixOf reports whether l could have grown into other: other is at least as
// long and every entry of l has the same kind at the same position.
func (l List) IsPrefixOf(other List) bool {
	if len(other) < len(l) {
		return false
	}
	return slices.Equal(l.Kinds(), other[:len(l)].Kinds())
}

var jsonNull = json.RawMessage(`null`)

func orNull(v json.RawMessage) json.RawMessage {
	if len(v) == 0 {
		return jsonNull
	}
	return v
}
