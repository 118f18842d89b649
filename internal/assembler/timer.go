package assembler

import (
	"time"

	"github.com/casualjim/weave/content"
)

// completeReasoningDuration is recorded for reasoning that arrives whole, so
// the span still reads as closed.
const completeReasoningDuration = time.Millisecond

// reasoningTimer owns the open reasoning span.
type reasoningTimer struct {
	now  func() time.Time
	open *content.Reasoning
}

// start returns the open span, creating one when there is none. created reports
// whether a new entry must be appended.
func (t *reasoningTimer) start() (r *content.Reasoning, created bool) {
	if t.open != nil {
		return t.open, false
	}
	t.open = &content.Reasoning{StartTime: t.now()}
	return t.open, true
}

// complete returns a span for reasoning delivered in one piece. It is closed
// from the start.
func (t *reasoningTimer) complete(text string) *content.Reasoning {
	r := &content.Reasoning{Text: text, StartTime: t.now()}
	r.CloseWith(completeReasoningDuration)
	return r
}

// close ends the open span. Calling it without an open span is a no-op.
func (t *reasoningTimer) close() bool {
	if t.open == nil {
		return false
	}
	closed := t.open.Close(t.now())
	t.open = nil
	return closed
}

// closeAll closes the open span and any reasoning entry still lacking a
// duration.
func (t *reasoningTimer) closeAll(entries content.List) bool {
	changed := t.close()
	now := t.now()
	for _, e := range entries {
		if r, ok := e.(*content.Reasoning); ok && r.Close(now) {
			changed = true
		}
	}
	return changed
}
