package assembler

import "github.com/casualjim/weave/content"

// correlationTable maps tool call ids to their entries for the lifetime of one
// request. Entries are never removed.
type correlationTable map[string]*content.ToolCall

// register adds tc and reports false when the id is already taken.
func (c correlationTable) register(tc *content.ToolCall) bool {
	if _, ok := c[tc.ID]; ok {
		return false
	}
	c[tc.ID] = tc
	return true
}

func (c correlationTable) lookup(id string) (*content.ToolCall, bool) {
	tc, ok := c[id]
	return tc, ok
}
