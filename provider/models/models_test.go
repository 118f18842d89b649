package models

import (
	"testing"

	"github.com/casualjim/weave/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(Info{Name: "alpha", Capabilities: provider.Capabilities{ToolUse: true}})

	info, ok := r.Get("alpha")
	require.True(t, ok)
	assert.True(t, info.Capabilities.ToolUse)

	got, loaded := r.GetOrAdd("beta", func() Info { return Info{Name: "beta"} })
	assert.False(t, loaded)
	assert.Equal(t, "beta", got.Name)
	assert.Equal(t, []string{"alpha", "beta"}, r.Names())

	r.Del("beta")
	_, ok = r.Get("beta")
	assert.False(t, ok)
}

func TestRegistry_LookupByPrefix(t *testing.T) {
	r := NewRegistry(
		Info{Name: "gpt-4o", Capabilities: provider.Capabilities{Vision: true}},
		Info{Name: "gpt-4o-mini", Capabilities: provider.Capabilities{ToolUse: true}},
	)

	info, ok := r.Lookup("gpt-4o-mini-2024-07-18")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", info.Name)
	assert.True(t, info.Capabilities.ToolUse)
	assert.False(t, info.Capabilities.Vision)

	_, ok = r.Lookup("claude")
	assert.False(t, ok)

	def := provider.Capabilities{SystemMessage: true}
	assert.Equal(t, def, r.Capabilities("claude", def))
}

func TestGlobal(t *testing.T) {
	info, ok := Get("o1-2024-12-17")
	require.True(t, ok)
	assert.True(t, info.Capabilities.Reasoning)
	assert.Equal(t, "openai", info.Provider)
}
