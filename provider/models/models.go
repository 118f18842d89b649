// Package models keeps what is known about individual models, most notably the
// capabilities the engine uses to shape requests.
package models

import (
	"slices"
	"strings"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/weave/provider"
)

// Info describes one model.
type Info struct {
	Name          string
	Provider      string
	Capabilities  provider.Capabilities
	ContextWindow int64
}

// Registry is a concurrent map of model name to Info.
type Registry struct {
	values *haxmap.Map[string, Info]
}

// NewRegistry creates a registry holding infos.
func NewRegistry(infos ...Info) *Registry {
	r := &Registry{values: haxmap.New[string, Info]()}
	for _, info := range infos {
		r.Add(info)
	}
	return r
}

// Add registers info, replacing an earlier entry with the same name.
func (r *Registry) Add(info Info) {
	r.values.Set(info.Name, info)
}

// Get returns the info registered under name.
func (r *Registry) Get(name string) (Info, bool) {
	return r.values.Get(name)
}

// GetOrAdd returns the info registered under name, registering the result of
// infoFn when there is none. loaded reports whether the info already existed.
func (r *Registry) GetOrAdd(name string, infoFn func() Info) (info Info, loaded bool) {
	return r.values.GetOrCompute(name, infoFn)
}

// Del removes name.
func (r *Registry) Del(name string) {
	r.values.Del(name)
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.values.Len())
	r.values.ForEach(func(name string, _ Info) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// Lookup returns the info of name. Unknown models get the capabilities of the
// longest registered name they start with, which covers dated snapshots such as
// gpt-4o-2024-08-06. ok is false when nothing matched.
func (r *Registry) Lookup(name string) (info Info, ok bool) {
	if info, ok := r.Get(name); ok {
		return info, true
	}
	var best Info
	r.values.ForEach(func(known string, candidate Info) bool {
		if strings.HasPrefix(name, known) && len(known) > len(best.Name) {
			best = candidate
		}
		return true
	})
	if best.Name == "" {
		return Info{}, false
	}
	best.Name = name
	return best, true
}

// Capabilities returns the capabilities of name, falling back to def for
// unknown models.
func (r *Registry) Capabilities(name string, def provider.Capabilities) provider.Capabilities {
	if info, ok := r.Lookup(name); ok {
		return info.Capabilities
	}
	return def
}

var (
	chat      = provider.Capabilities{ToolUse: true, SystemMessage: true}
	vision    = provider.Capabilities{Vision: true, ToolUse: true, SystemMessage: true}
	reasoning = provider.Capabilities{Vision: true, ToolUse: true, Reasoning: true, SystemMessage: true}
)

// Global holds the models known out of the box.
var Global = NewRegistry(
	Info{Name: "gpt-4o", Provider: "openai", Capabilities: vision, ContextWindow: 128_000},
	Info{Name: "gpt-4o-mini", Provider: "openai", Capabilities: vision, ContextWindow: 128_000},
	Info{Name: "gpt-4.1", Provider: "openai", Capabilities: vision, ContextWindow: 1_047_576},
	Info{Name: "gpt-4.1-mini", Provider: "openai", Capabilities: vision, ContextWindow: 1_047_576},
	Info{Name: "gpt-3.5-turbo", Provider: "openai", Capabilities: chat, ContextWindow: 16_385},
	Info{Name: "o1", Provider: "openai", Capabilities: reasoning, ContextWindow: 200_000},
	Info{Name: "o1-mini", Provider: "openai", Capabilities: provider.Capabilities{Reasoning: true}, ContextWindow: 128_000},
	Info{Name: "o3-mini", Provider: "openai", Capabilities: provider.Capabilities{ToolUse: true, Reasoning: true, SystemMessage: true}, ContextWindow: 200_000},
	Info{Name: "deepseek-chat", Provider: "deepseek", Capabilities: chat, ContextWindow: 64_000},
	Info{Name: "deepseek-reasoner", Provider: "deepseek", Capabilities: provider.Capabilities{Reasoning: true, SystemMessage: true}, ContextWindow: 64_000},
)

// Add registers info in the global registry.
func Add(info Info) {
	Global.Add(info)
}

// Get looks name up in the global registry.
func Get(name string) (Info, bool) {
	return Global.Lookup(name)
}
