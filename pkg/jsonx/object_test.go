package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject(t *testing.T) {
	tpl := []byte(`{"type":"tool-call"}`)
	b, err := NewObject(tpl).
		Set("id", "c1").
		SetIf(false, "skipped", true).
		SetIf(true, "count", 3).
		SetRaw("args", []byte(`{"q":"x"}`)).
		SetRaw("empty", nil).
		Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"tool-call","id":"c1","count":3,"args":{"q":"x"}}`, string(b))
	assert.Equal(t, `{"type":"tool-call"}`, string(tpl))
}

func TestObject_StickyError(t *testing.T) {
	_, err := NewObject([]byte(`{}`)).Set("", "bad path").Set("ok", 1).Bytes()
	assert.Error(t, err)
}

func TestRawOrNull(t *testing.T) {
	assert.Equal(t, "null", string(RawOrNull(nil)))
	assert.Equal(t, "null", string(RawOrNull([]byte(`{broken`))))
	assert.Equal(t, `{"a":1}`, string(RawOrNull([]byte(`{"a":1}`))))
}
