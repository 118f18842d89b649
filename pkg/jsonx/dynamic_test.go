package jsonx

import (
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func TestToDynamicJSON_Schema(t *testing.T) {
	props := orderedmap.New[string, *jsonschema.Schema]()
	props.Set("city", &jsonschema.Schema{Type: "string"})
	props.Set("days", &jsonschema.Schema{Type: "integer"})
	schema := &jsonschema.Schema{Type: "object", Properties: props, Required: []string{"city"}}

	got, err := ToDynamicJSON(schema)
	require.NoError(t, err)

	assert.Equal(t, "object", got["type"])
	assert.Equal(t, []any{"city"}, got["required"])
	properties, ok := got["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "integer"}, properties["days"])
}

func TestToDynamicJSON_Errors(t *testing.T) {
	_, err := ToDynamicJSON(make(chan int))
	assert.Error(t, err)

	_, err = ToDynamicJSON([]string{"not", "an", "object"})
	assert.Error(t, err)
}
