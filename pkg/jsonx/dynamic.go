package jsonx

import json "github.com/goccy/go-json"

// ToDynamicJSON converts any Go value to a dynamic JSON object represented as a map[string]any.
// It marshals the value and unmarshals the bytes into a map, which is the shape
// SDKs expect for free-form schemas such as tool parameters.
func ToDynamicJSON(val any) (map[string]any, error) {
	result := make(map[string]any)
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// RawOrNull returns b when it holds a valid JSON value and the JSON null
// literal otherwise.
func RawOrNull(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return json.RawMessage(`null`)
	}
	return json.RawMessage(b)
}
