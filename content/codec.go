package content

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	textJSON      = []byte(`{"type":"text"}`)
	reasoningJSON = []byte(`{"type":"reasoning"}`)
	toolCallJSON  = []byte(`{"type":"tool-call"}`)
	imageJSON     = []byte(`{"type":"image"}`)
	emptyArray    = []byte(`[]`)
)

// MarshalJSON serializes the text entry with a "type":"text" field.
func (t *Text) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(textJSON, "text", t.Text)
}

// UnmarshalJSON requires the 'text' field.
func (t *Text) UnmarshalJSON(input []byte) error {
	text := gjson.GetBytes(input, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	t.Text = text.String()
	return nil
}

// MarshalJSON serializes the reasoning entry. Start time and duration are written
// in milliseconds; duration is omitted while the span is open.
func (r *Reasoning) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(reasoningJSON, "text", r.Text)
	if err != nil {
		return nil, err
	}
	if !r.StartTime.IsZero() {
		result, err = sjson.SetBytes(result, "startTime", r.StartTime.UnixMilli())
		if err != nil {
			return nil, err
		}
	}
	if r.Duration != nil {
		result, err = sjson.SetBytes(result, "duration", r.Duration.Milliseconds())
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UnmarshalJSON requires the 'text' field; startTime and duration are optional.
func (r *Reasoning) UnmarshalJSON(input []byte) error {
	text := gjson.GetBytes(input, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	r.Text = text.String()
	if st := gjson.GetBytes(input, "startTime"); st.Exists() {
		r.StartTime = time.UnixMilli(st.Int())
	}
	if d := gjson.GetBytes(input, "duration"); d.Exists() {
		dur := time.Duration(d.Int()) * time.Millisecond
		r.Duration = &dur
	}
	return nil
}

// MarshalJSON serializes the tool call with its raw args and result.
func (t *ToolCall) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(toolCallJSON, "state", string(t.State))
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "toolCallId", t.ID)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "toolName", t.Name)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetRawBytes(result, "args", orNull(t.Args))
	if err != nil {
		return nil, err
	}
	if len(t.Result) > 0 {
		result, err = sjson.SetRawBytes(result, "result", t.Result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UnmarshalJSON requires 'toolCallId' and 'state'.
func (t *ToolCall) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	id := gjson.GetBytes(input, "toolCallId")
	if !id.Exists() {
		return errors.New("missing required field 'toolCallId'")
	}
	state := gjson.GetBytes(input, "state")
	switch ToolState(state.String()) {
	case ToolStateCall, ToolStateResult, ToolStateError:
	default:
		return fmt.Errorf("invalid tool call state %q", state.String())
	}
	t.ID = id.String()
	t.State = ToolState(state.String())
	t.Name = gjson.GetBytes(input, "toolName").String()
	if args := gjson.GetBytes(input, "args"); args.Exists() {
		t.Args = json.RawMessage(args.Raw)
	}
	if res := gjson.GetBytes(input, "result"); res.Exists() {
		t.Result = json.RawMessage(res.Raw)
	}
	return nil
}

// MarshalJSON serializes the image reference.
func (i *Image) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(imageJSON, "storageKey", i.StorageKey)
}

// UnmarshalJSON requires the 'storageKey' field.
func (i *Image) UnmarshalJSON(input []byte) error {
	key := gjson.GetBytes(input, "storageKey")
	if !key.Exists() {
		return errors.New("missing required field 'storageKey'")
	}
	i.StorageKey = key.String()
	return nil
}

// MarshalJSON serializes the list as a JSON array of typed entries.
func (l List) MarshalJSON() ([]byte, error) {
	result := emptyArray
	for idx, e := range l {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entry %d: %w", idx, err)
		}
		result, err = sjson.SetRawBytes(result, "-1", b)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UnmarshalJSON decodes an array of typed entries, dispatching on "type".
func (l *List) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	jv := gjson.ParseBytes(input)
	if jv.Type == gjson.Null {
		*l = nil
		return nil
	}
	if !jv.IsArray() {
		return errors.New("content list must be a json array")
	}
	items := jv.Array()
	out := make(List, len(items))
	for idx, item := range items {
		var entry interface {
			Entry
			UnmarshalJSON([]byte) error
		}
		switch tpe := item.Get("type").String(); Kind(tpe) {
		case KindText:
			entry = &Text{}
		case KindReasoning:
			entry = &Reasoning{}
		case KindToolCall:
			entry = &ToolCall{}
		case KindImage:
			entry = &Image{}
		default:
			return fmt.Errorf("entry at %d has an unknown type %q", idx, tpe)
		}
		if err := entry.UnmarshalJSON([]byte(item.Raw)); err != nil {
			return fmt.Errorf("invalid %s entry at %d: %w", entry.Kind(), idx, err)
		}
		out[idx] = entry
	}
	*l = out
	return nil
}
