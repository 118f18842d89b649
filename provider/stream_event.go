package provider

import (
	"errors"
	"fmt"
	"reflect"
	"unicode"

	"github.com/casualjim/weave/pkg/jsonx"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

var (
	textDeltaJSON      = []byte(`{"type":"text-delta"}`)
	reasoningDeltaJSON = []byte(`{"type":"reasoning"}`)
	toolCallJSON       = []byte(`{"type":"tool-call"}`)
	toolResultJSON     = []byte(`{"type":"tool-result"}`)
	toolErrorJSON      = []byte(`{"type":"tool-error"}`)
	fileJSON           = []byte(`{"type":"file"}`)
	stepStartJSON      = []byte(`{"type":"start-step"}`)
	stepFinishJSON     = []byte(`{"type":"finish-step"}`)
	finishJSON         = []byte(`{"type":"finish"}`)
	errorJSON          = []byte(`{"type":"error"}`)
)

// StreamEvent is one event of a completion stream.
type StreamEvent interface {
	streamEvent()
}

// TextDelta is a chunk of output text.
type TextDelta struct {
	Text string
}

// ReasoningDelta is a chunk of reasoning output. Complete is set when the
// backend delivered the reasoning whole instead of streaming it.
type ReasoningDelta struct {
	Text     string
	Complete bool
}

// ToolCall is the model asking to invoke a tool.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// ToolResult is the outcome of a tool call. A result with Err set, or whose
// Result is an error object ({"isError":true,...}), is a failed call.
type ToolResult struct {
	ID     string
	Name   string
	Args   json.RawMessage
	Result json.RawMessage
	Err    error
}

// ToolError reports that a tool call failed.
type ToolError struct {
	ID   string
	Name string
	Args json.RawMessage
	Err  error
}

// File is a generated file, base64 encoded.
type File struct {
	MediaType string
	Base64    string
}

// StepStart marks the beginning of one provider round trip in a multi-step run.
type StepStart struct {
	Step int
}

// StepFinish marks the end of one provider round trip.
type StepFinish struct {
	Step         int
	FinishReason FinishReason
	Usage        Usage
}

// Finish is the last event of a successful stream.
type Finish struct {
	FinishReason FinishReason
	Usage        Usage
	Timestamp    strfmt.DateTime
}

// Error terminates the stream with a failure.
type Error struct {
	Err       error
	Timestamp strfmt.DateTime
}

func (TextDelta) streamEvent()      {}
func (ReasoningDelta) streamEvent() {}
func (ToolCall) streamEvent()       {}
func (ToolResult) streamEvent()     {}
func (ToolError) streamEvent()      {}
func (File) streamEvent()           {}
func (StepStart) streamEvent()      {}
func (StepFinish) streamEvent()     {}
func (Finish) streamEvent()         {}
func (Error) streamEvent()          {}

func (e Error) Error() string {
	if e.Err == nil {
		return "stream error"
	}
	return e.Err.Error()
}

func (e Error) Unwrap() error { return e.Err }

// ToolFailure is an exception-shaped tool failure: a name, a message and an
// optional stack.
type ToolFailure struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (f *ToolFailure) Error() string {
	if f.Name == "" {
		return f.Message
	}
	return f.Name + ": " + f.Message
}

// FailureOf describes err as a ToolFailure. Errors that are or wrap a
// *ToolFailure keep their fields; other errors are named after their type.
func FailureOf(err error) *ToolFailure {
	if err == nil {
		return nil
	}
	var tf *ToolFailure
	if errors.As(err, &tf) {
		return tf
	}
	return &ToolFailure{Name: errorName(err), Message: err.Error()}
}

func errorName(err error) string {
	if n, ok := err.(interface{ Name() string }); ok {
		return n.Name()
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" || !unicode.IsUpper(rune(name[0])) {
		return "Error"
	}
	return name
}

// Failure reports whether the result is error-shaped and, if so, describes the
// failure.
func (r ToolResult) Failure() (*ToolFailure, bool) {
	if r.Err != nil {
		return FailureOf(r.Err), true
	}
	if !gjson.GetBytes(r.Result, "isError").Bool() {
		return nil, false
	}
	f := &ToolFailure{
		Name:    gjson.GetBytes(r.Result, "name").String(),
		Message: gjson.GetBytes(r.Result, "message").String(),
		Stack:   gjson.GetBytes(r.Result, "stack").String(),
	}
	if f.Name == "" {
		f.Name = "Error"
	}
	return f, true
}

// MarshalEvent encodes any stream event with its "type" discriminator.
func MarshalEvent(ev StreamEvent) ([]byte, error) {
	m, ok := ev.(json.Marshaler)
	if !ok {
		return nil, fmt.Errorf("unsupported stream event %T", ev)
	}
	return m.MarshalJSON()
}

// UnmarshalEvent decodes an event produced by MarshalEvent.
func UnmarshalEvent(data []byte) (StreamEvent, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	tpe := gjson.GetBytes(data, "type").String()
	var (
		ev  StreamEvent
		err error
	)
	switch tpe {
	case "text-delta":
		var e TextDelta
		err = e.UnmarshalJSON(data)
		ev = e
	case "reasoning":
		var e ReasoningDelta
		err = e.UnmarshalJSON(data)
		ev = e
	case "tool-call":
		var e ToolCall
		err = e.UnmarshalJSON(data)
		ev = e
	case "tool-result":
		var e ToolResult
		err = e.UnmarshalJSON(data)
		ev = e
	case "tool-error":
		var e ToolError
		err = e.UnmarshalJSON(data)
		ev = e
	case "file":
		var e File
		err = e.UnmarshalJSON(data)
		ev = e
	case "start-step":
		var e StepStart
		err = e.UnmarshalJSON(data)
		ev = e
	case "finish-step":
		var e StepFinish
		err = e.UnmarshalJSON(data)
		ev = e
	case "finish":
		var e Finish
		err = e.UnmarshalJSON(data)
		ev = e
	case "error":
		var e Error
		err = e.UnmarshalJSON(data)
		ev = e
	default:
		return nil, fmt.Errorf("unknown stream event type %q", tpe)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s event: %w", tpe, err)
	}
	return ev, nil
}

// MarshalJSON implements custom JSON marshaling for TextDelta
func (t TextDelta) MarshalJSON() ([]byte, error) {
	return jsonx.NewObject(textDeltaJSON).Set("text", t.Text).Bytes()
}

// UnmarshalJSON implements custom JSON unmarshaling for TextDelta
func (t *TextDelta) UnmarshalJSON(data []byte) error {
	text := gjson.GetBytes(data, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	t.Text = text.String()
	return nil
}

// MarshalJSON implements custom JSON marshaling for ReasoningDelta
func (r ReasoningDelta) MarshalJSON() ([]byte, error) {
	return jsonx.NewObject(reasoningDeltaJSON).
		Set("text", r.Text).
		SetIf(r.Complete, "complete", true).
		Bytes()
}

// UnmarshalJSON implements custom JSON unmarshaling for ReasoningDelta
func (r *ReasoningDelta) UnmarshalJSON(data []byte) error {
	text := gjson.GetBytes(data, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	r.Text = text.String()
	r.Complete = gjson.GetBytes(data, "complete").Bool()
	return nil
}

// MarshalJSON implements custom JSON marshaling for ToolCall
func (t ToolCall) MarshalJSON() ([]byte, error) {
	return jsonx.NewObject(toolCallJSON).
		Set("toolCallId", t.ID).
		Set("toolName", t.Name).
		SetRaw("args", jsonx.RawOrNull(t.Args)).
		Bytes()
}

// UnmarshalJSON implements custom JSON unmarshaling for ToolCall
func (t *ToolCall) UnmarshalJSON(data []byte) error {
	id, name, args, err := decodeToolRef(data)
	if err != nil {
		return err
	}
	t.ID, t.Name, t.Args = id, name, args
	return nil
}

// MarshalJSON implements custom JSON marshaling for ToolResult
func (t ToolResult) MarshalJSON() ([]byte, error) {
	obj := jsonx.NewObject(toolResultJSON).
		Set("toolCallId", t.ID).
		Set("toolName", t.Name).
		SetRaw("args", jsonx.RawOrNull(t.Args)).
		SetRaw("result", jsonx.RawOrNull(t.Result))
	if t.Err != nil {
		obj.Set("error", FailureOf(t.Err))
	}
	return obj.Bytes()
}

// UnmarshalJSON implements custom JSON unmarshaling for ToolResult
func (t *ToolResult) UnmarshalJSON(data []byte) error {
	id, name, args, err := decodeToolRef(data)
	if err != nil {
		return err
	}
	t.ID, t.Name, t.Args = id, name, args
	if res := gjson.GetBytes(data, "result"); res.Exists() {
		t.Result = json.RawMessage(res.Raw)
	}
	if fe := gjson.GetBytes(data, "error"); fe.Exists() {
		t.Err = decodeFailure(fe)
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling for ToolError
func (t ToolError) MarshalJSON() ([]byte, error) {
	obj := jsonx.NewObject(toolErrorJSON).
		Set("toolCallId", t.ID).
		Set("toolName", t.Name).
		SetRaw("args", jsonx.RawOrNull(t.Args))
	if t.Err != nil {
		obj.Set("error", FailureOf(t.Err))
	}
	return obj.Bytes()
}

// UnmarshalJSON implements custom JSON unmarshaling for ToolError
func (t *ToolError) UnmarshalJSON(data []byte) error {
	id, name, args, err := decodeToolRef(data)
	if err != nil {
		return err
	}
	t.ID, t.Name, t.Args = id, name, args
	fe := gjson.GetBytes(data, "error")
	if !fe.Exists() {
		return errors.New("missing required field 'error'")
	}
	t.Err = decodeFailure(fe)
	return nil
}

// MarshalJSON implements custom JSON marshaling for File
func (f File) MarshalJSON() ([]byte, error) {
	return jsonx.NewObject(fileJSON).
		Set("mediaType", f.MediaType).
		Set("base64", f.Base64).
		Bytes()
}

// UnmarshalJSON implements custom JSON unmarshaling for File
func (f *File) UnmarshalJSON(data []byte) error {
	mt := gjson.GetBytes(data, "mediaType")
	if !mt.Exists() {
		return errors.New("missing required field 'mediaType'")
	}
	f.MediaType = mt.String()
	f.Base64 = gjson.GetBytes(data, "base64").String()
	return nil
}

// MarshalJSON implements custom JSON marshaling for StepStart
func (s StepStart) MarshalJSON() ([]byte, error) {
	return jsonx.NewObject(stepStartJSON).Set("step", s.Step).Bytes()
}

// UnmarshalJSON implements custom JSON unmarshaling for StepStart
func (s *StepStart) UnmarshalJSON(data []byte) error {
	s.Step = int(gjson.GetBytes(data, "step").Int())
	return nil
}

// MarshalJSON implements custom JSON marshaling for StepFinish
func (s StepFinish) MarshalJSON() ([]byte, error) {
	return jsonx.NewObject(stepFinishJSON).
		Set("step", s.Step).
		Set("finishReason", string(s.FinishReason)).
		Set("usage", s.Usage).
		Bytes()
}

// UnmarshalJSON implements custom JSON unmarshaling for StepFinish
func (s *StepFinish) UnmarshalJSON(data []byte) error {
	s.Step = int(gjson.GetBytes(data, "step").Int())
	s.FinishReason = FinishReason(gjson.GetBytes(data, "finishReason").String())
	return decodeUsage(data, &s.Usage)
}

// MarshalJSON implements custom JSON marshaling for Finish
func (f Finish) MarshalJSON() ([]byte, error) {
	return jsonx.NewObject(finishJSON).
		Set("finishReason", string(f.FinishReason)).
		Set("usage", f.Usage).
		SetIf(!f.Timestamp.IsZero(), "timestamp", f.Timestamp.String()).
		Bytes()
}

// UnmarshalJSON implements custom JSON unmarshaling for Finish
func (f *Finish) UnmarshalJSON(data []byte) error {
	f.FinishReason = FinishReason(gjson.GetBytes(data, "finishReason").String())
	if err := decodeTimestamp(data, &f.Timestamp); err != nil {
		return err
	}
	return decodeUsage(data, &f.Usage)
}

// MarshalJSON implements custom JSON marshaling for Error
func (e Error) MarshalJSON() ([]byte, error) {
	return jsonx.NewObject(errorJSON).
		SetIf(e.Err != nil, "error", e.Error()).
		SetIf(!e.Timestamp.IsZero(), "timestamp", e.Timestamp.String()).
		Bytes()
}

// UnmarshalJSON implements custom JSON unmarshaling for Error
func (e *Error) UnmarshalJSON(data []byte) error {
	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(errMsg.String())
	return decodeTimestamp(data, &e.Timestamp)
}

func decodeToolRef(data []byte) (id, name string, args json.RawMessage, err error) {
	idv := gjson.GetBytes(data, "toolCallId")
	if !idv.Exists() {
		return "", "", nil, errors.New("missing required field 'toolCallId'")
	}
	if a := gjson.GetBytes(data, "args"); a.Exists() {
		args = json.RawMessage(a.Raw)
	}
	return idv.String(), gjson.GetBytes(data, "toolName").String(), args, nil
}

func decodeFailure(v gjson.Result) error {
	if v.Type == gjson.String {
		return &ToolFailure{Name: "Error", Message: v.String()}
	}
	return &ToolFailure{
		Name:    v.Get("name").String(),
		Message: v.Get("message").String(),
		Stack:   v.Get("stack").String(),
	}
}

func decodeUsage(data []byte, u *Usage) error {
	usage := gjson.GetBytes(data, "usage")
	if !usage.Exists() {
		return nil
	}
	if err := json.Unmarshal([]byte(usage.Raw), u); err != nil {
		return fmt.Errorf("invalid usage: %w", err)
	}
	return nil
}

func decodeTimestamp(data []byte, ts *strfmt.DateTime) error {
	timestamp := gjson.GetBytes(data, "timestamp")
	if !timestamp.Exists() {
		return nil
	}
	if err := ts.UnmarshalText([]byte(timestamp.String())); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	return nil
}
