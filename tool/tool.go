package tool

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/casualjim/weave/pkg/reflectx"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrNotExecutable is returned by Call for definitions without a function.
var ErrNotExecutable = errors.New("tool has no function to execute")

// Definition describes a tool: its name, description, parameter names and the
// function that implements it. Schema overrides the reflected parameter schema.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]string
	Function    any
	Schema      *jsonschema.Schema
}

var functionReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// Executable reports whether the definition carries a function.
func (td Definition) Executable() bool {
	return td.Function != nil
}

// ToNameAndSchema returns the tool name and the JSON schema of its parameters.
func (td Definition) ToNameAndSchema() (string, *jsonschema.Schema) {
	name := td.Name
	if name == "" {
		name = reflectx.FunctionName(td.Function)
	}
	if td.Schema != nil {
		return name, td.Schema
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}
	if !reflectx.IsFunction(td.Function) {
		return name, schema
	}

	var required []string
	for _, p := range td.params() {
		propSchema := functionReflector.ReflectFromType(p.typ)
		propSchema.Version = ""
		schema.Properties.Set(p.name, propSchema)
		required = append(required, p.name)
	}
	if len(required) > 0 {
		schema.Required = required
	}
	return name, schema
}

type param struct {
	index int
	name  string
	typ   reflect.Type
}

// params lists the model-facing parameters. Context parameters are skipped and
// do not count towards the paramN positions.
func (td Definition) params() []param {
	typ := reflect.TypeOf(td.Function)
	var out []param
	for i := range typ.NumIn() {
		pt := typ.In(i)
		if reflectx.Implements[context.Context](pt) {
			continue
		}
		name := fmt.Sprintf("param%d", len(out))
		if p, ok := td.Parameters[name]; ok {
			name = p
		}
		out = append(out, param{index: i, name: name, typ: pt})
	}
	return out
}

// Call invokes the tool function with the JSON arguments produced by the model
// and returns its result encoded as JSON. Missing arguments are passed as zero
// values.
func (td Definition) Call(ctx context.Context, args json.RawMessage) (result json.RawMessage, err error) {
	if !td.Executable() {
		return nil, ErrNotExecutable
	}
	if len(args) > 0 && !gjson.ValidBytes(args) {
		return nil, fmt.Errorf("invalid arguments for tool %s: %s", td.Name, args)
	}

	fn := reflect.ValueOf(td.Function)
	typ := fn.Type()
	callArgs := make([]reflect.Value, typ.NumIn())
	for i := range callArgs {
		if reflectx.Implements[context.Context](typ.In(i)) {
			callArgs[i] = reflect.ValueOf(ctx)
		}
	}
	for _, p := range td.params() {
		v := reflect.New(p.typ)
		if arg := gjson.GetBytes(args, p.name); arg.Exists() {
			if err := json.Unmarshal([]byte(arg.Raw), v.Interface()); err != nil {
				return nil, fmt.Errorf("invalid argument %q for tool %s: %w", p.name, td.Name, err)
			}
		}
		callArgs[p.index] = v.Elem()
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("tool %s panicked: %v", td.Name, r)
		}
	}()
	return encodeResults(fn.Call(callArgs))
}

var errorType = reflectx.TypeFor[error]()

func encodeResults(results []reflect.Value) (json.RawMessage, error) {
	if n := len(results); n > 0 && results[n-1].Type() == errorType {
		if e := results[n-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
		results = results[:n-1]
	}
	if len(results) == 0 {
		return json.RawMessage(`null`), nil
	}
	return encodeValue(results[0])
}

func encodeValue(v reflect.Value) (json.RawMessage, error) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return json.RawMessage(`null`), nil
		}
	}

	switch val := v.Interface().(type) {
	case json.RawMessage:
		if !json.Valid(val) {
			return json.Marshal(string(val))
		}
		return val, nil
	case time.Time:
		return json.Marshal(val.Format(time.RFC3339))
	case json.Marshaler:
		return val.MarshalJSON()
	case fmt.Stringer:
		return json.Marshal(val.String())
	default:
		return json.Marshal(val)
	}
}

// Option is a type alias for a function that configures a Definition.
type Option = opts.Option[Definition]

// Must is like New but panics when the definition is invalid.
func Must(f any, options ...Option) Definition {
	def, err := New(f, options...)
	if err != nil {
		panic(err)
	}
	return def
}

// New creates a Definition for the function f. The name defaults to the
// function name.
func New(f any, options ...Option) (Definition, error) {
	if !reflectx.IsFunction(f) {
		return Definition{}, fmt.Errorf("provided value is not a function")
	}
	if reflect.TypeOf(f).IsVariadic() {
		return Definition{}, fmt.Errorf("variadic functions can not be used as tools")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		def.Name = reflectx.FunctionName(f)
	}

	def.Function = f
	return def, nil
}

// Declare creates a Definition the model can call but the engine does not
// execute, such as a tool run by the provider itself.
func Declare(name string, schema *jsonschema.Schema, options ...Option) (Definition, error) {
	if name == "" {
		return Definition{}, errors.New("tool name is required")
	}
	def := Definition{Name: name, Schema: schema}
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Name sets the tool name.
var Name = opts.ForName[Definition, string]("Name")

// Description sets the description shown to the model.
var Description = opts.ForName[Definition, string]("Description")

// Parameters names the function parameters in order. Context parameters are
// not counted.
func Parameters(parameters ...string) opts.Option[Definition] {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}
