package jsonx

import (
	"bytes"

	"github.com/tidwall/sjson"
)

// Object builds a JSON document with sjson, starting from a template such as
// {"type":"text"}. The first failing write sticks and is returned by Bytes, so
// codecs can chain setters without checking every step.
type Object struct {
	buf []byte
	err error
}

// NewObject starts a document from a copy of tpl.
func NewObject(tpl []byte) *Object {
	return &Object{buf: bytes.Clone(tpl)}
}

// Set writes value at path.
func (o *Object) Set(path string, value any) *Object {
	if o.err == nil {
		o.buf, o.err = sjson.SetBytes(o.buf, path, value)
	}
	return o
}

// SetIf writes value at path when cond holds.
func (o *Object) SetIf(cond bool, path string, value any) *Object {
	if !cond {
		return o
	}
	return o.Set(path, value)
}

// SetRaw writes an already encoded JSON value at path. Empty values are skipped.
func (o *Object) SetRaw(path string, raw []byte) *Object {
	if o.err == nil && len(raw) > 0 {
		o.buf, o.err = sjson.SetRawBytes(o.buf, path, raw)
	}
	return o
}

// Bytes returns the document or the first error.
func (o *Object) Bytes() ([]byte, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.buf, nil
}
