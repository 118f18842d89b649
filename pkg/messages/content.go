// Package messages provides the conversation messages that are sent to a model
// provider, including multi-part user content with text and images.
package messages

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var jsonNull = []byte(`null`)

// ContentOrParts represents either a simple string content or a collection of content parts.
type ContentOrParts struct {
	Content string        // Raw string content, used when the message is just text
	Parts   []ContentPart // Text and image parts
	_       struct{}      // require keyed usage
}

// Text returns the plain text of the content, joining text parts when the
// content is multi-part.
func (c ContentOrParts) Text() string {
	if c.Content != "" || len(c.Parts) == 0 {
		return c.Content
	}
	var sb strings.Builder
	for _, part := range c.Parts {
		if tp, ok := part.(TextContentPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// HasImages reports whether any part is an image.
func (c ContentOrParts) HasImages() bool {
	for _, part := range c.Parts {
		if _, ok := part.(ImageContentPart); ok {
			return true
		}
	}
	return false
}

// MarshalJSON returns the Content as a JSON string if it's non-empty,
// otherwise the Parts as a JSON array, or null when both are empty.
func (c ContentOrParts) MarshalJSON() ([]byte, error) {
	if strings.TrimSpace(c.Content) != "" {
		return json.Marshal(c.Content)
	}
	if c.Parts == nil {
		return jsonNull, nil
	}
	return json.Marshal(c.Parts)
}

// UnmarshalJSON accepts a plain string or an array of typed parts.
func (c *ContentOrParts) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	jv := gjson.ParseBytes(input)
	if !jv.IsArray() {
		c.Content = jv.String()
		return nil
	}
	items := jv.Array()
	c.Parts = make([]ContentPart, 0, len(items))
	for idx, item := range items {
		part, err := decodePart(item)
		if err != nil {
			return fmt.Errorf("content part at %d: %w", idx, err)
		}
		c.Parts = append(c.Parts, part)
	}
	return nil
}

func decodePart(item gjson.Result) (ContentPart, error) {
	switch tpe := item.Get("type").String(); tpe {
	case "text":
		var part TextContentPart
		err := part.UnmarshalJSON([]byte(item.Raw))
		return part, err
	case "image":
		var part ImageContentPart
		err := part.UnmarshalJSON([]byte(item.Raw))
		return part, err
	default:
		return nil, fmt.Errorf("unknown type %q", tpe)
	}
}

// ContentPart marks structs as valid content parts.
type ContentPart interface {
	contentPart()
}

// Text creates a new TextContentPart with the given text.
func Text(text string) TextContentPart {
	return TextContentPart{Text: text}
}

// TextContentPart represents a text-only content part.
type TextContentPart struct {
	Text string   `json:"text"`
	_    struct{} // require keyed usage
}

func (TextContentPart) contentPart() {}

var tcpJSON = []byte(`{"type":"text"}`)

// MarshalJSON serializes the text content with a "type":"text" field.
func (t TextContentPart) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(tcpJSON, "text", t.Text)
}

// UnmarshalJSON extracts the required 'text' field.
func (t *TextContentPart) UnmarshalJSON(input []byte) error {
	text := gjson.GetBytes(input, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	t.Text = text.String()
	return nil
}

// Image creates a new ImageContentPart with the given URL. Data URLs are allowed.
func Image(url string) ImageContentPart {
	return ImageContentPart{URL: url}
}

// ImageContentPart represents an image content part with a URL and optional detail level.
type ImageContentPart struct {
	URL    string   `json:"image_url"`
	Detail string   `json:"detail,omitempty"`
	_      struct{} // require keyed usage
}

func (ImageContentPart) contentPart() {}

var icpJSON = []byte(`{"type":"image"}`)

// MarshalJSON serializes the image URL with a "type":"image" field.
func (i ImageContentPart) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(icpJSON, "image_url", i.URL)
	if err != nil || i.Detail == "" {
		return result, err
	}
	return sjson.SetBytes(result, "detail", i.Detail)
}

// UnmarshalJSON extracts the required 'image_url' field.
func (i *ImageContentPart) UnmarshalJSON(input []byte) error {
	uri := gjson.GetBytes(input, "image_url")
	if !uri.Exists() {
		return errors.New("missing required field 'image_url'")
	}
	i.URL = uri.String()
	i.Detail = gjson.GetBytes(input, "detail").String()
	return nil
}
