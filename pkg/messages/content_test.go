package messages

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentOrParts_MarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		content ContentOrParts
		want    string
	}{
		{
			name:    "empty content and parts",
			content: ContentOrParts{},
			want:    "null",
		},
		{
			name:    "simple string content",
			content: ContentOrParts{Content: "hello world"},
			want:    `"hello world"`,
		},
		{
			name:    "whitespace only content should marshal to parts",
			content: ContentOrParts{Content: "   "},
			want:    "null",
		},
		{
			name: "text and image parts",
			content: ContentOrParts{
				Parts: []ContentPart{
					TextContentPart{Text: "what is this?"},
					ImageContentPart{URL: "data:image/png;base64,AAAA", Detail: "low"},
				},
			},
			want: `[{"type":"text","text":"what is this?"},{"type":"image","image_url":"data:image/png;base64,AAAA","detail":"low"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.content)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestContentOrParts_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ContentOrParts
		wantErr bool
	}{
		{name: "invalid json", input: `{invalid json`, wantErr: true},
		{name: "simple string content", input: `"hello world"`, want: ContentOrParts{Content: "hello world"}},
		{
			name:  "image part",
			input: `[{"type":"image","image_url":"http://example.com/image.jpg"}]`,
			want:  ContentOrParts{Parts: []ContentPart{ImageContentPart{URL: "http://example.com/image.jpg"}}},
		},
		{name: "unknown part type", input: `[{"type":"audio","data":"something"}]`, wantErr: true},
		{name: "invalid text part", input: `[{"type":"text"}]`, wantErr: true},
		{name: "invalid image part", input: `[{"type":"image"}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ContentOrParts
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Content, got.Content)
			assert.Equal(t, tt.want.Parts, got.Parts)
		})
	}
}

func TestContentOrParts_TextAndImages(t *testing.T) {
	plain := ContentOrParts{Content: "plain"}
	assert.Equal(t, "plain", plain.Text())
	assert.False(t, plain.HasImages())

	multi := ContentOrParts{Parts: []ContentPart{Text("a"), Image("http://x/y.png"), Text("b")}}
	assert.Equal(t, "ab", multi.Text())
	assert.True(t, multi.HasImages())
}
