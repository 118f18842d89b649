package dataurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParse(t *testing.T) {
	u := Encode("image/png", []byte("png bytes"))
	assert.Equal(t, "data:image/png;base64,cG5nIGJ5dGVz", u)

	mt, data, err := Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)
	assert.Equal(t, []byte("png bytes"), data)
}

func TestParse_Unpadded(t *testing.T) {
	_, data, err := Parse(Format("text/plain", "aGk"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "no scheme", in: "https://example.com/a.png"},
		{name: "no payload", in: "data:image/png;base64"},
		{name: "not base64", in: "data:text/plain,hello"},
		{name: "bad payload", in: "data:image/png;base64,***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.in)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
