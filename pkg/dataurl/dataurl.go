// Package dataurl builds and parses base64 data URLs
// (data:<media type>;base64,<payload>).
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned for strings that are not base64 data URLs.
var ErrInvalid = errors.New("invalid data url")

// Format builds a data URL from a media type and a base64 payload.
func Format(mediaType, payload string) string {
	return "data:" + mediaType + ";base64," + payload
}

// Encode builds a data URL from raw bytes.
func Encode(mediaType string, data []byte) string {
	return Format(mediaType, base64.StdEncoding.EncodeToString(data))
}

// Parse splits a base64 data URL into its media type and decoded bytes.
func Parse(u string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: scheme", ErrInvalid)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrInvalid)
	}
	mediaType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalid)
	}
	data, err = Decode(payload)
	if err != nil {
		return "", nil, err
	}
	return mediaType, data, nil
}

// Decode decodes a base64 payload, accepting padded and unpadded input.
func Decode(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return data, nil
}
