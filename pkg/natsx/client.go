package natsx

import (
	"errors"
	"os"

	"github.com/nats-io/nats.go"
)

// ErrNoURL is returned when no server URL is configured.
var ErrNoURL = errors.New("natsx: NATS_URL is not set")

// NewClient connects to the server named by the NATS_URL environment variable.
// Without options the connection is named "weave" and uses compression.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		return nil, ErrNoURL
	}
	if len(opts) == 0 {
		opts = append(opts, nats.Name("weave"), nats.Compression(true))
	}
	return nats.Connect(url, opts...)
}

// JetStream connects like NewClient and returns the JetStream context together
// with the connection so the caller can drain it.
func JetStream(opts ...nats.Option) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := NewClient(opts...)
	if err != nil {
		return nil, nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return nc, js, nil
}
