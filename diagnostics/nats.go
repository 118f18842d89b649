package diagnostics

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
)

// DefaultSubject is the subject reports are published on.
const DefaultSubject = "weave.diagnostics"

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes reports as JSON messages.
type NATSSink struct {
	Conn    Publisher
	Subject string
}

func (s NATSSink) Report(_ context.Context, r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	subject := s.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	if err := s.Conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	return nil
}
