// Package diagnostics reports unexpected failures to an out-of-band sink.
// Reporting is best-effort: sinks must not block the request path and their
// failures are only logged.
package diagnostics

import (
	"context"
	"log/slog"

	"github.com/casualjim/weave/pkg/slogx"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Report describes one failed request.
type Report struct {
	RunID     uuid.UUID       `json:"run_id"`
	Provider  string          `json:"provider"`
	Error     string          `json:"error"`
	Request   json.RawMessage `json:"request,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// Sink receives reports.
type Sink interface {
	Report(ctx context.Context, r Report) error
}

// Discard drops every report.
type Discard struct{}

func (Discard) Report(context.Context, Report) error { return nil }

// LogSink writes reports to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Report(ctx context.Context, r Report) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, "completion failed",
		slogx.LoggerName("diagnostics"),
		slogx.RunID(r.RunID),
		slogx.Provider(r.Provider),
		slog.String("error", r.Error),
		slogx.ByteString("request", r.Request),
	)
	return nil
}
