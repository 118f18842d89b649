package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type recordingSink struct {
	mu      sync.Mutex
	reports []Report
	err     error
	block   chan struct{}
}

func (s *recordingSink) Report(_ context.Context, r Report) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

type publisherFunc func(string, []byte) error

func (f publisherFunc) Publish(subject string, data []byte) error { return f(subject, data) }

func sampleReport() Report {
	return Report{
		RunID:     uuid.MustParse("0191b5b4-6c1e-7e4f-9a0a-000000000001"),
		Provider:  "openai",
		Error:     "Error from openai: socket hang up",
		Request:   json.RawMessage(`{"messages":[{"role":"user","content":"hi"}]}`),
		Timestamp: strfmt.DateTime(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)),
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	require.NoError(t, sink.Report(context.Background(), sampleReport()))

	line := buf.Bytes()
	assert.Equal(t, "ERROR", gjson.GetBytes(line, "level").String())
	assert.Equal(t, "openai", gjson.GetBytes(line, "provider").String())
	assert.Contains(t, gjson.GetBytes(line, "request").String(), `"content":"hi"`)
}

func TestNATSSink(t *testing.T) {
	var subject string
	var payload []byte
	sink := NATSSink{Conn: publisherFunc(func(s string, d []byte) error {
		subject, payload = s, d
		return nil
	})}
	require.NoError(t, sink.Report(context.Background(), sampleReport()))

	assert.Equal(t, DefaultSubject, subject)
	assert.Equal(t, "openai", gjson.GetBytes(payload, "provider").String())
	assert.Equal(t, "hi", gjson.GetBytes(payload, "request.messages.0.content").String())
	assert.Equal(t, "2025-01-02T03:04:05.000Z", gjson.GetBytes(payload, "timestamp").String())

	failing := NATSSink{Subject: "x", Conn: publisherFunc(func(string, []byte) error { return errors.New("no responders") })}
	assert.ErrorContains(t, failing.Report(context.Background(), sampleReport()), "no responders")
}

func TestAsync_DeliversAndFlushes(t *testing.T) {
	next := &recordingSink{err: errors.New("ignored")}
	a := NewAsync(next, 4, nil)
	for range 3 {
		require.NoError(t, a.Report(context.Background(), sampleReport()))
	}
	a.Close()
	assert.Equal(t, 3, next.len())

	// reports after close are dropped quietly
	require.NoError(t, a.Report(context.Background(), sampleReport()))
	a.Close()
}

func TestAsync_NeverBlocks(t *testing.T) {
	next := &recordingSink{block: make(chan struct{})}
	a := NewAsync(next, 1, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 10 {
			_ = a.Report(context.Background(), sampleReport())
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report blocked")
	}
	close(next.block)
	a.Close()
	assert.LessOrEqual(t, next.len(), 2)
	assert.GreaterOrEqual(t, next.len(), 1)
}
