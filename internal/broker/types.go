package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/casualjim/weave/content"
	"github.com/casualjim/weave/internal/assembler"
	"github.com/casualjim/weave/pkg/slogx"
	"github.com/casualjim/weave/provider"
	"github.com/go-openapi/strfmt"
)

// Message is one published snapshot. Usage is only set on the final message of
// a completed run.
type Message struct {
	Topic     string          `json:"topic"`
	Entries   content.List    `json:"entries"`
	Usage     *provider.Usage `json:"usage,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// Final reports whether the message closes the run.
func (m Message) Final() bool {
	return m.Usage != nil
}

// Update converts the message back to the content change it was published
// from.
func (m Message) Update() assembler.Update {
	return assembler.Update{Entries: m.Entries, Usage: m.Usage}
}

// Handler receives the messages of a subscription, one at a time.
type Handler func(context.Context, Message)

type Broker interface {
	Topic(context.Context, string) Topic
}

type Topic interface {
	Publish(context.Context, Message) error
	Subscribe(context.Context, Handler) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// Publisher adapts a topic to a content change callback. Publish failures are
// logged, they never fail the run.
func Publisher(ctx context.Context, topic Topic, logger *slog.Logger) func(assembler.Update) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(u assembler.Update) {
		msg := Message{
			Entries:   u.Entries,
			Usage:     u.Usage,
			Timestamp: strfmt.DateTime(time.Now()),
		}
		if err := topic.Publish(ctx, msg); err != nil {
			logger.WarnContext(ctx, "failed to publish update", slogx.LoggerName("broker"), slogx.Error(err))
		}
	}
}
