package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/weave/pkg/slogx"
	"github.com/casualjim/weave/pkg/uuidx"
	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to topic ids to form NATS subjects.
const SubjectPrefix = "weave.updates."

type natsBroker struct {
	client *nats.Conn
	topics *haxmap.Map[string, *natsTopic]
	logger *slog.Logger
}

// NATS returns a broker that publishes on client.
func NATS(client *nats.Conn) *natsBroker {
	return &natsBroker{
		client: client,
		topics: haxmap.New[string, *natsTopic](),
		logger: slog.Default().With(slogx.LoggerName("broker")),
	}
}

func (b *natsBroker) Topic(ctx context.Context, id string) Topic {
	top, _ := b.topics.GetOrCompute(id, func() *natsTopic {
		return &natsTopic{
			id:      id,
			subject: SubjectPrefix + id,
			client:  b.client,
			logger:  b.logger,
		}
	})
	return top
}

type natsTopic struct {
	id      string
	subject string
	client  *nats.Conn
	logger  *slog.Logger
}

func (t *natsTopic) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg.Topic = t.id
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return t.client.Publish(t.subject, data)
}

func (t *natsTopic) Subscribe(ctx context.Context, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	ch := make(chan *nats.Msg, subscriptionBuffer)
	nsub, err := t.client.ChanSubscribe(t.subject, ch)
	if err != nil {
		return nil, err
	}

	sub := &natsSubscription{id: uuidx.NewString(), sub: nsub, logger: t.logger}
	go func() {
		for {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			case raw := <-ch:
				var msg Message
				if err := json.Unmarshal(raw.Data, &msg); err != nil {
					t.logger.Error("failed to decode message", slogx.Error(err), slog.String("subject", raw.Subject))
					continue
				}
				handler(ctx, msg)
			}
		}
	}()
	return sub, nil
}

type natsSubscription struct {
	id     string
	sub    *nats.Subscription
	logger *slog.Logger
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	if !n.sub.IsValid() {
		return
	}
	if err := n.sub.Unsubscribe(); err != nil {
		n.logger.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", n.id))
	}
}
