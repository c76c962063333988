package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/worldview-app/apiserver/types"
)

const (
	attrEventType   = "event_type"
	attrContentType = "content_type"
	attrOrderingKey = "ordering_key"
	contentTypeJSON = "application/json"
)

// EventHandler receives decoded account events.
type EventHandler func(ctx context.Context, event types.Event) error

// EventBus publishes and consumes account events on a single channel.
type EventBus struct {
	mq      *MQ
	channel string
	logger  *slog.Logger
}

func NewEventBus(m *MQ, channel string, logger *slog.Logger) (*EventBus, error) {
	if m == nil {
		return nil, errors.New("mq is required")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("events channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{mq: m, channel: channel, logger: logger}, nil
}

// Channel returns the channel events are published on.
func (b *EventBus) Channel() string {
	return b.channel
}

// PublishEvent encodes event as JSON and publishes it.
func (b *EventBus) PublishEvent(ctx context.Context, event types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	id, err := b.mq.Publish(ctx, b.channel, data, map[string]string{
		attrEventType:   string(event.Type),
		attrContentType: contentTypeJSON,
		attrOrderingKey: orderingKey(event),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	b.logger.DebugContext(ctx, "event published",
		slog.String("type", string(event.Type)),
		slog.String("message_id", id),
	)
	return nil
}

// orderingKey groups an account's events so brokers that support ordering
// deliver them in the order they happened.
func orderingKey(event types.Event) string {
	return "account-" + strconv.Itoa(event.AccountID)
}

// Tail consumes events until ctx is done. Messages that cannot be decoded
// are logged and acknowledged so they are not redelivered forever.
func (b *EventBus) Tail(ctx context.Context, handler EventHandler) error {
	return b.mq.Subscribe(ctx, b.channel, func(ctx context.Context, msg Message) error {
		var event types.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.WarnContext(ctx, "dropping undecodable event",
				slog.String("message_id", msg.ID),
				slog.Any("error", err),
			)
			return nil
		}
		return handler(ctx, event)
	})
}

// Close closes the underlying broker connection.
func (b *EventBus) Close() error {
	return b.mq.Close()
}
