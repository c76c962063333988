package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/worldview-app/apiserver/types"
)

// EventPublisher delivers account activity to interested consumers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event types.Event) error
}

type nopPublisher struct{}

func (nopPublisher) PublishEvent(context.Context, types.Event) error { return nil }

// emitter publishes events on a best-effort basis. A failed publish is
// logged and never surfaces to the caller.
type emitter struct {
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func newEmitter(publisher EventPublisher, logger *slog.Logger) emitter {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return emitter{publisher: publisher, logger: logger, now: time.Now}
}

func (e emitter) emit(ctx context.Context, event types.Event) {
	event.OccurredAt = e.now().UTC()
	if err := e.publisher.PublishEvent(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", string(event.Type)),
			slog.Int("account_id", event.AccountID),
			slog.Any("error", err),
		)
	}
}
