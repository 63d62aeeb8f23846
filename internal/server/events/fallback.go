package events

import (
	"context"

	"github.com/dmitrijs2005/gophjournal/internal/logging"
)

// LogPublisher writes events to the log instead of a broker. It is used when
// no broker is configured or the broker is unreachable at startup.
type LogPublisher struct {
	logger logging.Logger
}

func NewLogPublisher(logger logging.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	args := []any{"event", ev.Type, "user_id", ev.UserID, "occurred_at", ev.OccurredAt}
	for k, v := range ev.Attributes {
		args = append(args, k, v)
	}
	p.logger.Warn(ctx, "security event", args...)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
