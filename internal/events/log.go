package events

import (
	"context"
	"log/slog"

	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
)

// LogPublisher records events in the service log. It stands in for Kafka in
// local runs.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, evt domain.BookingEvent) error {
	p.logger.InfoContext(ctx, "booking event",
		"type", evt.Type,
		"slot_id", evt.SlotID,
		"session_id", evt.SessionID,
		"mentor_id", evt.MentorID,
		"mentee_id", evt.MenteeID,
		"reason", evt.Reason,
		"occurred_at", evt.OccurredAt,
	)
	return nil
}
