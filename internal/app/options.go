package app

import (
	"context"
	"log/slog"

	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
)

// EventPublisher delivers booking events to out-of-process listeners
// (chat gateway, email queue). Implementations must not block on delivery.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.BookingEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.BookingEvent) error { return nil }

type options struct {
	events EventPublisher
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		events: nopPublisher{},
		logger: slog.Default(),
	}
}

// Option configures the services in this package.
type Option func(*options)

// WithEvents sets where committed transitions are announced.
func WithEvents(p EventPublisher) Option {
	return func(o *options) {
		if p != nil {
			o.events = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// emit runs after commit; a failed delivery is logged and never undoes the transition.
func (o options) emit(ctx context.Context, evt domain.BookingEvent) {
	if err := o.events.Publish(context.WithoutCancel(ctx), evt); err != nil {
		o.logger.WarnContext(ctx, "publish booking event failed",
			"type", evt.Type,
			"slot_id", evt.SlotID,
			"session_id", evt.SessionID,
			"error", err,
		)
	}
}
