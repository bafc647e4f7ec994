// Package audit records payment lifecycle events, including write failures
// that the payment endpoints swallow so that the caller still gets an
// acknowledgement.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	PaymentCreated       EventType = "payment.created"
	PaymentPersistFailed EventType = "payment.persist_failed"
	PaymentCompleted     EventType = "payment.completed"
	WebhookPersistFailed EventType = "webhook.persist_failed"
	WebhookDuplicate     EventType = "webhook.duplicate"
	SubscriptionsExpired EventType = "subscriptions.expired"
)

type Event struct {
	Type      EventType `json:"type"`
	PaymentID string    `json:"payment_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Error     string    `json:"error,omitempty"`
	Count     int64     `json:"count,omitempty"`
	At        time.Time `json:"at"`
}

type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// LogRecorder writes events to the structured log. It is used when no
// broker is configured.
type LogRecorder struct {
	log *zap.Logger
}

func NewLogRecorder(log *zap.Logger) *LogRecorder {
	return &LogRecorder{log: log.Named("audit")}
}

func (r *LogRecorder) Record(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("event", string(event.Type)),
		zap.Time("at", event.At),
	}
	if event.PaymentID != "" {
		fields = append(fields, zap.String("payment_id", event.PaymentID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.Count != 0 {
		fields = append(fields, zap.Int64("count", event.Count))
	}
	if event.Error != "" {
		r.log.Error("audit event", append(fields, zap.String("error", event.Error))...)
		return nil
	}
	r.log.Info("audit event", fields...)
	return nil
}
