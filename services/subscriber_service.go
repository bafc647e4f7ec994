package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nomadHubAPI/internal/apperr"
	"nomadHubAPI/internal/types/subscriber"

	"github.com/jackc/pgx/v5"
)

type SubscriberService struct {
	db  DB
	now func() time.Time
}

func NewSubscriberService(db DB) *SubscriberService {
	return &SubscriberService{db: db, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckAccess reports whether email belongs to an active subscriber. An
// unknown email is a negative answer, not an error.
func (s *SubscriberService) CheckAccess(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, apperr.Validation("Email обязателен")
	}

	var status string
	err := s.db.QueryRow(ctx, `SELECT subscription_status FROM subscribers WHERE email = $1`, email).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, apperr.Internal(err)
	}

	return subscriber.Status(status) == subscriber.StatusActive, nil
}

// ExpireLapsed deactivates active subscribers whose billing date passed more
// than grace ago.
func (s *SubscriberService) ExpireLapsed(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := s.now().Add(-grace)

	tag, err := s.db.Exec(ctx, `
		UPDATE subscribers
		SET subscription_status = $1
		WHERE subscription_status = $2 AND next_billing_date < $3
	`, string(subscriber.StatusInactive), string(subscriber.StatusActive), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire subscribers: %w", err)
	}

	expired := tag.RowsAffected()
	subscriptionsExpired.Add(float64(expired))
	return expired, nil
}
