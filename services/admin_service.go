package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"nomadHubAPI/internal/apperr"
	"nomadHubAPI/internal/types/payment"
	"nomadHubAPI/internal/types/subscriber"

	"github.com/jackc/pgx/v5"
)

type AdminService struct {
	db  DB
	now func() time.Time
}

func NewAdminService(db DB) *AdminService {
	return &AdminService{db: db, now: time.Now}
}

func (s *AdminService) ListSubscribers(ctx context.Context) ([]subscriber.ListItem, error) {
	query := `
		SELECT s.id, s.email, s.name, s.promo_code, s.subscription_status,
		       p.amount, s.next_billing_date, s.created_at
		FROM subscribers s
		LEFT JOIN payments p ON p.payment_id = s.payment_id
		ORDER BY s.created_at DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer rows.Close()

	items := []subscriber.ListItem{}
	for rows.Next() {
		var item subscriber.ListItem
		var status string
		err := rows.Scan(
			&item.ID,
			&item.Email,
			&item.Name,
			&item.PromoCode,
			&status,
			&item.Amount,
			&item.NextBillingDate,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		item.Status = subscriber.Status(status)
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, apperr.Internal(err)
	}

	return items, nil
}

// GetMetrics computes the dashboard figures inside one read-only
// repeatable-read transaction so that every figure sees the same snapshot.
func (s *AdminService) GetMetrics(ctx context.Context) (*subscriber.Metrics, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	now := s.now()

	countsQuery := `
		SELECT
			(SELECT COUNT(*) FROM subscribers WHERE subscription_status = 'active'),
			(SELECT COUNT(*) FROM subscribers WHERE created_at >= $1),
			(SELECT COUNT(*) FROM payments WHERE status = 'completed'),
			(SELECT COUNT(DISTINCT payment_id) FROM payments WHERE status = 'pending')
	`

	var active, newThisWeek, completed, pending int
	err = tx.QueryRow(ctx, countsQuery, now.AddDate(0, 0, -7)).Scan(&active, &newThisWeek, &completed, &pending)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	chartQuery := `
		SELECT DATE_TRUNC('day', created_at) AS day, COUNT(*) AS count
		FROM subscribers
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day DESC
	`

	rows, err := tx.Query(ctx, chartQuery, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer rows.Close()

	chart := []subscriber.ChartPoint{}
	for rows.Next() {
		var point subscriber.ChartPoint
		if err := rows.Scan(&point.Date, &point.Count); err != nil {
			return nil, apperr.Internal(err)
		}
		chart = append(chart, point)
	}
	if err = rows.Err(); err != nil {
		return nil, apperr.Internal(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Internal(err)
	}

	return &subscriber.Metrics{
		TotalActiveSubscribers: active,
		MRR:                    active * payment.MonthlyPrice,
		NewSubscribersWeek:     newThisWeek,
		ConversionRate:         conversionRate(completed, pending),
		ChartData:              chart,
	}, nil
}

// conversionRate is completed/(completed+pending) as a percentage with two
// decimals, 0 when there are no payments at all.
func conversionRate(completed, pending int) float64 {
	total := completed + pending
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*100*100) / 100
}
