package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"nomadHubAPI/internal/apperr"
	"nomadHubAPI/internal/types/subscriber"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestListSubscribers(t *testing.T) {
	mock := newMockPool(t)
	svc := NewAdminService(mock)

	amount := 990
	next := fixedNow.Add(30 * 24 * time.Hour)
	joined := fixedNow.Add(-time.Hour)

	rows := mock.NewRows([]string{"id", "email", "name", "promo_code", "subscription_status", "amount", "next_billing_date", "created_at"}).
		AddRow(int64(2), "b@example.com", "Boris", "NOMADAAAA1111", "active", &amount, &next, &joined).
		AddRow(int64(1), "a@example.com", "Anna", "NOMADBBBB2222", "inactive", (*int)(nil), (*time.Time)(nil), &joined)
	mock.ExpectQuery("FROM subscribers s\\s+LEFT JOIN payments p").WillReturnRows(rows)

	items, err := svc.ListSubscribers(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, int64(2), items[0].ID)
	assert.Equal(t, subscriber.StatusActive, items[0].Status)
	require.NotNil(t, items[0].Amount)
	assert.Equal(t, 990, *items[0].Amount)
	assert.Equal(t, next, *items[0].NextBillingDate)

	assert.Equal(t, subscriber.StatusInactive, items[1].Status)
	assert.Nil(t, items[1].Amount)
	assert.Nil(t, items[1].NextBillingDate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSubscribers_Empty(t *testing.T) {
	mock := newMockPool(t)
	svc := NewAdminService(mock)

	mock.ExpectQuery("FROM subscribers").WillReturnRows(
		mock.NewRows([]string{"id", "email", "name", "promo_code", "subscription_status", "amount", "next_billing_date", "created_at"}),
	)

	items, err := svc.ListSubscribers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestListSubscribers_DBError(t *testing.T) {
	mock := newMockPool(t)
	svc := NewAdminService(mock)

	mock.ExpectQuery("FROM subscribers").WillReturnError(errors.New("connection refused"))

	_, err := svc.ListSubscribers(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
	assert.Equal(t, http.StatusInternalServerError, apperr.Status(err))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "connection refused", appErr.Message)
}

func TestGetMetrics(t *testing.T) {
	mock := newMockPool(t)
	svc := NewAdminService(mock)
	svc.now = func() time.Time { return fixedNow }

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(fixedNow.AddDate(0, 0, -7)).
		WillReturnRows(mock.NewRows([]string{"active", "new", "completed", "pending"}).AddRow(10, 3, 6, 2))

	day1 := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("DATE_TRUNC\\('day', created_at\\)").
		WithArgs(fixedNow.AddDate(0, 0, -30)).
		WillReturnRows(mock.NewRows([]string{"day", "count"}).AddRow(day1, 2).AddRow(day2, 1))
	mock.ExpectCommit()

	metrics, err := svc.GetMetrics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, metrics.TotalActiveSubscribers)
	assert.Equal(t, 9900, metrics.MRR)
	assert.Equal(t, 3, metrics.NewSubscribersWeek)
	assert.Equal(t, 75.0, metrics.ConversionRate)
	require.Len(t, metrics.ChartData, 2)
	assert.Equal(t, day1, metrics.ChartData[0].Date)
	assert.Equal(t, 2, metrics.ChartData[0].Count)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMetrics_RollsBackOnError(t *testing.T) {
	mock := newMockPool(t)
	svc := NewAdminService(mock)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery("SELECT COUNT").WithArgs(pgxmock.AnyArg()).WillReturnError(errors.New("relation \"payments\" does not exist"))
	mock.ExpectRollback()

	_, err := svc.GetMetrics(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "relation \"payments\" does not exist", appErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionRate(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		pending   int
		want      float64
	}{
		{"no payments", 0, 0, 0},
		{"all completed", 4, 0, 100},
		{"two thirds", 2, 1, 66.67},
		{"one third", 1, 2, 33.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, conversionRate(tt.completed, tt.pending))
		})
	}
}
