package subscriber

import (
	"time"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ListItem is a row of the admin subscriber table. Amount comes from the
// subscriber's latest payment and is nil when there is none.
type ListItem struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	PromoCode       string     `json:"promo_code"`
	Status          Status     `json:"status"`
	Amount          *int       `json:"amount"`
	NextBillingDate *time.Time `json:"next_billing"`
	CreatedAt       *time.Time `json:"joined"`
}

type ChartPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

type Metrics struct {
	TotalActiveSubscribers int          `json:"total_active_subscribers"`
	MRR                    int          `json:"mrr"`
	NewSubscribersWeek     int          `json:"new_subscribers_week"`
	ConversionRate         float64      `json:"conversion_rate"`
	ChartData              []ChartPoint `json:"chart_data"`
}

type AccessCheckRequest struct {
	Email string `json:"email"`
}

type AccessCheckResponse struct {
	Authorized bool `json:"authorized"`
}
