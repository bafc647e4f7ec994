package payment

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Membership pricing. The price is charged in whole rubles.
const (
	MonthlyPrice    = 990
	PriceValue      = "990.00"
	Currency        = "RUB"
	Description     = "Подписка НОМАД ХАБ Core Member"
	DefaultName     = "Участник"
	BillingPeriod   = 30 * 24 * time.Hour
	PromoCodePrefix = "NOMAD"
)

type CreatePaymentRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	ReturnURL string `json:"return_url"`
}

type CreatePaymentResponse struct {
	PaymentID       string `json:"payment_id"`
	ConfirmationURL string `json:"confirmation_url"`
}

type WebhookOutcome string

const (
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeCompleted WebhookOutcome = "completed"
	OutcomeFailed    WebhookOutcome = "failed"
)

// Activation is what a completed webhook produced for the subscriber.
type Activation struct {
	SubscriberID    int64
	Email           string
	Name            string
	PromoCode       string
	NextBillingDate time.Time
}
