package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"nomadHubAPI/internal/apperr"
	"nomadHubAPI/internal/audit"
	"nomadHubAPI/internal/types/payment"
	"nomadHubAPI/internal/yookassa"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	uniqueViolation       = "23505"
	maxPromoCodeAttempts  = 5
	welcomeEmailTimeout   = 30 * time.Second
	upsertSubscriberQuery = `
		INSERT INTO subscribers (email, name, promo_code, payment_id, next_billing_date, telegram_chat_link)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET
			payment_id = EXCLUDED.payment_id,
			next_billing_date = EXCLUDED.next_billing_date,
			subscription_status = 'active'
		RETURNING id, promo_code
	`
	completePaymentQuery = `
		INSERT INTO payments (payment_id, amount, status, metadata, subscriber_id, completed_at)
		VALUES ($1, $2, 'completed', $3, $4, $5)
		ON CONFLICT (payment_id) DO UPDATE SET
			status = 'completed',
			subscriber_id = EXCLUDED.subscriber_id,
			completed_at = EXCLUDED.completed_at
	`
)

type PaymentGateway interface {
	CreatePayment(ctx context.Context, req *yookassa.CreatePaymentRequest, idempotenceKey string) (*yookassa.Payment, error)
}

type WelcomeMailer interface {
	SendWelcome(ctx context.Context, email WelcomeEmail) error
}

type PaymentServiceConfig struct {
	TelegramChatLink string
	SuccessURL       string
}

type PaymentService struct {
	db       DB
	gateway  PaymentGateway
	mailer   WelcomeMailer
	audit    audit.Recorder
	cfg      PaymentServiceConfig
	log      *zap.Logger
	now      func() time.Time
	newPromo func() string
	emails   sync.WaitGroup
}

// NewPaymentService wires the payment flow. gateway is nil when the shop
// credentials are not configured.
func NewPaymentService(db DB, gateway PaymentGateway, mailer WelcomeMailer, recorder audit.Recorder, cfg PaymentServiceConfig, log *zap.Logger) *PaymentService {
	return &PaymentService{
		db:       db,
		gateway:  gateway,
		mailer:   mailer,
		audit:    recorder,
		cfg:      cfg,
		log:      log.Named("payments"),
		now:      time.Now,
		newPromo: generatePromoCode,
	}
}

func generatePromoCode() string {
	return payment.PromoCodePrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreatePayment registers a payment with the gateway and stores it as pending.
// A failed insert is audited but does not fail the call: the user can still pay
// and the webhook recreates the row.
func (s *PaymentService) CreatePayment(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.CreatePaymentResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, apperr.Validation("Email is required")
	}
	if s.gateway == nil {
		return nil, apperr.Config("Payment configuration missing")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = payment.DefaultName
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.cfg.SuccessURL
	}
	metadata := map[string]string{"email": email, "name": name}

	created, err := s.gateway.CreatePayment(ctx, &yookassa.CreatePaymentRequest{
		Amount:  yookassa.Amount{Value: payment.PriceValue, Currency: payment.Currency},
		Capture: true,
		Confirmation: yookassa.Confirmation{
			Type:      yookassa.ConfirmationRedirect,
			ReturnURL: returnURL,
		},
		Description: payment.Description,
		Metadata:    metadata,
	}, uuid.NewString())
	if err != nil {
		var apiErr *yookassa.APIError
		if errors.As(err, &apiErr) {
			s.log.Warn("gateway rejected payment", zap.Int("status", apiErr.StatusCode), zap.String("body", apiErr.Body))
			return nil, apperr.Upstream(apiErr.StatusCode, "Payment creation failed", err).WithDetails(apiErr.Body)
		}
		s.log.Error("gateway call failed", zap.Error(err))
		return nil, apperr.Upstream(http.StatusBadGateway, "Payment creation failed", err).WithDetails(err.Error())
	}
	if created.Confirmation == nil || created.Confirmation.ConfirmationURL == "" {
		return nil, apperr.Upstream(http.StatusBadGateway, "Payment creation failed", errors.New("missing confirmation_url")).
			WithDetails("gateway response has no confirmation_url")
	}

	paymentsCreated.Inc()
	s.persistPending(ctx, created.ID, email, metadata)

	return &payment.CreatePaymentResponse{
		PaymentID:       created.ID,
		ConfirmationURL: created.Confirmation.ConfirmationURL,
	}, nil
}

func (s *PaymentService) persistPending(ctx context.Context, paymentID, email string, metadata map[string]string) {
	metadataJSON, err := json.Marshal(metadata)
	if err == nil {
		_, err = s.db.Exec(ctx,
			`INSERT INTO payments (payment_id, amount, status, metadata) VALUES ($1, $2, $3, $4)`,
			paymentID, payment.MonthlyPrice, string(payment.StatusPending), metadataJSON,
		)
	}
	if err != nil {
		s.log.Error("failed to store pending payment", zap.String("payment_id", paymentID), zap.Error(err))
		s.record(ctx, audit.Event{Type: audit.PaymentPersistFailed, PaymentID: paymentID, Email: email, Error: err.Error()})
		return
	}
	s.record(ctx, audit.Event{Type: audit.PaymentCreated, PaymentID: paymentID, Email: email})
}

// HandleWebhook applies a gateway notification. Only succeeded payments change
// state; a payment already completed is left alone so a redelivered webhook
// does not send a second welcome email.
func (s *PaymentService) HandleWebhook(ctx context.Context, n *yookassa.Notification) (payment.WebhookOutcome, error) {
	obj := n.Object
	if obj.Status != yookassa.StatusSucceeded {
		s.log.Info("webhook ignored", zap.String("payment_id", obj.ID), zap.String("status", obj.Status))
		paymentWebhooks.WithLabelValues(string(payment.OutcomeIgnored)).Inc()
		return payment.OutcomeIgnored, nil
	}

	email := normalizeEmail(obj.Metadata["email"])
	if obj.ID == "" || email == "" {
		err := apperr.Validation("webhook payload is missing payment id or email")
		s.fail(ctx, obj.ID, email, err)
		return payment.OutcomeFailed, err
	}
	name := strings.TrimSpace(obj.Metadata["name"])
	if name == "" {
		name = payment.DefaultName
	}

	activation, duplicate, err := s.completePayment(ctx, obj.ID, email, name, amountRubles(obj.Amount))
	if err != nil {
		s.fail(ctx, obj.ID, email, err)
		return payment.OutcomeFailed, err
	}
	if duplicate {
		s.log.Info("payment already completed", zap.String("payment_id", obj.ID))
		s.record(ctx, audit.Event{Type: audit.WebhookDuplicate, PaymentID: obj.ID, Email: email})
		paymentWebhooks.WithLabelValues(string(payment.OutcomeDuplicate)).Inc()
		return payment.OutcomeDuplicate, nil
	}

	s.log.Info("subscriber activated",
		zap.String("payment_id", obj.ID),
		zap.Int64("subscriber_id", activation.SubscriberID),
		zap.Time("next_billing_date", activation.NextBillingDate),
	)
	s.record(ctx, audit.Event{Type: audit.PaymentCompleted, PaymentID: obj.ID, Email: email})
	paymentWebhooks.WithLabelValues(string(payment.OutcomeCompleted)).Inc()

	s.sendWelcome(activation)

	return payment.OutcomeCompleted, nil
}

func (s *PaymentService) fail(ctx context.Context, paymentID, email string, err error) {
	s.log.Error("webhook processing failed", zap.String("payment_id", paymentID), zap.Error(err))
	s.record(ctx, audit.Event{Type: audit.WebhookPersistFailed, PaymentID: paymentID, Email: email, Error: err.Error()})
	paymentWebhooks.WithLabelValues(string(payment.OutcomeFailed)).Inc()
}

// completePayment retries with a fresh promo code when the generated one
// collides with an existing subscriber's.
func (s *PaymentService) completePayment(ctx context.Context, paymentID, email, name string, amount int) (*payment.Activation, bool, error) {
	for attempt := 1; ; attempt++ {
		activation, duplicate, err := s.completeOnce(ctx, paymentID, email, name, amount, s.newPromo())
		if err != nil && isPromoCodeCollision(err) && attempt < maxPromoCodeAttempts {
			s.log.Warn("promo code collision, retrying", zap.String("payment_id", paymentID), zap.Int("attempt", attempt))
			continue
		}
		return activation, duplicate, err
	}
}

func (s *PaymentService) completeOnce(ctx context.Context, paymentID, email, name string, amount int, promoCode string) (*payment.Activation, bool, error) {
	now := s.now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM payments WHERE payment_id = $1 FOR UPDATE`, paymentID).Scan(&status)
	switch {
	case err == nil && payment.Status(status) == payment.StatusCompleted:
		return nil, true, nil
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return nil, false, fmt.Errorf("failed to lock payment: %w", err)
	}

	activation := &payment.Activation{
		Email:           email,
		Name:            name,
		NextBillingDate: now.Add(payment.BillingPeriod),
	}

	err = tx.QueryRow(ctx, upsertSubscriberQuery,
		email, name, promoCode, paymentID, activation.NextBillingDate, s.cfg.TelegramChatLink,
	).Scan(&activation.SubscriberID, &activation.PromoCode)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert subscriber: %w", err)
	}

	metadataJSON, err := json.Marshal(map[string]string{"email": email, "name": name})
	if err != nil {
		return nil, false, err
	}
	if _, err := tx.Exec(ctx, completePaymentQuery, paymentID, amount, metadataJSON, activation.SubscriberID, now); err != nil {
		return nil, false, fmt.Errorf("failed to complete payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit webhook: %w", err)
	}

	return activation, false, nil
}

func isPromoCodeCollision(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, "promo_code")
}

func amountRubles(amount *yookassa.Amount) int {
	if amount == nil {
		return payment.MonthlyPrice
	}
	value, err := strconv.ParseFloat(amount.Value, 64)
	if err != nil {
		return payment.MonthlyPrice
	}
	return int(math.Round(value))
}

// sendWelcome mails the subscriber in the background. Failures are logged only.
func (s *PaymentService) sendWelcome(activation *payment.Activation) {
	if s.mailer == nil {
		return
	}

	s.emails.Add(1)
	go func() {
		defer s.emails.Done()

		ctx, cancel := context.WithTimeout(context.Background(), welcomeEmailTimeout)
		defer cancel()

		err := s.mailer.SendWelcome(ctx, WelcomeEmail{
			Email:     activation.Email,
			Name:      activation.Name,
			PromoCode: activation.PromoCode,
			ChatLink:  s.cfg.TelegramChatLink,
		})
		if err != nil {
			s.log.Warn("welcome email not sent", zap.String("email", activation.Email), zap.Error(err))
			welcomeEmails.WithLabelValues("failed").Inc()
			return
		}
		s.log.Info("welcome email sent", zap.String("email", activation.Email))
		welcomeEmails.WithLabelValues("sent").Inc()
	}()
}

// Wait blocks until in-flight welcome emails finish.
func (s *PaymentService) Wait() {
	s.emails.Wait()
}

func (s *PaymentService) record(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.At = s.now()
	if err := s.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		s.log.Error("failed to record audit event", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
