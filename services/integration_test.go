package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"nomadHubAPI/internal/testdb"
	"nomadHubAPI/internal/types/payment"
	"nomadHubAPI/internal/yookassa"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPaymentLifecycle_Postgres(t *testing.T) {
	pool := testdb.SetupTestDB(t)
	ctx := context.Background()

	suffix := time.Now().Format("20060102150405.000000")
	email := "lifecycle-" + suffix + testdb.TestEmailDomain
	paymentID := "pay_it_" + suffix

	gateway := &fakeGateway{payment: &yookassa.Payment{
		ID:           paymentID,
		Confirmation: &yookassa.Confirmation{ConfirmationURL: "https://pay.test/" + paymentID},
	}}
	mailer := &fakeMailer{}
	svc := NewPaymentService(pool, gateway, mailer, &fakeRecorder{}, PaymentServiceConfig{
		TelegramChatLink: testChatLink,
		SuccessURL:       "https://example.com/success",
	}, zap.NewNop())

	_, err := svc.CreatePayment(ctx, &payment.CreatePaymentRequest{Email: email, Name: "Integration"})
	require.NoError(t, err)

	notification := &yookassa.Notification{Object: yookassa.Payment{
		ID:       paymentID,
		Status:   yookassa.StatusSucceeded,
		Metadata: map[string]string{"email": email, "name": "Integration"},
	}}

	outcome, err := svc.HandleWebhook(ctx, notification)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeCompleted, outcome)

	outcome, err = svc.HandleWebhook(ctx, notification)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeDuplicate, outcome)

	svc.Wait()
	require.Len(t, mailer.sent, 1)
	assert.Regexp(t, `^NOMAD[0-9A-F]{8}$`, mailer.sent[0].PromoCode)

	authorized, err := NewSubscriberService(pool).CheckAccess(ctx, email)
	require.NoError(t, err)
	assert.True(t, authorized)

	var status string
	var subscriberID *int64
	err = pool.QueryRow(ctx, `SELECT status, subscriber_id FROM payments WHERE payment_id = $1`, paymentID).Scan(&status, &subscriberID)
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
	assert.NotNil(t, subscriberID)

	items, err := NewAdminService(pool).ListSubscribers(ctx)
	require.NoError(t, err)
	found := false
	for _, item := range items {
		if item.Email == email {
			found = true
			require.NotNil(t, item.Amount)
			assert.Equal(t, payment.MonthlyPrice, *item.Amount)
		}
	}
	assert.True(t, found, fmt.Sprintf("subscriber %s not listed", email))
}
