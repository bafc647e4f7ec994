package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nomadHubAPI/internal/apperr"
	"nomadHubAPI/internal/types/payment"
	"nomadHubAPI/internal/yookassa"

	"go.uber.org/zap"
)

const (
	actionCreatePayment = "create_payment"
	actionWebhook       = "webhook"

	paymentTimeout = 15 * time.Second
)

type PaymentProcessor interface {
	CreatePayment(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.CreatePaymentResponse, error)
	HandleWebhook(ctx context.Context, n *yookassa.Notification) (payment.WebhookOutcome, error)
}

type PaymentHandler struct {
	paymentService PaymentProcessor
	log            *zap.Logger
}

func NewPaymentHandler(paymentService PaymentProcessor, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		log:            log.Named("payment"),
	}
}

// paymentRequest carries both actions: the landing page posts create_payment
// fields, the gateway posts a notification with object.
type paymentRequest struct {
	Action string `json:"action"`
	payment.CreatePaymentRequest
	yookassa.Notification
}

// Payment serves POST /api/v1/payment. The action comes from the body, or from
// the query string for gateway notifications that cannot carry it.
func (h *PaymentHandler) Payment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, r)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Action == "" {
		req.Action = r.URL.Query().Get("action")
	}

	switch req.Action {
	case actionCreatePayment:
		h.createPayment(w, r, &req.CreatePaymentRequest)
	case actionWebhook:
		h.webhook(w, r, &req.Notification)
	default:
		respondWithAppError(w, apperr.Validation("Unknown action"))
	}
}

func (h *PaymentHandler) createPayment(w http.ResponseWriter, r *http.Request, req *payment.CreatePaymentRequest) {
	ctx, cancel := context.WithTimeout(r.Context(), paymentTimeout)
	defer cancel()

	resp, err := h.paymentService.CreatePayment(ctx, req)
	if err != nil {
		h.log.Error("payment creation failed", zap.Error(err))
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// webhook always acknowledges so the gateway does not redeliver; failures are
// audited by the service.
func (h *PaymentHandler) webhook(w http.ResponseWriter, r *http.Request, n *yookassa.Notification) {
	ctx, cancel := context.WithTimeout(r.Context(), paymentTimeout)
	defer cancel()

	outcome, err := h.paymentService.HandleWebhook(ctx, n)
	if err != nil {
		h.log.Error("webhook not applied", zap.String("payment_id", n.Object.ID), zap.Error(err))
	} else {
		h.log.Info("webhook handled", zap.String("payment_id", n.Object.ID), zap.String("outcome", string(outcome)))
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
