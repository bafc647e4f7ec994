package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"nomadHubAPI/internal/types/partner"
	"nomadHubAPI/internal/types/subscriber"

	"go.uber.org/zap"
)

type PartnerDirectory interface {
	ListPartners(ctx context.Context) ([]partner.Partner, error)
	CreatePartner(ctx context.Context, req *partner.CreatePartnerRequest) (*partner.Record, error)
}

type AccessChecker interface {
	CheckAccess(ctx context.Context, email string) (bool, error)
}

type PartnerHandler struct {
	partnerService    PartnerDirectory
	subscriberService AccessChecker
	log               *zap.Logger
}

func NewPartnerHandler(partnerService PartnerDirectory, subscriberService AccessChecker, log *zap.Logger) *PartnerHandler {
	return &PartnerHandler{
		partnerService:    partnerService,
		subscriberService: subscriberService,
		log:               log.Named("partners"),
	}
}

// Partners serves /api/v1/partners: GET lists the directory, POST checks
// whether an email belongs to an active subscriber.
func (h *PartnerHandler) Partners(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listPartners(w, r)
	case http.MethodPost:
		h.checkAccess(w, r)
	default:
		MethodNotAllowed(w, r)
	}
}

func (h *PartnerHandler) listPartners(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	partners, err := h.partnerService.ListPartners(ctx)
	if err != nil {
		// the public page renders an empty directory instead of an error
		h.log.Warn("partner directory unavailable", zap.Error(err))
		partners = []partner.Partner{}
	}

	respondWithJSON(w, http.StatusOK, partner.ListResponse{Partners: partners})
}

func (h *PartnerHandler) checkAccess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req subscriber.AccessCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	authorized, err := h.subscriberService.CheckAccess(ctx, req.Email)
	if err != nil {
		h.log.Error("access check failed", zap.Error(err))
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, subscriber.AccessCheckResponse{Authorized: authorized})
}

// AddPartner serves POST /api/v1/add-partner. Credentials are checked by middleware.
func (h *PartnerHandler) AddPartner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req partner.CreatePartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.partnerService.CreatePartner(ctx, &req)
	if err != nil {
		h.log.Error("failed to add partner", zap.Error(err))
		respondWithAppError(w, err)
		return
	}

	h.log.Info("partner added", zap.String("record_id", record.ID), zap.String("name", req.Name))
	respondWithJSON(w, http.StatusOK, partner.CreateResponse{Success: true, Data: *record})
}
