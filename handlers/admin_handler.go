package handlers

import (
	"context"
	"net/http"

	"nomadHubAPI/internal/apperr"
	"nomadHubAPI/internal/types/subscriber"

	"go.uber.org/zap"
)

type AdminReader interface {
	ListSubscribers(ctx context.Context) ([]subscriber.ListItem, error)
	GetMetrics(ctx context.Context) (*subscriber.Metrics, error)
}

type AdminHandler struct {
	adminService AdminReader
	log          *zap.Logger
}

func NewAdminHandler(adminService AdminReader, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		log:          log.Named("admin"),
	}
}

// Dashboard serves GET /api/v1/admin?action=subscribers|metrics.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	action := r.URL.Query().Get("action")
	if action == "" {
		action = "subscribers"
	}

	switch action {
	case "subscribers":
		subscribers, err := h.adminService.ListSubscribers(ctx)
		if err != nil {
			h.log.Error("failed to list subscribers", zap.Error(err))
			respondWithAppError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"subscribers": subscribers})

	case "metrics":
		metrics, err := h.adminService.GetMetrics(ctx)
		if err != nil {
			h.log.Error("failed to compute metrics", zap.Error(err))
			respondWithAppError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"metrics": metrics})

	default:
		respondWithAppError(w, apperr.Validation("Unknown action"))
	}
}
