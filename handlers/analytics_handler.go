package handlers

import (
	"context"
	"net/http"
	"time"

	"earlyshhAPI/services"
)

type AnalyticsHandler struct {
	analyticsService *services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
	}
}

// GET /api/campaigns/{id}/analytics
func (h *AnalyticsHandler) GetCampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := sessionUser(w, r); !ok {
		return
	}

	campaignID, ok := pathInt(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid campaign ID")
		return
	}

	stats, err := h.analyticsService.GetCampaignAnalytics(ctx, campaignID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}
