package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"earlyshhAPI/internal/types/campaign"
	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/middleware"
	"earlyshhAPI/services"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	couponService   *services.CouponService
}

func NewCampaignHandler(campaignService *services.CampaignService, couponService *services.CouponService) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		couponService:   couponService,
	}
}

func parseCoordinate(raw string, min, max float64) (*float64, bool) {
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < min || v > max {
		return nil, false
	}
	return &v, true
}

// GET /api/campaigns
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	filter := campaign.ListFilter{Category: q.Get("category")}

	var ok bool
	if filter.Lat, ok = parseCoordinate(q.Get("lat"), -90, 90); !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid latitude")
		return
	}
	if filter.Lng, ok = parseCoordinate(q.Get("lng"), -180, 180); !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid longitude")
		return
	}
	if (filter.Lat == nil) != (filter.Lng == nil) {
		respondWithError(w, http.StatusBadRequest, "lat and lng must be provided together")
		return
	}
	if raw := q.Get("radiusKm"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid radiusKm")
			return
		}
		filter.RadiusKm = radius
	}

	campaigns, err := h.campaignService.ListActiveCampaigns(ctx, filter)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, campaigns)
}

// GET /api/campaigns/{id}
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	campaignID, ok := pathInt(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid campaign ID")
		return
	}

	var viewerID *int
	if userID, ok := middleware.GetUserID(ctx); ok {
		viewerID = &userID
	}

	c, err := h.campaignService.GetCampaign(ctx, campaignID, viewerID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

// POST /api/campaigns/{id}/claim
func (h *CampaignHandler) ClaimCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	campaignID, ok := pathInt(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid campaign ID")
		return
	}

	// The body is optional; when it names a user it must be the caller.
	var req coupon.ClaimRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID != nil && *req.UserID != userID {
		respondWithError(w, http.StatusForbidden, "You can only claim coupons for yourself")
		return
	}

	resp, err := h.couponService.ClaimCouponForCampaign(ctx, campaignID, userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

// PATCH /api/campaigns/{id}/status
func (h *CampaignHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	var req campaign.UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := h.campaignService.UpdateCampaignStatus(ctx, campaignID, req.Status)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}
