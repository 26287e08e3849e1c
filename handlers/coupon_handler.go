package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/middleware"
	"earlyshhAPI/services"
)

type CouponHandler struct {
	couponService *services.CouponService
}

func NewCouponHandler(couponService *services.CouponService) *CouponHandler {
	return &CouponHandler{
		couponService: couponService,
	}
}

// GET /api/users/{userId}/coupons
func (h *CouponHandler) ListUserCoupons(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := ownUser(w, r)
	if !ok {
		return
	}

	coupons, err := h.couponService.ListUserCoupons(ctx, userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, coupons)
}

// PATCH /api/coupons/{id}/redeem
func (h *CouponHandler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	couponID, ok := pathInt(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	cp, err := h.couponService.RedeemCoupon(ctx, couponID, userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, cp)
}

// POST /api/coupons/redeem-by-code
func (h *CouponHandler) RedeemByCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var req coupon.RedeemByCodeRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.FetchCode) == "" {
		respondWithError(w, http.StatusBadRequest, "fetchCode is required")
		return
	}

	cp, err := h.couponService.RedeemByFetchCode(ctx, req.FetchCode, userID, middleware.IsAdmin(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, cp)
}

// GET /api/coupons/{id}/qr
func (h *CouponHandler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	couponID, ok := pathInt(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	qr, err := h.couponService.GetCouponQRCode(ctx, couponID, userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, qr)
}

// GET /api/coupons/code/{code}
func (h *CouponHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	code := strings.TrimSpace(mux.Vars(r)["code"])
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "Coupon code is required")
		return
	}

	cp, err := h.couponService.GetCouponByCode(ctx, code)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, cp)
}
