package handlers

import (
	"context"
	"net/http"
	"time"

	"earlyshhAPI/internal/types/user"
	"earlyshhAPI/services"
)

type UserHandler struct {
	userService         *services.UserService
	gamificationService *services.GamificationService
}

func NewUserHandler(userService *services.UserService, gamificationService *services.GamificationService) *UserHandler {
	return &UserHandler{
		userService:         userService,
		gamificationService: gamificationService,
	}
}

// GET /api/users/{userId}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := ownUser(w, r)
	if !ok {
		return
	}

	u, err := h.userService.GetUser(ctx, userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// GET /api/users/{userId}/dashboard
func (h *UserHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := ownUser(w, r)
	if !ok {
		return
	}

	dashboard, err := h.userService.GetDashboard(ctx, userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, dashboard)
}

// GET /api/users/{userId}/badges
func (h *UserHandler) GetUserBadges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := ownUser(w, r)
	if !ok {
		return
	}

	badges, err := h.gamificationService.GetUserBadges(ctx, userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, badges)
}

// GET /api/users/{userId}/activities?limit=
func (h *UserHandler) GetActivities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := ownUser(w, r)
	if !ok {
		return
	}

	activities, err := h.gamificationService.GetRecentActivity(ctx, userID, queryInt(r, "limit", 20))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, activities)
}

// GET /api/users/{userId}/level
func (h *UserHandler) GetLevelProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := ownUser(w, r)
	if !ok {
		return
	}

	progress, err := h.gamificationService.GetLevelProgress(ctx, userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, progress)
}

// GET /api/leaderboard?limit=
func (h *UserHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := h.userService.GetLeaderboard(ctx, queryInt(r, "limit", 10))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// GET /api/badges
func (h *UserHandler) ListBadges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	badges, err := h.gamificationService.ListBadges(ctx)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, badges)
}

// POST /api/referrals
func (h *UserHandler) CreateReferral(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var req user.ReferralRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	act, err := h.userService.RecordReferral(ctx, userID, req.ReferredInstagramID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, act)
}
