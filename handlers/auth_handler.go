package handlers

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/types/user"
	"earlyshhAPI/services"
)

type AuthHandler struct {
	userService *services.UserService
}

func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
	}
}

// POST /api/auth/instagram
func (h *AuthHandler) InstagramLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req user.InstagramAuthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.userService.AuthenticateInstagram(ctx, &req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	if resp.IsNew {
		log.Printf("New user %d signed up as @%s", resp.User.ID, resp.User.Username)
		respondWithJSON(w, http.StatusCreated, resp)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}
