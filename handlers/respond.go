package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"earlyshhAPI/middleware"
	"earlyshhAPI/services"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message": "Internal server error", "error": "Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{
		"message": message,
		"error":   http.StatusText(code),
	})
}

// statusFor maps a service error onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrCampaignNotFound),
		errors.Is(err, services.ErrCouponNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrStoryNotFound),
		errors.Is(err, services.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyClaimed),
		errors.Is(err, services.ErrAlreadyRedeemed),
		errors.Is(err, services.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrCapacityExceeded),
		errors.Is(err, services.ErrCampaignInactive),
		errors.Is(err, services.ErrCouponExpired):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// respondWithServiceError hides internal failures behind a generic message.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"request_id": middleware.GetRequestID(r.Context()),
			"path":       r.URL.Path,
		}).Errorf("request failed: %v", err)
		respondWithError(w, code, "Internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}

func pathInt(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}

// sessionUser returns the authenticated user or writes a 401.
func sessionUser(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return 0, false
	}
	return userID, true
}

// ownUser reads {userId} from the path and only lets users see their own data.
func ownUser(w http.ResponseWriter, r *http.Request) (int, bool) {
	sessionID, ok := sessionUser(w, r)
	if !ok {
		return 0, false
	}
	userID, ok := pathInt(r, "userId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return 0, false
	}
	if userID != sessionID {
		respondWithError(w, http.StatusForbidden, "You can only access your own data")
		return 0, false
	}
	return userID, true
}
