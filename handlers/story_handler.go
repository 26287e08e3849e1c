package handlers

import (
	"context"
	"net/http"
	"time"

	"earlyshhAPI/internal/types/story"
	"earlyshhAPI/internal/types/survey"
	"earlyshhAPI/services"
)

type StoryHandler struct {
	storyService  *services.StoryService
	surveyService *services.SurveyService
}

func NewStoryHandler(storyService *services.StoryService, surveyService *services.SurveyService) *StoryHandler {
	return &StoryHandler{
		storyService:  storyService,
		surveyService: surveyService,
	}
}

// POST /api/stories
func (h *StoryHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var req story.CreateStoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.storyService.CreateStory(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, s)
}

// PATCH /api/stories/{id}/metrics
func (h *StoryHandler) UpdateMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	storyID, ok := pathInt(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid story ID")
		return
	}

	var req story.UpdateMetricsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.storyService.UpdateStoryMetrics(ctx, storyID, userID, &req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, s)
}

// GET /api/users/{userId}/stories
func (h *StoryHandler) ListUserStories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := ownUser(w, r)
	if !ok {
		return
	}

	stories, err := h.storyService.ListUserStories(ctx, userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stories)
}

// POST /api/surveys
func (h *StoryHandler) SubmitSurvey(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var req survey.SubmitSurveyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.surveyService.SubmitSurvey(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, s)
}
