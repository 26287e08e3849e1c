package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/activity"
	"earlyshhAPI/internal/types/analytics"
	"earlyshhAPI/internal/types/survey"
)

const maxFeedbackLength = 2000

type SurveyService struct {
	store        storage.Storage
	gamification *GamificationService
	analytics    *AnalyticsService
	now          func() time.Time
}

func NewSurveyService(store storage.Storage, gamification *GamificationService, analytics *AnalyticsService) *SurveyService {
	return &SurveyService{
		store:        store,
		gamification: gamification,
		analytics:    analytics,
		now:          time.Now,
	}
}

// SubmitSurvey accepts one survey per coupon.
func (s *SurveyService) SubmitSurvey(ctx context.Context, userID int, req *survey.SubmitSurveyRequest) (*survey.Survey, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, validationError("rating must be between 1 and 5")
	}
	feedback := strings.TrimSpace(req.Feedback)
	if len(feedback) > maxFeedbackLength {
		return nil, validationError("feedback is limited to %d characters", maxFeedbackLength)
	}

	cp, err := s.store.GetCoupon(ctx, req.CouponID)
	if err != nil {
		return nil, notFoundAs(err, ErrCouponNotFound, "get coupon")
	}
	if cp.UserID != userID {
		return nil, ErrForbidden
	}

	sv := &survey.Survey{
		UserID:         userID,
		CouponID:       cp.ID,
		CampaignID:     cp.CampaignID,
		Rating:         req.Rating,
		Feedback:       feedback,
		WouldRecommend: req.WouldRecommend,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateSurvey(ctx, sv); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("survey for this coupon %w", ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create survey: %w", err)
	}

	if s.analytics != nil {
		if err := s.analytics.Record(ctx, cp.CampaignID, &userID, analytics.EventSurvey); err != nil {
			log.Printf("Failed to record survey for campaign %d: %v", cp.CampaignID, err)
		}
	}

	if s.gamification != nil {
		if _, err := s.gamification.TrackActivity(ctx, userID, activity.TypeSurveyCompleted, map[string]any{
			"surveyId":   sv.ID,
			"couponId":   cp.ID,
			"campaignId": cp.CampaignID,
			"rating":     sv.Rating,
		}); err != nil {
			log.Printf("Failed to track survey for user %d: %v", userID, err)
		}
	}

	return sv, nil
}
