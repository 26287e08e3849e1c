package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/analytics"
)

type AnalyticsService struct {
	store storage.Storage
	now   func() time.Time
}

func NewAnalyticsService(store storage.Storage) *AnalyticsService {
	return &AnalyticsService{
		store: store,
		now:   time.Now,
	}
}

// Record appends an event. userID is nil for anonymous views.
func (s *AnalyticsService) Record(ctx context.Context, campaignID int, userID *int, eventType analytics.EventType) error {
	err := s.store.CreateAnalyticsEvent(ctx, &analytics.Event{
		CampaignID: campaignID,
		UserID:     userID,
		Type:       eventType,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}
	return nil
}

func (s *AnalyticsService) GetCampaignAnalytics(ctx context.Context, campaignID int) (*analytics.CampaignAnalytics, error) {
	camp, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, notFoundAs(err, ErrCampaignNotFound, "get campaign")
	}

	events, err := s.store.ListAnalyticsEvents(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analytics events: %w", err)
	}

	result := &analytics.CampaignAnalytics{CampaignID: campaignID}
	for _, e := range events {
		switch e.Type {
		case analytics.EventView:
			result.Views++
		case analytics.EventClaim:
			result.Claims++
		case analytics.EventRedeem:
			result.Redemptions++
		case analytics.EventStory:
			result.Stories++
		case analytics.EventSurvey:
			result.Surveys++
		}
	}

	stories, err := s.store.ListStoriesByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	for _, st := range stories {
		result.TotalImpressions += st.Impressions
		result.TotalReach += st.Reach
	}

	surveys, err := s.store.ListSurveysByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}
	if len(surveys) > 0 {
		total := 0
		for _, sv := range surveys {
			total += sv.Rating
		}
		result.AverageRating = round2(float64(total) / float64(len(surveys)))
	}

	if result.Claims > 0 {
		result.ConversionRate = round2(float64(result.Redemptions) / float64(result.Claims))
	}

	issued, err := s.store.CountCouponsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to count coupons: %w", err)
	}
	result.RemainingCoupons = max(camp.MaxCoupons-issued, 0)

	return result, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
