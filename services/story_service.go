package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/activity"
	"earlyshhAPI/internal/types/analytics"
	"earlyshhAPI/internal/types/story"
)

type StoryService struct {
	store        storage.Storage
	gamification *GamificationService
	analytics    *AnalyticsService
	now          func() time.Time
}

func NewStoryService(store storage.Storage, gamification *GamificationService, analytics *AnalyticsService) *StoryService {
	return &StoryService{
		store:        store,
		gamification: gamification,
		analytics:    analytics,
		now:          time.Now,
	}
}

func validateMetrics(impressions, reach int) error {
	if impressions < 0 || reach < 0 {
		return validationError("impressions and reach cannot be negative")
	}
	return nil
}

func (s *StoryService) CreateStory(ctx context.Context, userID int, req *story.CreateStoryRequest) (*story.Story, error) {
	if err := validateMetrics(req.Impressions, req.Reach); err != nil {
		return nil, err
	}
	if req.StoryURL != "" {
		if u, err := url.Parse(req.StoryURL); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, validationError("storyUrl must be an absolute URL")
		}
	}

	cp, err := s.store.GetCoupon(ctx, req.CouponID)
	if err != nil {
		return nil, notFoundAs(err, ErrCouponNotFound, "get coupon")
	}
	if cp.UserID != userID {
		return nil, ErrForbidden
	}

	now := s.now()
	st := &story.Story{
		UserID:      userID,
		CouponID:    cp.ID,
		CampaignID:  cp.CampaignID,
		StoryURL:    req.StoryURL,
		Impressions: req.Impressions,
		Reach:       req.Reach,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateStory(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	if !cp.StoryPosted {
		if err := s.store.MarkCouponStoryPosted(ctx, cp.ID); err != nil {
			log.Printf("Failed to flag story on coupon %d: %v", cp.ID, err)
		}
	}

	if s.analytics != nil {
		if err := s.analytics.Record(ctx, cp.CampaignID, &userID, analytics.EventStory); err != nil {
			log.Printf("Failed to record story for campaign %d: %v", cp.CampaignID, err)
		}
	}

	if s.gamification != nil {
		if _, err := s.gamification.TrackActivity(ctx, userID, activity.TypeStoryPosted, map[string]any{
			"storyId":    st.ID,
			"couponId":   cp.ID,
			"campaignId": cp.CampaignID,
		}); err != nil {
			log.Printf("Failed to track story for user %d: %v", userID, err)
		}
	}

	return st, nil
}

func (s *StoryService) UpdateStoryMetrics(ctx context.Context, storyID, userID int, req *story.UpdateMetricsRequest) (*story.Story, error) {
	if err := validateMetrics(req.Impressions, req.Reach); err != nil {
		return nil, err
	}

	st, err := s.store.GetStory(ctx, storyID)
	if err != nil {
		return nil, notFoundAs(err, ErrStoryNotFound, "get story")
	}
	if st.UserID != userID {
		return nil, ErrForbidden
	}

	st.Impressions = req.Impressions
	st.Reach = req.Reach
	st.UpdatedAt = s.now()
	if err := s.store.UpdateStory(ctx, st); err != nil {
		return nil, notFoundAs(err, ErrStoryNotFound, "update story")
	}
	return st, nil
}

func (s *StoryService) ListUserStories(ctx context.Context, userID int) ([]*story.Story, error) {
	stories, err := s.store.ListStoriesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return stories, nil
}
