package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/campaign"
	"earlyshhAPI/internal/types/user"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	store         *storage.MemoryStorage
	clock         *testClock
	notifications *NotificationService
	analytics     *AnalyticsService
	gamification  *GamificationService
	campaigns     *CampaignService
	coupons       *CouponService
	stories       *StoryService
	surveys       *SurveyService
	sessions      *SessionService
	users         *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storage.NewMemoryStorage()
	for _, b := range storage.DefaultBadges() {
		require.NoError(t, store.CreateBadge(context.Background(), b))
	}

	clock := &testClock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}

	env := &testEnv{store: store, clock: clock}
	env.notifications = NewNotificationService(store)
	env.analytics = NewAnalyticsService(store)
	env.gamification = NewGamificationService(store, env.notifications)
	env.campaigns = NewCampaignService(store, env.analytics)
	env.coupons = NewCouponService(store, env.gamification, env.analytics, env.notifications, "https://earlyshh.com")
	env.stories = NewStoryService(store, env.gamification, env.analytics)
	env.surveys = NewSurveyService(store, env.gamification, env.analytics)
	env.sessions = NewSessionService("test-secret", time.Hour)
	env.users = NewUserService(store, env.sessions, env.gamification)

	env.notifications.now = clock.Now
	env.analytics.now = clock.Now
	env.gamification.now = clock.Now
	env.campaigns.now = clock.Now
	env.coupons.now = clock.Now
	env.stories.now = clock.Now
	env.surveys.now = clock.Now
	env.sessions.now = clock.Now
	env.users.now = clock.Now

	return env
}

func (e *testEnv) newUser(t *testing.T, instagramID string) *user.User {
	t.Helper()
	u := &user.User{
		InstagramID:  instagramID,
		Username:     instagramID,
		DisplayName:  instagramID,
		Level:        user.LevelNewbie,
		TotalSavings: decimal.Zero,
		CreatedAt:    e.clock.Now(),
		UpdatedAt:    e.clock.Now(),
	}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

// newCampaign creates a running campaign that started two hours ago.
func (e *testEnv) newCampaign(t *testing.T, maxCoupons int, opts ...func(*campaign.Campaign)) *campaign.Campaign {
	t.Helper()
	now := e.clock.Now()
	c := &campaign.Campaign{
		BrandName:    "Glow Lab",
		ProductName:  "Serum",
		Title:        "Free Serum",
		OfferText:    "1 free serum",
		ProductValue: decimal.RequireFromString("24.99"),
		LegalText:    "One per person.",
		Category:     "beauty",
		StartDate:    now.Add(-2 * time.Hour),
		EndDate:      now.Add(60 * 24 * time.Hour),
		MaxCoupons:   maxCoupons,
		PerUserLimit: 1,
		Status:       campaign.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(c)
	}
	require.NoError(t, e.store.CreateCampaign(context.Background(), c))
	return c
}

func (e *testEnv) reloadUser(t *testing.T, id int) *user.User {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *testEnv) badgeKeys(t *testing.T, userID int) []string {
	t.Helper()
	badges, err := e.gamification.GetUserBadges(context.Background(), userID)
	require.NoError(t, err)
	var keys []string
	for _, b := range badges {
		if b.Earned {
			keys = append(keys, b.Key)
		}
	}
	return keys
}
