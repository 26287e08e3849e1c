package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earlyshhAPI/internal/types/badge"
	"earlyshhAPI/internal/types/campaign"
	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/internal/types/notification"
	"earlyshhAPI/internal/types/survey"
	"earlyshhAPI/internal/types/user"
)

func newCampaign(t *testing.T, s *MemoryStorage, maxCoupons int) *campaign.Campaign {
	t.Helper()
	now := time.Now()
	c := &campaign.Campaign{
		BrandName:    "Brand",
		ProductName:  "Product",
		Title:        "Free Product",
		ProductValue: decimal.NewFromInt(5),
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.Add(24 * time.Hour),
		MaxCoupons:   maxCoupons,
		PerUserLimit: 1,
		Status:       campaign.StatusActive,
	}
	require.NoError(t, s.CreateCampaign(context.Background(), c))
	return c
}

func newCoupon(campaignID, userID int, code string) *coupon.Coupon {
	return &coupon.Coupon{
		CampaignID: campaignID,
		UserID:     userID,
		Code:       code,
		FetchCode:  code,
		Status:     coupon.StatusClaimed,
		ClaimedAt:  time.Now(),
	}
}

func TestMemoryUserLookups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	clerkID := "user_clerk"
	u := &user.User{InstagramID: "ig_1", ClerkID: &clerkID, Username: "ana"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, 1, u.ID)

	byIG, err := s.GetUserByInstagramID(ctx, "ig_1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byIG.ID)

	byClerk, err := s.GetUserByClerkID(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byClerk.ID)

	err = s.CreateUser(ctx, &user.User{InstagramID: "ig_1", Username: "dup"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = s.GetUser(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	u := &user.User{InstagramID: "ig_1", Username: "ana"}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	got.TotalPoints = 999

	again, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, again.TotalPoints)
}

func TestCreateCouponIfAvailable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	camp := newCampaign(t, s, 2)

	require.NoError(t, s.CreateCouponIfAvailable(ctx, newCoupon(camp.ID, 1, "A")))

	err := s.CreateCouponIfAvailable(ctx, newCoupon(camp.ID, 1, "B"))
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	require.NoError(t, s.CreateCouponIfAvailable(ctx, newCoupon(camp.ID, 2, "C")))

	err = s.CreateCouponIfAvailable(ctx, newCoupon(camp.ID, 3, "D"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	err = s.CreateCouponIfAvailable(ctx, newCoupon(999, 3, "E"))
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.CountCouponsByCampaign(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCreateCouponIfAvailableConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	camp := newCampaign(t, s, 10)

	var wg sync.WaitGroup
	for userID := 1; userID <= 50; userID++ {
		// Every user tries twice at the same time.
		for attempt := 0; attempt < 2; attempt++ {
			wg.Add(1)
			go func(userID int) {
				defer wg.Done()
				s.CreateCouponIfAvailable(ctx, newCoupon(camp.ID, userID, "X"))
			}(userID)
		}
	}
	wg.Wait()

	n, err := s.CountCouponsByCampaign(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	for userID := 1; userID <= 50; userID++ {
		coupons, err := s.ListCouponsByUser(ctx, userID)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(coupons), 1)
	}
}

func TestCreateCouponIfAvailableRejectsStoppedCampaign(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	camp := newCampaign(t, s, 10)

	camp.Status = campaign.StatusPaused
	require.NoError(t, s.UpdateCampaign(ctx, camp))
	assert.ErrorIs(t, s.CreateCouponIfAvailable(ctx, newCoupon(camp.ID, 1, "A")), ErrCampaignInactive)

	camp.Status = campaign.StatusActive
	camp.EndDate = time.Now().Add(-time.Minute)
	require.NoError(t, s.UpdateCampaign(ctx, camp))
	assert.ErrorIs(t, s.CreateCouponIfAvailable(ctx, newCoupon(camp.ID, 1, "B")), ErrCampaignInactive)

	issued, err := s.CountCouponsByCampaign(ctx, camp.ID)
	require.NoError(t, err)
	assert.Zero(t, issued)
}

func TestRedeemCouponIfClaimed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	camp := newCampaign(t, s, 10)
	now := time.Now()

	live := newCoupon(camp.ID, 1, "A")
	live.ExpirationDate = now.Add(time.Hour)
	require.NoError(t, s.CreateCouponIfAvailable(ctx, live))

	lapsed := newCoupon(camp.ID, 2, "B")
	lapsed.ExpirationDate = now.Add(-time.Minute)
	require.NoError(t, s.CreateCouponIfAvailable(ctx, lapsed))

	redeemed, err := s.RedeemCouponIfClaimed(ctx, live.ID, now)
	require.NoError(t, err)
	assert.Equal(t, coupon.StatusRedeemed, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedAt)

	_, err = s.RedeemCouponIfClaimed(ctx, live.ID, now)
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)

	_, err = s.RedeemCouponIfClaimed(ctx, lapsed.ID, now)
	assert.ErrorIs(t, err, ErrCouponExpired)

	_, err = s.RedeemCouponIfClaimed(ctx, 999, now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkCouponStoryPostedKeepsRedemption(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	camp := newCampaign(t, s, 10)
	now := time.Now()

	c := newCoupon(camp.ID, 1, "A")
	c.ExpirationDate = now.Add(time.Hour)
	require.NoError(t, s.CreateCouponIfAvailable(ctx, c))

	_, err := s.RedeemCouponIfClaimed(ctx, c.ID, now)
	require.NoError(t, err)
	require.NoError(t, s.MarkCouponStoryPosted(ctx, c.ID))

	got, err := s.GetCoupon(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.StoryPosted)
	assert.Equal(t, coupon.StatusRedeemed, got.Status)
	assert.NotNil(t, got.RedeemedAt)

	assert.ErrorIs(t, s.MarkCouponStoryPosted(ctx, 999), ErrNotFound)
}

func TestExpireCouponIfLapsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	camp := newCampaign(t, s, 10)
	now := time.Now()

	c := newCoupon(camp.ID, 1, "A")
	c.ExpirationDate = now.Add(time.Hour)
	require.NoError(t, s.CreateCouponIfAvailable(ctx, c))

	changed, err := s.ExpireCouponIfLapsed(ctx, c.ID, now)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.ExpireCouponIfLapsed(ctx, c.ID, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.GetCoupon(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, coupon.StatusExpired, got.Status)
}

func TestModifyUserConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	u := &user.User{InstagramID: "ig_1", Username: "ana"}
	require.NoError(t, s.CreateUser(ctx, u))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ModifyUser(ctx, u.ID, func(u *user.User) error {
				u.TotalPoints += 10
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 500, got.TotalPoints)

	_, err = s.ModifyUser(ctx, 999, func(*user.User) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSurveyOnePerCoupon(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.CreateSurvey(ctx, &survey.Survey{UserID: 1, CouponID: 7, CampaignID: 1, Rating: 4}))
	err := s.CreateSurvey(ctx, &survey.Survey{UserID: 1, CouponID: 7, CampaignID: 1, Rating: 2})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUserBadgeUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	b := &badge.Badge{Key: "first_timer", Name: "First Timer"}
	require.NoError(t, s.CreateBadge(ctx, b))

	require.NoError(t, s.CreateUserBadge(ctx, &badge.UserBadge{UserID: 1, BadgeID: b.ID, EarnedAt: time.Now()}))
	err := s.CreateUserBadge(ctx, &badge.UserBadge{UserID: 1, BadgeID: b.ID, EarnedAt: time.Now()})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	earned, err := s.ListUserBadges(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, earned, 1)
}

func TestNotificationsPaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateNotification(ctx, &notification.Notification{
			UserID: 1, Type: notification.TypeCouponClaimed, Title: "t", Message: "m", CreatedAt: time.Now(),
		}))
	}
	require.NoError(t, s.CreateNotification(ctx, &notification.Notification{UserID: 2, Title: "other"}))

	page, total, err := s.ListNotificationsByUser(ctx, 1, false, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Greater(t, page[0].ID, page[1].ID)

	marked, err := s.MarkAllNotificationsRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, marked)

	unread, err := s.CountUnreadNotifications(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, unread)

	unread, err = s.CountUnreadNotifications(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	now := time.Now()

	require.NoError(t, Seed(ctx, s, now))
	require.NoError(t, Seed(ctx, s, now))

	badges, err := s.ListBadges(ctx)
	require.NoError(t, err)
	assert.Len(t, badges, len(DefaultBadges()))

	campaigns, err := s.ListCampaigns(ctx)
	require.NoError(t, err)
	assert.Len(t, campaigns, len(FixtureCampaigns(now)))
}
