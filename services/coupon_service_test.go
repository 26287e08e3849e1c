package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earlyshhAPI/internal/types/campaign"
	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/internal/types/notification"
)

var (
	couponCodePattern = regexp.MustCompile(`^EARLY-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{8}$`)
	fetchCodePattern  = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{4}$`)
)

func TestClaimCoupon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.newUser(t, "ig_alice")
	c := env.newCampaign(t, 10)

	resp, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, u.ID)
	require.NoError(t, err)

	assert.Regexp(t, couponCodePattern, resp.Code)
	assert.Regexp(t, fetchCodePattern, resp.FetchCode)
	assert.Equal(t, "https://earlyshh.com/coupon/"+resp.Code, resp.QRPayload)
	assert.Equal(t, env.clock.Now().AddDate(0, 1, 0), resp.ExpirationDate)
	assert.Equal(t, c.LegalText, resp.LegalText)
	assert.Equal(t, coupon.StatusClaimed, resp.Coupon.Status)

	stored, err := env.store.GetUserCouponForCampaign(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Coupon.ID, stored.ID)

	// 10 for the claim (no quick bonus two hours in) plus 20 for First Timer.
	after := env.reloadUser(t, u.ID)
	assert.Equal(t, 1, after.TotalFreeProducts)
	assert.Equal(t, 30, after.TotalPoints)
	assert.Equal(t, "24.99", after.TotalSavings.StringFixed(2))
	assert.Equal(t, 1, after.CurrentStreak)
	assert.Equal(t, []string{"first_timer"}, env.badgeKeys(t, u.ID))

	list, err := env.notifications.GetNotifications(ctx, u.ID, 1, 20, false)
	require.NoError(t, err)
	var types []notification.NotificationType
	for _, n := range list.Notifications {
		types = append(types, n.Type)
	}
	assert.Contains(t, types, notification.TypeCouponClaimed)
	assert.Contains(t, types, notification.TypeBadgeEarned)
}

func TestClaimCouponQuickClaimBonus(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, "ig_fast")
	c := env.newCampaign(t, 10, func(c *campaign.Campaign) {
		c.StartDate = env.clock.Now().Add(-30 * time.Minute)
	})

	_, err := env.coupons.ClaimCouponForCampaign(context.Background(), c.ID, u.ID)
	require.NoError(t, err)

	assert.Equal(t, 35, env.reloadUser(t, u.ID).TotalPoints)
}

func TestClaimCouponExpirationCappedByCampaignEnd(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, "ig_bob")
	end := env.clock.Now().Add(5 * 24 * time.Hour)
	c := env.newCampaign(t, 10, func(c *campaign.Campaign) { c.EndDate = end })

	resp, err := env.coupons.ClaimCouponForCampaign(context.Background(), c.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, end, resp.ExpirationDate)
}

func TestClaimCouponRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "ig_alice")
	bob := env.newUser(t, "ig_bob")

	t.Run("campaign not found", func(t *testing.T) {
		_, err := env.coupons.ClaimCouponForCampaign(ctx, 999, alice.ID)
		assert.ErrorIs(t, err, ErrCampaignNotFound)
	})

	t.Run("user not found", func(t *testing.T) {
		c := env.newCampaign(t, 10)
		_, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, 999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("already claimed", func(t *testing.T) {
		c := env.newCampaign(t, 10)
		_, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
		require.NoError(t, err)

		_, err = env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
		assert.EqualError(t, err, "you have already claimed this campaign")
	})

	t.Run("capacity exceeded", func(t *testing.T) {
		c := env.newCampaign(t, 1)
		_, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
		require.NoError(t, err)

		_, err = env.coupons.ClaimCouponForCampaign(ctx, c.ID, bob.ID)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		assert.EqualError(t, err, "no more coupons available")
	})

	t.Run("paused", func(t *testing.T) {
		c := env.newCampaign(t, 10, func(c *campaign.Campaign) { c.Status = campaign.StatusPaused })
		_, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
		assert.ErrorIs(t, err, ErrCampaignInactive)
	})

	t.Run("not started", func(t *testing.T) {
		c := env.newCampaign(t, 10, func(c *campaign.Campaign) {
			c.StartDate = env.clock.Now().Add(time.Hour)
		})
		_, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
		assert.ErrorIs(t, err, ErrCampaignInactive)
	})

	t.Run("ended", func(t *testing.T) {
		c := env.newCampaign(t, 10, func(c *campaign.Campaign) {
			c.EndDate = env.clock.Now().Add(-time.Minute)
		})
		_, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
		assert.ErrorIs(t, err, ErrCampaignInactive)
	})

	t.Run("checks run in order", func(t *testing.T) {
		c := env.newCampaign(t, 1)
		_, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
		require.NoError(t, err)
		_, err = env.campaigns.UpdateCampaignStatus(ctx, c.ID, campaign.StatusPaused)
		require.NoError(t, err)

		_, err = env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
		_, err = env.coupons.ClaimCouponForCampaign(ctx, c.ID, bob.ID)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})
}

func TestClaimCouponConcurrentCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCampaign(t, 5)

	const users = 20
	ids := make([]int, users)
	for i := range ids {
		ids[i] = env.newUser(t, fmt.Sprintf("ig_user_%d", i)).ID
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		unexpected []error
	)
	for _, id := range ids {
		for attempt := 0; attempt < 2; attempt++ {
			wg.Add(1)
			go func(userID int) {
				defer wg.Done()
				_, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, userID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case err == ErrCapacityExceeded, err == ErrAlreadyClaimed:
				default:
					unexpected = append(unexpected, err)
				}
			}(id)
		}
	}
	wg.Wait()

	assert.Empty(t, unexpected)
	assert.Equal(t, 5, successes)

	issued, err := env.store.CountCouponsByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, issued)

	for _, id := range ids {
		coupons, err := env.store.ListCouponsByUser(ctx, id)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(coupons), 1)
	}
}

func TestRedeemCoupon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "ig_alice")
	bob := env.newUser(t, "ig_bob")
	c := env.newCampaign(t, 10)

	resp, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
	require.NoError(t, err)

	_, err = env.coupons.RedeemCoupon(ctx, resp.Coupon.ID, bob.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	redeemed, err := env.coupons.RedeemCoupon(ctx, resp.Coupon.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, coupon.StatusRedeemed, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedAt)
	assert.Equal(t, env.clock.Now(), *redeemed.RedeemedAt)

	_, err = env.coupons.RedeemCoupon(ctx, resp.Coupon.ID, alice.ID)
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)

	_, err = env.coupons.RedeemCoupon(ctx, 999, alice.ID)
	assert.ErrorIs(t, err, ErrCouponNotFound)
}

func TestRedeemExpiredCoupon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.newUser(t, "ig_alice")
	c := env.newCampaign(t, 10)

	resp, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, u.ID)
	require.NoError(t, err)

	env.clock.Advance(32 * 24 * time.Hour)
	_, err = env.coupons.RedeemCoupon(ctx, resp.Coupon.ID, u.ID)
	assert.ErrorIs(t, err, ErrCouponExpired)
}

func TestRedeemConcurrentOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.newUser(t, "ig_alice")
	c := env.newCampaign(t, 10)

	resp, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, u.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.coupons.RedeemByFetchCode(ctx, resp.FetchCode, u.ID, false)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyRedeemed)
	}
	assert.Equal(t, 1, ok)
}

func TestRedeemByFetchCodeNormalizesInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.newUser(t, "ig_alice")
	c := env.newCampaign(t, 10)

	resp, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, u.ID)
	require.NoError(t, err)

	spaced := strings.ReplaceAll(resp.FetchCode, "-", " ")
	redeemed, err := env.coupons.RedeemByFetchCode(ctx, spaced, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, resp.Coupon.ID, redeemed.ID)

	_, err = env.coupons.RedeemByFetchCode(ctx, "12-34", u.ID, false)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.coupons.RedeemByFetchCode(ctx, "0000000000000000", u.ID, false)
	assert.ErrorIs(t, err, ErrCouponNotFound)
}

func TestGetCouponQRCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "ig_alice")
	bob := env.newUser(t, "ig_bob")
	c := env.newCampaign(t, 10)

	resp, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
	require.NoError(t, err)

	qr, err := env.coupons.GetCouponQRCode(ctx, resp.Coupon.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.QRPayload, qr.QRPayload)
	assert.NotEmpty(t, qr.QrCodeBase64)

	_, err = env.coupons.GetCouponQRCode(ctx, resp.Coupon.ID, bob.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListUserCouponsEffectiveStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.newUser(t, "ig_alice")
	c := env.newCampaign(t, 10)

	_, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, u.ID)
	require.NoError(t, err)

	list, err := env.coupons.ListUserCoupons(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, coupon.StatusClaimed, list[0].EffectiveStatus)
	assert.Equal(t, c.ID, list[0].Campaign.ID)

	env.clock.Advance(40 * 24 * time.Hour)
	list, err = env.coupons.ListUserCoupons(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, coupon.StatusExpired, list[0].EffectiveStatus)

	byCode, err := env.coupons.GetCouponByCode(ctx, list[0].Code)
	require.NoError(t, err)
	assert.Equal(t, list[0].ID, byCode.ID)
	assert.Equal(t, coupon.StatusExpired, byCode.Status)
	assert.Equal(t, "Glow Lab", byCode.BrandName)
}

func TestRedeemByFetchCodeRequiresHolderOrStaff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "ig_alice")
	bob := env.newUser(t, "ig_bob")
	c := env.newCampaign(t, 10)

	resp, err := env.coupons.ClaimCouponForCampaign(ctx, c.ID, alice.ID)
	require.NoError(t, err)

	_, err = env.coupons.RedeemByFetchCode(ctx, resp.FetchCode, bob.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)

	redeemed, err := env.coupons.RedeemByFetchCode(ctx, resp.FetchCode, bob.ID, true)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, redeemed.UserID)
	assert.Equal(t, coupon.StatusRedeemed, redeemed.Status)
}
