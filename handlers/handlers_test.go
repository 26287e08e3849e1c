package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/campaign"
	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/internal/types/user"
	"earlyshhAPI/middleware"
	"earlyshhAPI/services"
)

type testServer struct {
	store  *storage.MemoryStorage
	router *mux.Router
	auth   *middleware.Authenticator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStorage()
	require.NoError(t, storage.Seed(ctx, store, time.Now()))

	hub := services.NewNotificationHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	dispatcher := services.NewNotificationDispatcher(store, hub)
	t.Cleanup(dispatcher.Stop)

	notifications := services.NewNotificationService(store)
	notifications.SetDispatcher(dispatcher)
	analytics := services.NewAnalyticsService(store)
	gamification := services.NewGamificationService(store, notifications)
	campaigns := services.NewCampaignService(store, analytics)
	coupons := services.NewCouponService(store, gamification, analytics, notifications, "https://earlyshh.com")
	stories := services.NewStoryService(store, gamification, analytics)
	surveys := services.NewSurveyService(store, gamification, analytics)
	sessions := services.NewSessionService("handler-test-secret", time.Hour)
	users := services.NewUserService(store, sessions, gamification)

	rt := &Router{
		Auth:          NewAuthHandler(users),
		Campaigns:     NewCampaignHandler(campaigns, coupons),
		Coupons:       NewCouponHandler(coupons),
		Users:         NewUserHandler(users, gamification),
		Stories:       NewStoryHandler(stories, surveys),
		Notifications: NewNotificationHandler(notifications, hub, []string{"*"}),
		Analytics:     NewAnalyticsHandler(analytics),
		Health:        NewHealthHandler(store),
	}

	auth := middleware.NewAuthenticator(sessions, nil)
	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	rt.Register(router, auth)

	return &testServer{store: store, router: router, auth: auth}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, instagramID string) *user.AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/instagram", "", map[string]string{
		"instagramId": instagramID,
		"username":    "@" + instagramID,
	})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())

	var resp user.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return &resp
}

// loginAdmin logs a user in and grants them admin rights.
func (s *testServer) loginAdmin(t *testing.T, instagramID string) *user.AuthResponse {
	t.Helper()
	resp := s.login(t, instagramID)
	s.auth.WithAdmins(resp.User.ID)
	return resp
}

func (s *testServer) addCampaign(t *testing.T, maxCoupons int) *campaign.Campaign {
	t.Helper()
	now := time.Now()
	c := &campaign.Campaign{
		BrandName:    "Limited",
		ProductName:  "Sample",
		Title:        "Tiny drop",
		ProductValue: decimal.RequireFromString("5.00"),
		LegalText:    "One per person.",
		Category:     "beauty",
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.Add(24 * time.Hour),
		MaxCoupons:   maxCoupons,
		PerUserLimit: 1,
		Status:       campaign.StatusActive,
	}
	require.NoError(t, s.store.CreateCampaign(context.Background(), c))
	return c
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestInstagramLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/instagram", "", map[string]string{"instagramId": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/instagram", "", map[string]string{"instagramId": "1", "username": "alice"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/instagram", "", map[string]string{"instagramId": "1", "username": "alice"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[user.AuthResponse](t, rec).IsNew)
}

func TestListAndGetCampaigns(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/campaigns", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]campaign.CampaignWithAvailability](t, rec)
	assert.Len(t, all, 3)

	rec = s.do(t, http.MethodGet, "/api/campaigns?category=food", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]campaign.CampaignWithAvailability](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/campaigns?lat=52.52&lng=13.405&radiusKm=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nearby := decode[[]campaign.CampaignWithAvailability](t, rec)
	require.Len(t, nearby, 2)
	assert.Equal(t, "Glow Lab", nearby[0].BrandName)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/campaigns?lat=95&lng=13", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/campaigns?lat=52", "", nil).Code)

	rec = s.do(t, http.MethodGet, "/api/campaigns/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[campaign.CampaignWithAvailability](t, rec)
	assert.Equal(t, 50, c.AvailableCount)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/campaigns/999", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/campaigns/abc", "", nil).Code)
}

func TestClaimErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/campaigns/1/claim", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/campaigns/1/claim", "not-a-token", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/campaigns/abc/claim", alice.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/campaigns/999/claim", alice.Token, nil).Code)

	rec := s.do(t, http.MethodPost, "/api/campaigns/1/claim", alice.Token, map[string]int{"userId": bob.User.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The ended fixture campaign.
	rec = s.do(t, http.MethodPost, "/api/campaigns/4/claim", alice.Token, nil)
	assert.Equal(t, http.StatusGone, rec.Code)

	tiny := s.addCampaign(t, 1)
	path := fmt.Sprintf("/api/campaigns/%d/claim", tiny.ID)
	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, path, alice.Token, nil).Code)

	rec = s.do(t, http.MethodPost, path, alice.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "you have already claimed this campaign")

	rec = s.do(t, http.MethodPost, path, bob.Token, nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Contains(t, rec.Body.String(), "no more coupons available")
}

func TestClaimRedeemStorySurveyFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")

	rec := s.do(t, http.MethodPost, "/api/campaigns/1/claim", alice.Token, map[string]int{"userId": alice.User.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	claim := decode[coupon.ClaimResponse](t, rec)
	assert.Regexp(t, `^EARLY-[A-Z2-9]{8}$`, claim.Code)
	assert.Equal(t, "https://earlyshh.com/coupon/"+claim.Code, claim.QRPayload)
	assert.Regexp(t, `^\d{4}-\d{4}-\d{4}-\d{4}$`, claim.FetchCode)
	assert.NotEmpty(t, claim.LegalText)
	couponID := claim.Coupon.ID

	// Own data only.
	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/coupons", alice.User.ID), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]coupon.CouponWithCampaign](t, rec), 1)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/coupons", alice.User.ID), bob.Token, nil).Code)

	// Scanner lookup is public but never shows what it takes to redeem.
	rec = s.do(t, http.MethodGet, "/api/coupons/code/"+claim.Code, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	scanned := decode[map[string]any](t, rec)
	assert.EqualValues(t, couponID, scanned["id"])
	assert.Equal(t, "claimed", scanned["status"])
	assert.NotContains(t, scanned, "fetchCode")
	assert.NotContains(t, scanned, "qrPayload")
	assert.NotContains(t, rec.Body.String(), claim.FetchCode)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/coupons/%d/qr", couponID), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[coupon.QRCodeResponse](t, rec).QrCodeBase64)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, fmt.Sprintf("/api/coupons/%d/qr", couponID), bob.Token, nil).Code)

	redeemPath := fmt.Sprintf("/api/coupons/%d/redeem", couponID)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, redeemPath, bob.Token, nil).Code)
	rec = s.do(t, http.MethodPatch, redeemPath, alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, coupon.StatusRedeemed, decode[coupon.Coupon](t, rec).Status)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPatch, redeemPath, alice.Token, nil).Code)

	rec = s.do(t, http.MethodPost, "/api/stories", alice.Token, map[string]any{
		"couponId":    couponID,
		"storyUrl":    "https://instagram.com/stories/alice/1",
		"impressions": 40,
		"reach":       25,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	storyID := int(decode[map[string]any](t, rec)["id"].(float64))

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/api/stories/%d/metrics", storyID), alice.Token, map[string]int{"impressions": 90, "reach": 60})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/api/stories/%d/metrics", storyID), alice.Token, map[string]int{"impressions": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/surveys", alice.Token, map[string]any{"couponId": couponID, "rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/surveys", alice.Token, map[string]any{"couponId": couponID, "rating": 5, "wouldRecommend": true})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/surveys", alice.Token, map[string]any{"couponId": couponID, "rating": 4})
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/campaigns/1/analytics", alice.Token, nil).Code)
	staff := s.loginAdmin(t, "store_staff")
	rec = s.do(t, http.MethodGet, "/api/campaigns/1/analytics", staff.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, stats["claims"])
	assert.EqualValues(t, 1, stats["redemptions"])
	assert.EqualValues(t, 90, stats["totalImpressions"])
	assert.EqualValues(t, 5, stats["averageRating"])
	assert.EqualValues(t, 49, stats["remainingCoupons"])

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/dashboard", alice.User.ID), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dashboard := decode[user.Dashboard](t, rec)
	assert.Equal(t, 1, dashboard.User.TotalFreeProducts)
	assert.Equal(t, 1, dashboard.Coupons.Redeemed)
	// claim 10 + First Timer 20 + redeem 5 + story 15 + survey 5
	assert.Equal(t, 55, dashboard.User.TotalPoints)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/badges", alice.User.ID), alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/leaderboard?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[[]user.LeaderboardEntry](t, rec)
	require.Len(t, board, 1)
	assert.Equal(t, alice.User.ID, board[0].UserID)
}

func TestRedeemByCode(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")
	staff := s.loginAdmin(t, "store_staff")

	rec := s.do(t, http.MethodPost, "/api/campaigns/2/claim", alice.Token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	claim := decode[coupon.ClaimResponse](t, rec)

	// Knowing someone else's fetch code is not enough.
	rec = s.do(t, http.MethodPost, "/api/coupons/redeem-by-code", bob.Token, map[string]string{"fetchCode": claim.FetchCode})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/coupons/redeem-by-code", staff.Token, map[string]string{}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/coupons/redeem-by-code", staff.Token, map[string]string{"fetchCode": "12"}).Code)

	rec = s.do(t, http.MethodPost, "/api/coupons/redeem-by-code", staff.Token, map[string]string{"fetchCode": claim.FetchCode})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/coupons/redeem-by-code", staff.Token, map[string]string{"fetchCode": claim.FetchCode}).Code)
}

func TestRedeemByCodeHolder(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/campaigns/2/claim", alice.Token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	claim := decode[coupon.ClaimResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/api/coupons/redeem-by-code", alice.Token, map[string]string{"fetchCode": claim.FetchCode})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, coupon.StatusRedeemed, decode[coupon.Coupon](t, rec).Status)
}

func TestCampaignAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")
	admin := s.loginAdmin(t, "ops")

	paused := map[string]string{"status": "paused"}
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPatch, "/api/campaigns/1/status", "", paused).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, "/api/campaigns/1/status", alice.Token, paused).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/campaigns/1/analytics", alice.Token, nil).Code)

	rec := s.do(t, http.MethodPatch, "/api/campaigns/1/status", admin.Token, paused)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, campaign.StatusPaused, decode[campaign.Campaign](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/api/campaigns/1/claim", alice.Token, nil)
	assert.Equal(t, http.StatusGone, rec.Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/campaigns/1/analytics", admin.Token, nil).Code)
}

func TestReferrals(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")

	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/referrals", alice.Token, map[string]string{"referredInstagramId": "friend"}).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/referrals", alice.Token, map[string]string{"referredInstagramId": "friend"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/referrals", alice.Token, map[string]string{"referredInstagramId": "alice"}).Code)
}

func TestNotificationsEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")

	// A claim produces a coupon notification and a badge notification.
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/campaigns/1/claim", alice.Token, nil).Code)

	rec := s.do(t, http.MethodGet, "/api/notifications/unread-count", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[map[string]int](t, rec)["unreadCount"])

	rec = s.do(t, http.MethodGet, "/api/notifications?page=1&page_size=1", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, list["totalCount"])
	items := list["notifications"].([]any)
	require.Len(t, items, 1)
	firstID := int(items[0].(map[string]any)["id"].(float64))

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", firstID), bob.Token, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", firstID), alice.Token, nil).Code)

	rec = s.do(t, http.MethodPatch, "/api/notifications/read-all", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["updated"])

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, fmt.Sprintf("/api/notifications/%d", firstID), alice.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, fmt.Sprintf("/api/notifications/%d", firstID), alice.Token, nil).Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/notifications/register-device", alice.Token, map[string]string{"token": "fcm-1", "platform": "android"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/notifications/register-device", alice.Token, map[string]string{"token": "fcm-1", "platform": "fax"}).Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrInvalidToken, http.StatusUnauthorized},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrCouponNotFound, http.StatusNotFound},
		{services.ErrAlreadyClaimed, http.StatusConflict},
		{services.ErrAlreadyRedeemed, http.StatusConflict},
		{fmt.Errorf("survey for this coupon %w", services.ErrAlreadyExists), http.StatusConflict},
		{services.ErrCapacityExceeded, http.StatusGone},
		{services.ErrCampaignInactive, http.StatusGone},
		{services.ErrCouponExpired, http.StatusGone},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
