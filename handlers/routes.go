package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"earlyshhAPI/middleware"
)

// Router groups every handler the API serves.
type Router struct {
	Auth          *AuthHandler
	Campaigns     *CampaignHandler
	Coupons       *CouponHandler
	Users         *UserHandler
	Stories       *StoryHandler
	Notifications *NotificationHandler
	Analytics     *AnalyticsHandler
	Health        *HealthHandler
}

// Register mounts the public and authenticated API routes on r.
func (rt *Router) Register(r *mux.Router, auth *middleware.Authenticator) {
	r.HandleFunc("/health", rt.Health.Health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Public
	api.HandleFunc("/auth/instagram", rt.Auth.InstagramLogin).Methods("POST")
	api.HandleFunc("/campaigns", rt.Campaigns.ListCampaigns).Methods("GET")
	api.Handle("/campaigns/{id}", auth.OptionalAuth(http.HandlerFunc(rt.Campaigns.GetCampaign))).Methods("GET")
	api.HandleFunc("/badges", rt.Users.ListBadges).Methods("GET")
	api.HandleFunc("/leaderboard", rt.Users.GetLeaderboard).Methods("GET")
	api.HandleFunc("/coupons/code/{code}", rt.Coupons.GetByCode).Methods("GET")

	protected := api.NewRoute().Subrouter()
	protected.Use(auth.RequireAuth)

	admin := protected.NewRoute().Subrouter()
	admin.Use(auth.RequireAdmin)

	admin.HandleFunc("/campaigns/{id}/analytics", rt.Analytics.GetCampaignAnalytics).Methods("GET")
	admin.HandleFunc("/campaigns/{id}/status", rt.Campaigns.UpdateStatus).Methods("PATCH")

	protected.HandleFunc("/campaigns/{id}/claim", rt.Campaigns.ClaimCoupon).Methods("POST")

	protected.HandleFunc("/users/{userId}", rt.Users.GetUser).Methods("GET")
	protected.HandleFunc("/users/{userId}/dashboard", rt.Users.GetDashboard).Methods("GET")
	protected.HandleFunc("/users/{userId}/badges", rt.Users.GetUserBadges).Methods("GET")
	protected.HandleFunc("/users/{userId}/activities", rt.Users.GetActivities).Methods("GET")
	protected.HandleFunc("/users/{userId}/level", rt.Users.GetLevelProgress).Methods("GET")
	protected.HandleFunc("/users/{userId}/coupons", rt.Coupons.ListUserCoupons).Methods("GET")
	protected.HandleFunc("/users/{userId}/stories", rt.Stories.ListUserStories).Methods("GET")

	protected.HandleFunc("/coupons/{id}/redeem", rt.Coupons.RedeemCoupon).Methods("PATCH")
	protected.HandleFunc("/coupons/redeem-by-code", rt.Coupons.RedeemByCode).Methods("POST")
	protected.HandleFunc("/coupons/{id}/qr", rt.Coupons.GetQRCode).Methods("GET")

	protected.HandleFunc("/stories", rt.Stories.CreateStory).Methods("POST")
	protected.HandleFunc("/stories/{id}/metrics", rt.Stories.UpdateMetrics).Methods("PATCH")
	protected.HandleFunc("/surveys", rt.Stories.SubmitSurvey).Methods("POST")
	protected.HandleFunc("/referrals", rt.Users.CreateReferral).Methods("POST")

	protected.HandleFunc("/notifications", rt.Notifications.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", rt.Notifications.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/read-all", rt.Notifications.MarkAllAsRead).Methods("PATCH")
	protected.HandleFunc("/notifications/{id}/read", rt.Notifications.MarkAsRead).Methods("PATCH")
	protected.HandleFunc("/notifications/{id}", rt.Notifications.DeleteNotification).Methods("DELETE")
	protected.HandleFunc("/notifications/register-device", rt.Notifications.RegisterDevice).Methods("POST")
	protected.HandleFunc("/notifications/ws", rt.Notifications.LiveFeed).Methods("GET")
}
