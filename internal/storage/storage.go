// Package storage defines the persistence capability set used by the services
// and ships an in-memory and a Postgres implementation of it.
package storage

import (
	"context"
	"errors"
	"time"

	"earlyshhAPI/internal/types/activity"
	"earlyshhAPI/internal/types/analytics"
	"earlyshhAPI/internal/types/badge"
	"earlyshhAPI/internal/types/campaign"
	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/internal/types/notification"
	"earlyshhAPI/internal/types/story"
	"earlyshhAPI/internal/types/survey"
	"earlyshhAPI/internal/types/user"
)

var (
	ErrNotFound         = errors.New("storage: not found")
	ErrAlreadyExists    = errors.New("storage: already exists")
	ErrAlreadyClaimed   = errors.New("storage: campaign already claimed by user")
	ErrCapacityExceeded = errors.New("storage: campaign has no coupons left")
	ErrCampaignInactive = errors.New("storage: campaign is not accepting claims")
	ErrAlreadyRedeemed  = errors.New("storage: coupon already redeemed")
	ErrCouponExpired    = errors.New("storage: coupon expired")
)

type UserStore interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id int) (*user.User, error)
	GetUserByInstagramID(ctx context.Context, instagramID string) (*user.User, error)
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	ListUsers(ctx context.Context) ([]*user.User, error)
	// ModifyUser applies fn to the current row and saves the result while the
	// row is locked, so concurrent writers never overwrite each other. fn must
	// not call back into the store.
	ModifyUser(ctx context.Context, id int, fn func(u *user.User) error) (*user.User, error)
}

type CampaignStore interface {
	CreateCampaign(ctx context.Context, c *campaign.Campaign) error
	GetCampaign(ctx context.Context, id int) (*campaign.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*campaign.Campaign, error)
	UpdateCampaign(ctx context.Context, c *campaign.Campaign) error
}

type CouponStore interface {
	// CreateCouponIfAvailable inserts c only if the campaign is running at
	// c.ClaimedAt, the user holds no coupon for it and it still has capacity.
	// The checks and the insert are atomic with respect to other calls.
	CreateCouponIfAvailable(ctx context.Context, c *coupon.Coupon) error
	GetCoupon(ctx context.Context, id int) (*coupon.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*coupon.Coupon, error)
	GetCouponByFetchCode(ctx context.Context, fetchCode string) (*coupon.Coupon, error)
	GetUserCouponForCampaign(ctx context.Context, userID, campaignID int) (*coupon.Coupon, error)
	ListCouponsByUser(ctx context.Context, userID int) ([]*coupon.Coupon, error)
	CountCouponsByCampaign(ctx context.Context, campaignID int) (int, error)
	// RedeemCouponIfClaimed moves a claimed, unexpired coupon to redeemed. It
	// fails with ErrAlreadyRedeemed or ErrCouponExpired otherwise.
	RedeemCouponIfClaimed(ctx context.Context, id int, at time.Time) (*coupon.Coupon, error)
	// ExpireCouponIfLapsed marks a claimed coupon expired when its expiration
	// date is before at. It reports whether the row changed.
	ExpireCouponIfLapsed(ctx context.Context, id int, at time.Time) (bool, error)
	MarkCouponStoryPosted(ctx context.Context, id int) error
}

type StoryStore interface {
	CreateStory(ctx context.Context, s *story.Story) error
	GetStory(ctx context.Context, id int) (*story.Story, error)
	UpdateStory(ctx context.Context, s *story.Story) error
	ListStoriesByUser(ctx context.Context, userID int) ([]*story.Story, error)
	ListStoriesByCampaign(ctx context.Context, campaignID int) ([]*story.Story, error)
	CountStoriesByUserSince(ctx context.Context, userID int, since time.Time) (int, error)
}

type SurveyStore interface {
	// CreateSurvey fails with ErrAlreadyExists when the coupon already has a survey.
	CreateSurvey(ctx context.Context, s *survey.Survey) error
	ListSurveysByCampaign(ctx context.Context, campaignID int) ([]*survey.Survey, error)
}

type BadgeStore interface {
	CreateBadge(ctx context.Context, b *badge.Badge) error
	ListBadges(ctx context.Context) ([]*badge.Badge, error)
	ListUserBadges(ctx context.Context, userID int) ([]*badge.UserBadge, error)
	// CreateUserBadge fails with ErrAlreadyExists when the badge is already earned.
	CreateUserBadge(ctx context.Context, ub *badge.UserBadge) error
}

type ActivityStore interface {
	CreateActivity(ctx context.Context, a *activity.Activity) error
	// ListActivitiesByUser returns newest first. limit <= 0 means no limit.
	ListActivitiesByUser(ctx context.Context, userID int, limit int) ([]*activity.Activity, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *notification.Notification) error
	GetNotification(ctx context.Context, id int) (*notification.Notification, error)
	// ListNotificationsByUser returns a newest-first page plus the total matching count.
	ListNotificationsByUser(ctx context.Context, userID int, unreadOnly bool, limit, offset int) ([]*notification.Notification, int, error)
	CountUnreadNotifications(ctx context.Context, userID int) (int, error)
	UpdateNotification(ctx context.Context, n *notification.Notification) error
	MarkAllNotificationsRead(ctx context.Context, userID int) (int, error)
	DeleteNotification(ctx context.Context, id int) error
	UpsertDeviceToken(ctx context.Context, t *notification.DeviceToken) error
	ListDeviceTokens(ctx context.Context, userID int) ([]*notification.DeviceToken, error)
}

type AnalyticsStore interface {
	CreateAnalyticsEvent(ctx context.Context, e *analytics.Event) error
	ListAnalyticsEvents(ctx context.Context, campaignID int) ([]*analytics.Event, error)
}

type Storage interface {
	UserStore
	CampaignStore
	CouponStore
	StoryStore
	SurveyStore
	BadgeStore
	ActivityStore
	NotificationStore
	AnalyticsStore

	Ping(ctx context.Context) error
	Close()
}
