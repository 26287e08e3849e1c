package notification

import "time"

type NotificationType string

const (
	TypeCouponClaimed  NotificationType = "coupon_claimed"
	TypeCouponRedeemed NotificationType = "coupon_redeemed"
	TypeBadgeEarned    NotificationType = "badge_earned"
	TypeLevelUp        NotificationType = "level_up"
	TypeCampaignEnding NotificationType = "campaign_ending"
)

type Notification struct {
	ID        int              `json:"id"`
	UserID    int              `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      map[string]any   `json:"data,omitempty"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}

type CreateNotificationRequest struct {
	UserID  int
	Type    NotificationType
	Title   string
	Message string
	Data    map[string]any
}

type DeviceToken struct {
	UserID   int       `json:"userId"`
	Token    string    `json:"token"`
	Platform string    `json:"platform"`
	AddedAt  time.Time `json:"addedAt"`
	LastUsed time.Time `json:"lastUsed"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type NotificationListResponse struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unreadCount"`
	TotalCount    int             `json:"totalCount"`
	Page          int             `json:"page"`
	PageSize      int             `json:"pageSize"`
}
