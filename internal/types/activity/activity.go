package activity

import "time"

type Type string

const (
	TypeCouponClaimed   Type = "coupon_claimed"
	TypeCouponRedeemed  Type = "coupon_redeemed"
	TypeStoryPosted     Type = "story_posted"
	TypeSurveyCompleted Type = "survey_completed"
	TypeFriendReferred  Type = "friend_referred"
	TypeBadgeEarned     Type = "badge_earned"
	TypeLevelUp         Type = "level_up"
)

// Synthetic activities are produced by the rule engine itself, never by a user action.
func (t Type) Synthetic() bool {
	return t == TypeBadgeEarned || t == TypeLevelUp
}

type Activity struct {
	ID        int            `json:"id"`
	UserID    int            `json:"userId"`
	Type      Type           `json:"type"`
	Points    int            `json:"points"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
