package badge

import "time"

type RequirementType string

const (
	RequirementProductsClaimed RequirementType = "products_claimed"
	RequirementStreakDays      RequirementType = "streak_days"
	RequirementStoriesPosted   RequirementType = "stories_posted"
	RequirementFriendsReferred RequirementType = "friends_referred"
	RequirementQuickClaim      RequirementType = "quick_claim"
)

const TimeframeMonth = "month"

type Requirement struct {
	Type      RequirementType `json:"type"`
	Value     int             `json:"value"`
	Timeframe string          `json:"timeframe,omitempty"`
}

type Badge struct {
	ID          int         `json:"id"`
	Key         string      `json:"key"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	Requirement Requirement `json:"requirement"`
}

type UserBadge struct {
	UserID   int       `json:"userId"`
	BadgeID  int       `json:"badgeId"`
	EarnedAt time.Time `json:"earnedAt"`
}

type BadgeWithStatus struct {
	Badge
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earnedAt,omitempty"`
}
