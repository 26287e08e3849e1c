package user

import (
	"time"

	"github.com/shopspring/decimal"
)

type Level string

const (
	LevelNewbie           Level = "Newbie"
	LevelExplorer         Level = "Explorer"
	LevelCaptain          Level = "Captain"
	LevelCampusInfluencer Level = "Campus Influencer"
)

type User struct {
	ID                int             `json:"id"`
	InstagramID       string          `json:"instagramId"`
	ClerkID           *string         `json:"clerkId,omitempty"`
	Username          string          `json:"username"`
	DisplayName       string          `json:"displayName"`
	ProfilePicture    string          `json:"profilePicture,omitempty"`
	TotalFreeProducts int             `json:"totalFreeProducts"`
	TotalSavings      decimal.Decimal `json:"totalSavings"`
	TotalStories      int             `json:"totalStories"`
	TotalReferrals    int             `json:"totalReferrals"`
	TotalPoints       int             `json:"totalPoints"`
	CurrentStreak     int             `json:"currentStreak"`
	LongestStreak     int             `json:"longestStreak"`
	LastActivityDate  *time.Time      `json:"lastActivityDate,omitempty"`
	Level             Level           `json:"level"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type InstagramAuthRequest struct {
	InstagramID    string  `json:"instagramId"`
	Username       string  `json:"username"`
	DisplayName    string  `json:"displayName"`
	ProfilePicture string  `json:"profilePicture"`
	ClerkID        *string `json:"clerkId,omitempty"`
}

type AuthResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsNew     bool      `json:"isNew"`
}

type ReferralRequest struct {
	ReferredInstagramID string `json:"referredInstagramId"`
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        int    `json:"userId"`
	Username      string `json:"username"`
	DisplayName   string `json:"displayName"`
	TotalPoints   int    `json:"totalPoints"`
	Level         Level  `json:"level"`
	CurrentStreak int    `json:"currentStreak"`
}
