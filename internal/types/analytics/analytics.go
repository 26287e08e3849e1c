package analytics

import "time"

type EventType string

const (
	EventView   EventType = "view"
	EventClaim  EventType = "claim"
	EventRedeem EventType = "redeem"
	EventStory  EventType = "story"
	EventSurvey EventType = "survey"
)

type Event struct {
	ID         int       `json:"id"`
	CampaignID int       `json:"campaignId"`
	UserID     *int      `json:"userId,omitempty"`
	Type       EventType `json:"type"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CampaignAnalytics struct {
	CampaignID       int     `json:"campaignId"`
	Views            int     `json:"views"`
	Claims           int     `json:"claims"`
	Redemptions      int     `json:"redemptions"`
	Stories          int     `json:"stories"`
	Surveys          int     `json:"surveys"`
	TotalImpressions int     `json:"totalImpressions"`
	TotalReach       int     `json:"totalReach"`
	ConversionRate   float64 `json:"conversionRate"`
	AverageRating    float64 `json:"averageRating"`
	RemainingCoupons int     `json:"remainingCoupons"`
}
