package story

import "time"

type Story struct {
	ID          int       `json:"id"`
	UserID      int       `json:"userId"`
	CouponID    int       `json:"couponId"`
	CampaignID  int       `json:"campaignId"`
	StoryURL    string    `json:"storyUrl,omitempty"`
	Impressions int       `json:"impressions"`
	Reach       int       `json:"reach"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateStoryRequest struct {
	CouponID    int    `json:"couponId"`
	StoryURL    string `json:"storyUrl"`
	Impressions int    `json:"impressions"`
	Reach       int    `json:"reach"`
}

type UpdateMetricsRequest struct {
	Impressions int `json:"impressions"`
	Reach       int `json:"reach"`
}
