package survey

import "time"

type Survey struct {
	ID             int       `json:"id"`
	UserID         int       `json:"userId"`
	CouponID       int       `json:"couponId"`
	CampaignID     int       `json:"campaignId"`
	Rating         int       `json:"rating"`
	Feedback       string    `json:"feedback,omitempty"`
	WouldRecommend bool      `json:"wouldRecommend"`
	CreatedAt      time.Time `json:"createdAt"`
}

type SubmitSurveyRequest struct {
	CouponID       int    `json:"couponId"`
	Rating         int    `json:"rating"`
	Feedback       string `json:"feedback"`
	WouldRecommend bool   `json:"wouldRecommend"`
}
