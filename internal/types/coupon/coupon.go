package coupon

import (
	"time"

	"earlyshhAPI/internal/types/campaign"
)

type Status string

const (
	StatusClaimed  Status = "claimed"
	StatusRedeemed Status = "redeemed"
	StatusExpired  Status = "expired"
)

type Coupon struct {
	ID             int        `json:"id"`
	CampaignID     int        `json:"campaignId"`
	UserID         int        `json:"userId"`
	Code           string     `json:"code"`
	QRPayload      string     `json:"qrPayload"`
	FetchCode      string     `json:"fetchCode"`
	Status         Status     `json:"status"`
	ClaimedAt      time.Time  `json:"claimedAt"`
	ExpirationDate time.Time  `json:"expirationDate"`
	RedeemedAt     *time.Time `json:"redeemedAt,omitempty"`
	StoryPosted    bool       `json:"storyPosted"`
}

// IsExpired only applies to coupons that have not been redeemed.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.Status == StatusClaimed && now.After(c.ExpirationDate)
}

// EffectiveStatus folds the date-derived expiry into the stored status.
func (c *Coupon) EffectiveStatus(now time.Time) Status {
	if c.IsExpired(now) {
		return StatusExpired
	}
	return c.Status
}

type CouponWithCampaign struct {
	Coupon
	EffectiveStatus Status             `json:"effectiveStatus"`
	Campaign        *campaign.Campaign `json:"campaign"`
}

// ScanResult is what the public scanner lookup may show. It leaves out the
// fetch code and QR payload, which are enough to redeem the coupon.
type ScanResult struct {
	ID             int        `json:"id"`
	CampaignID     int        `json:"campaignId"`
	Code           string     `json:"code"`
	Status         Status     `json:"status"`
	ClaimedAt      time.Time  `json:"claimedAt"`
	ExpirationDate time.Time  `json:"expirationDate"`
	RedeemedAt     *time.Time `json:"redeemedAt,omitempty"`
	BrandName      string     `json:"brandName"`
	ProductName    string     `json:"productName"`
	Title          string     `json:"title"`
}

type ClaimRequest struct {
	UserID *int `json:"userId,omitempty"`
}

type ClaimResponse struct {
	Coupon         *Coupon   `json:"coupon"`
	Code           string    `json:"code"`
	QRPayload      string    `json:"qrPayload"`
	FetchCode      string    `json:"fetchCode"`
	ExpirationDate time.Time `json:"expirationDate"`
	LegalText      string    `json:"legalText"`
	Message        string    `json:"message"`
}

type RedeemByCodeRequest struct {
	FetchCode string `json:"fetchCode"`
}

type QRCodeResponse struct {
	CouponID     int    `json:"couponId"`
	QRPayload    string `json:"qrPayload"`
	QrCodeBase64 string `json:"qrCodeBase64"`
}
