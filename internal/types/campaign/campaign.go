package campaign

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusEnded:
		return true
	}
	return false
}

type Campaign struct {
	ID           int             `json:"id"`
	BrandName    string          `json:"brandName"`
	BrandLogo    string          `json:"brandLogo,omitempty"`
	ProductName  string          `json:"productName"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	OfferText    string          `json:"offerText"`
	ProductValue decimal.Decimal `json:"productValue"`
	LegalText    string          `json:"legalText"`
	Category     string          `json:"category"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	StartDate    time.Time       `json:"startDate"`
	EndDate      time.Time       `json:"endDate"`
	MaxCoupons   int             `json:"maxCoupons"`
	PerUserLimit int             `json:"perUserLimit"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	Address      string          `json:"address,omitempty"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// IsRunning reports whether the campaign accepts claims at t.
func (c *Campaign) IsRunning(t time.Time) bool {
	return c.Status == StatusActive && !t.Before(c.StartDate) && !t.After(c.EndDate)
}

type CampaignWithAvailability struct {
	Campaign
	ClaimedCount   int      `json:"claimedCount"`
	AvailableCount int      `json:"availableCount"`
	DistanceKm     *float64 `json:"distanceKm,omitempty"`
}

type ListFilter struct {
	Category string
	Lat      *float64
	Lng      *float64
	RadiusKm float64
}

type UpdateStatusRequest struct {
	Status Status `json:"status"`
}
