package user

import (
	"earlyshhAPI/internal/types/activity"
	"earlyshhAPI/internal/types/badge"
)

type LevelProgress struct {
	CurrentLevel      Level   `json:"currentLevel"`
	NextLevel         *Level  `json:"nextLevel,omitempty"`
	TotalFreeProducts int     `json:"totalFreeProducts"`
	ProductsToNext    int     `json:"productsToNext"`
	Progress          float64 `json:"progress"`
}

type CouponCounts struct {
	Active   int `json:"active"`
	Redeemed int `json:"redeemed"`
	Expired  int `json:"expired"`
}

type Dashboard struct {
	User           *User                    `json:"user"`
	LevelProgress  *LevelProgress           `json:"levelProgress"`
	Badges         []*badge.BadgeWithStatus `json:"badges"`
	RecentActivity []*activity.Activity     `json:"recentActivity"`
	Coupons        CouponCounts             `json:"coupons"`
}
