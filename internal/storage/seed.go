package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/types/badge"
	"earlyshhAPI/internal/types/campaign"
)

// DefaultBadges is the fixed badge catalog.
func DefaultBadges() []*badge.Badge {
	return []*badge.Badge{
		{
			Key:         "first_timer",
			Name:        "First Timer",
			Description: "Claim your first free product",
			Icon:        "🎉",
			Requirement: badge.Requirement{Type: badge.RequirementProductsClaimed, Value: 1},
		},
		{
			Key:         "deal_hunter",
			Name:        "Deal Hunter",
			Description: "Claim 5 free products",
			Icon:        "🔎",
			Requirement: badge.Requirement{Type: badge.RequirementProductsClaimed, Value: 5},
		},
		{
			Key:         "free_product_captain",
			Name:        "Free Product Captain",
			Description: "Claim 10 free products",
			Icon:        "🧑‍✈️",
			Requirement: badge.Requirement{Type: badge.RequirementProductsClaimed, Value: 10},
		},
		{
			Key:         "campus_legend",
			Name:        "Campus Legend",
			Description: "Claim 25 free products",
			Icon:        "🏆",
			Requirement: badge.Requirement{Type: badge.RequirementProductsClaimed, Value: 25},
		},
		{
			Key:         "on_fire",
			Name:        "On Fire",
			Description: "Stay active 3 days in a row",
			Icon:        "🔥",
			Requirement: badge.Requirement{Type: badge.RequirementStreakDays, Value: 3},
		},
		{
			Key:         "week_warrior",
			Name:        "Week Warrior",
			Description: "Stay active 7 days in a row",
			Icon:        "⚡",
			Requirement: badge.Requirement{Type: badge.RequirementStreakDays, Value: 7},
		},
		{
			Key:         "storyteller",
			Name:        "Storyteller",
			Description: "Post 3 stories in one month",
			Icon:        "📸",
			Requirement: badge.Requirement{Type: badge.RequirementStoriesPosted, Value: 3, Timeframe: badge.TimeframeMonth},
		},
		{
			Key:         "social_butterfly",
			Name:        "Social Butterfly",
			Description: "Refer 3 friends",
			Icon:        "🦋",
			Requirement: badge.Requirement{Type: badge.RequirementFriendsReferred, Value: 3},
		},
		{
			Key:         "speed_demon",
			Name:        "Speed Demon",
			Description: "Claim a product within an hour of launch",
			Icon:        "🏎️",
			Requirement: badge.Requirement{Type: badge.RequirementQuickClaim, Value: 1},
		},
	}
}

func ptr(f float64) *float64 { return &f }

// FixtureCampaigns returns the launch campaigns relative to now.
func FixtureCampaigns(now time.Time) []*campaign.Campaign {
	day := 24 * time.Hour
	start := now.Add(-7 * day)

	return []*campaign.Campaign{
		{
			BrandName:    "Glow Lab",
			ProductName:  "Hydrating Serum 30ml",
			Title:        "Free Hydrating Serum",
			Description:  "Pick up a full-size hydrating serum at the campus store.",
			OfferText:    "1 free serum per student",
			ProductValue: decimal.RequireFromString("24.99"),
			LegalText:    "Valid once per person while supplies last. Not exchangeable for cash.",
			Category:     "beauty",
			StartDate:    start,
			EndDate:      now.Add(60 * day),
			MaxCoupons:   50,
			PerUserLimit: 1,
			Latitude:     ptr(52.5200),
			Longitude:    ptr(13.4050),
			Address:      "Campus Store, Main Building",
			Status:       campaign.StatusActive,
		},
		{
			BrandName:    "Bean There",
			ProductName:  "Cold Brew 250ml",
			Title:        "Free Cold Brew",
			Description:  "Grab a cold brew on us at any Bean There kiosk.",
			OfferText:    "1 free cold brew",
			ProductValue: decimal.RequireFromString("3.90"),
			LegalText:    "Valid at participating kiosks only. One coupon per person.",
			Category:     "food",
			StartDate:    start,
			EndDate:      now.Add(30 * day),
			MaxCoupons:   200,
			PerUserLimit: 1,
			Latitude:     ptr(52.5163),
			Longitude:    ptr(13.3777),
			Address:      "Kiosk at Library Square",
			Status:       campaign.StatusActive,
		},
		{
			BrandName:    "Volt",
			ProductName:  "Energy Drink Zero",
			Title:        "Free Volt Zero",
			Description:  "Sugar-free energy for your next study session.",
			OfferText:    "1 free can",
			ProductValue: decimal.RequireFromString("2.49"),
			LegalText:    "18+ only. One coupon per person.",
			Category:     "drinks",
			StartDate:    start,
			EndDate:      now.Add(14 * day),
			MaxCoupons:   100,
			PerUserLimit: 1,
			Status:       campaign.StatusActive,
		},
		{
			BrandName:    "Threadline",
			ProductName:  "Campus Tote Bag",
			Title:        "Free Tote Bag",
			Description:  "Limited edition organic cotton tote.",
			OfferText:    "1 free tote",
			ProductValue: decimal.RequireFromString("15.00"),
			LegalText:    "While supplies last.",
			Category:     "fashion",
			StartDate:    now.Add(-30 * day),
			EndDate:      now.Add(-1 * day),
			MaxCoupons:   20,
			PerUserLimit: 1,
			Status:       campaign.StatusEnded,
		},
	}
}

// Seed fills an empty store with the badge catalog and the fixture campaigns.
func Seed(ctx context.Context, s Storage, now time.Time) error {
	badges, err := s.ListBadges(ctx)
	if err != nil {
		return fmt.Errorf("failed to list badges: %w", err)
	}
	if len(badges) == 0 {
		for _, b := range DefaultBadges() {
			if err := s.CreateBadge(ctx, b); err != nil && !errors.Is(err, ErrAlreadyExists) {
				return fmt.Errorf("failed to seed badge %s: %w", b.Key, err)
			}
		}
		log.Printf("Seeded %d badges", len(DefaultBadges()))
	}

	campaigns, err := s.ListCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list campaigns: %w", err)
	}
	if len(campaigns) == 0 {
		fixtures := FixtureCampaigns(now)
		for _, c := range fixtures {
			c.CreatedAt = now
			c.UpdatedAt = now
			if err := s.CreateCampaign(ctx, c); err != nil {
				return fmt.Errorf("failed to seed campaign %s: %w", c.Title, err)
			}
		}
		log.Printf("Seeded %d campaigns", len(fixtures))
	}

	return nil
}
