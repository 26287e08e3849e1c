package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/analytics"
	"earlyshhAPI/internal/types/campaign"
	"earlyshhAPI/utils"
)

const defaultRadiusKm = 10.0

type CampaignService struct {
	store     storage.Storage
	analytics *AnalyticsService
	now       func() time.Time
}

func NewCampaignService(store storage.Storage, analytics *AnalyticsService) *CampaignService {
	return &CampaignService{
		store:     store,
		analytics: analytics,
		now:       time.Now,
	}
}

func (s *CampaignService) withAvailability(ctx context.Context, c *campaign.Campaign) (*campaign.CampaignWithAvailability, error) {
	claimed, err := s.store.CountCouponsByCampaign(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count coupons: %w", err)
	}
	return &campaign.CampaignWithAvailability{
		Campaign:       *c,
		ClaimedCount:   claimed,
		AvailableCount: max(c.MaxCoupons-claimed, 0),
	}, nil
}

// ListActiveCampaigns returns the campaigns running right now. A lat/lng pair
// restricts the list to campaigns with a location inside the radius, nearest first.
func (s *CampaignService) ListActiveCampaigns(ctx context.Context, filter campaign.ListFilter) ([]*campaign.CampaignWithAvailability, error) {
	campaigns, err := s.store.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	geo := filter.Lat != nil && filter.Lng != nil
	radius := filter.RadiusKm
	if radius <= 0 {
		radius = defaultRadiusKm
	}

	now := s.now()
	out := []*campaign.CampaignWithAvailability{}
	for _, c := range campaigns {
		if !c.IsRunning(now) {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(c.Category, filter.Category) {
			continue
		}

		var distance *float64
		if geo {
			if c.Latitude == nil || c.Longitude == nil {
				continue
			}
			d := utils.DistanceKm(*filter.Lat, *filter.Lng, *c.Latitude, *c.Longitude)
			if d > radius {
				continue
			}
			distance = &d
		}

		withAvail, err := s.withAvailability(ctx, c)
		if err != nil {
			return nil, err
		}
		withAvail.DistanceKm = distance
		out = append(out, withAvail)
	}

	if geo {
		sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceKm < *out[j].DistanceKm })
	}
	return out, nil
}

// GetCampaign also records a view for the campaign's analytics.
func (s *CampaignService) GetCampaign(ctx context.Context, campaignID int, viewerID *int) (*campaign.CampaignWithAvailability, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, notFoundAs(err, ErrCampaignNotFound, "get campaign")
	}

	if s.analytics != nil {
		if err := s.analytics.Record(ctx, campaignID, viewerID, analytics.EventView); err != nil {
			log.Printf("Failed to record view for campaign %d: %v", campaignID, err)
		}
	}

	return s.withAvailability(ctx, c)
}

func (s *CampaignService) UpdateCampaignStatus(ctx context.Context, campaignID int, status campaign.Status) (*campaign.Campaign, error) {
	if !status.Valid() {
		return nil, validationError("unknown campaign status %q", status)
	}

	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, notFoundAs(err, ErrCampaignNotFound, "get campaign")
	}

	c.Status = status
	c.UpdatedAt = s.now()
	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		return nil, notFoundAs(err, ErrCampaignNotFound, "update campaign")
	}

	log.WithFields(log.Fields{"campaign_id": campaignID, "status": status}).Info("Campaign status updated")
	return c, nil
}
