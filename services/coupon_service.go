package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/activity"
	"earlyshhAPI/internal/types/analytics"
	"earlyshhAPI/internal/types/campaign"
	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/internal/types/notification"
	"earlyshhAPI/utils"
)

// CouponService owns the claim workflow and the coupon lifecycle
// claimed -> redeemed, with expiry derived from the expiration date.
type CouponService struct {
	store        storage.Storage
	gamification *GamificationService
	analytics    *AnalyticsService
	notifier     Notifier
	qrBaseURL    string
	now          func() time.Time
}

func NewCouponService(store storage.Storage, gamification *GamificationService, analytics *AnalyticsService, notifier Notifier, qrBaseURL string) *CouponService {
	return &CouponService{
		store:        store,
		gamification: gamification,
		analytics:    analytics,
		notifier:     notifier,
		qrBaseURL:    qrBaseURL,
		now:          time.Now,
	}
}

// ValidateCampaignForClaim is a read-only pre-check. The insert re-checks
// the one-per-user and capacity rules atomically.
func (s *CouponService) ValidateCampaignForClaim(ctx context.Context, campaignID, userID int) (*campaign.Campaign, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, notFoundAs(err, ErrCampaignNotFound, "get campaign")
	}

	if _, err := s.store.GetUserCouponForCampaign(ctx, userID, campaignID); err == nil {
		return nil, ErrAlreadyClaimed
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing claim: %w", err)
	}

	issued, err := s.store.CountCouponsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to count coupons: %w", err)
	}
	if issued >= c.MaxCoupons {
		return nil, ErrCapacityExceeded
	}

	if !c.IsRunning(s.now()) {
		return nil, ErrCampaignInactive
	}

	return c, nil
}

// expirationFor is one month after issuance, never past the campaign end.
func expirationFor(c *campaign.Campaign, issuedAt time.Time) time.Time {
	exp := issuedAt.AddDate(0, 1, 0)
	if c.EndDate.Before(exp) {
		return c.EndDate
	}
	return exp
}

func (s *CouponService) ClaimCouponForCampaign(ctx context.Context, campaignID, userID int) (*coupon.ClaimResponse, error) {
	resp, err := s.claim(ctx, campaignID, userID)
	if err != nil {
		couponClaimRejections.WithLabelValues(claimRejectionReason(err)).Inc()
		return nil, err
	}
	couponsClaimed.Inc()
	return resp, nil
}

func (s *CouponService) claim(ctx context.Context, campaignID, userID int) (*coupon.ClaimResponse, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "get user")
	}

	c, err := s.ValidateCampaignForClaim(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	code := utils.GenerateCouponCode()
	cp := &coupon.Coupon{
		CampaignID:     campaignID,
		UserID:         userID,
		Code:           code,
		QRPayload:      utils.BuildQRPayload(s.qrBaseURL, code),
		FetchCode:      utils.GenerateFetchCode(),
		Status:         coupon.StatusClaimed,
		ClaimedAt:      now,
		ExpirationDate: expirationFor(c, now),
	}

	switch err := s.store.CreateCouponIfAvailable(ctx, cp); {
	case err == nil:
	case errors.Is(err, storage.ErrAlreadyClaimed):
		return nil, ErrAlreadyClaimed
	case errors.Is(err, storage.ErrCapacityExceeded):
		return nil, ErrCapacityExceeded
	case errors.Is(err, storage.ErrCampaignInactive):
		return nil, ErrCampaignInactive
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrCampaignNotFound
	default:
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	log.WithFields(log.Fields{
		"campaign_id": campaignID,
		"user_id":     userID,
		"coupon_id":   cp.ID,
	}).Info("Coupon claimed")

	// The coupon is committed; side effects only log on failure.
	s.recordEvent(ctx, campaignID, userID, analytics.EventClaim)

	if s.gamification != nil {
		claimTime := int64(now.Sub(c.StartDate).Seconds())
		if _, err := s.gamification.TrackActivity(ctx, userID, activity.TypeCouponClaimed, map[string]any{
			"campaignId": campaignID,
			"couponId":   cp.ID,
			"claimTime":  claimTime,
			"savings":    c.ProductValue.String(),
		}); err != nil {
			log.Printf("Failed to track claim for user %d: %v", userID, err)
		}
	}

	s.notify(ctx, &notification.CreateNotificationRequest{
		UserID:  userID,
		Type:    notification.TypeCouponClaimed,
		Title:   "Coupon claimed!",
		Message: fmt.Sprintf("Your free %s from %s is waiting. Show the QR code in store.", c.ProductName, c.BrandName),
		Data:    map[string]any{"couponId": cp.ID, "campaignId": campaignID},
	})

	return &coupon.ClaimResponse{
		Coupon:         cp,
		Code:           cp.Code,
		QRPayload:      cp.QRPayload,
		FetchCode:      cp.FetchCode,
		ExpirationDate: cp.ExpirationDate,
		LegalText:      c.LegalText,
		Message:        "Coupon claimed successfully",
	}, nil
}

// RedeemCoupon redeems the caller's own coupon.
func (s *CouponService) RedeemCoupon(ctx context.Context, couponID, userID int) (*coupon.Coupon, error) {
	cp, err := s.store.GetCoupon(ctx, couponID)
	if err != nil {
		return nil, notFoundAs(err, ErrCouponNotFound, "get coupon")
	}
	if cp.UserID != userID {
		return nil, ErrForbidden
	}
	return s.redeem(ctx, cp.ID)
}

// RedeemByFetchCode is the in-store fallback when the QR code cannot be
// scanned. Only the holder or staff may redeem.
func (s *CouponService) RedeemByFetchCode(ctx context.Context, fetchCode string, userID int, staff bool) (*coupon.Coupon, error) {
	normalized, ok := utils.NormalizeFetchCode(fetchCode)
	if !ok {
		return nil, validationError("fetch code must be 16 digits")
	}

	cp, err := s.store.GetCouponByFetchCode(ctx, normalized)
	if err != nil {
		return nil, notFoundAs(err, ErrCouponNotFound, "get coupon")
	}
	if cp.UserID != userID && !staff {
		return nil, ErrForbidden
	}
	return s.redeem(ctx, cp.ID)
}

// redeem relies on the storage transition so a coupon is redeemed once even
// when several instances race for it.
func (s *CouponService) redeem(ctx context.Context, couponID int) (*coupon.Coupon, error) {
	cp, err := s.store.RedeemCouponIfClaimed(ctx, couponID, s.now())
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrAlreadyRedeemed):
		return nil, ErrAlreadyRedeemed
	case errors.Is(err, storage.ErrCouponExpired):
		return nil, ErrCouponExpired
	default:
		return nil, notFoundAs(err, ErrCouponNotFound, "redeem coupon")
	}
	couponsRedeemed.Inc()

	log.WithFields(log.Fields{"coupon_id": cp.ID, "user_id": cp.UserID}).Info("Coupon redeemed")

	s.recordEvent(ctx, cp.CampaignID, cp.UserID, analytics.EventRedeem)

	if s.gamification != nil {
		if _, err := s.gamification.TrackActivity(ctx, cp.UserID, activity.TypeCouponRedeemed, map[string]any{
			"couponId":   cp.ID,
			"campaignId": cp.CampaignID,
		}); err != nil {
			log.Printf("Failed to track redemption for user %d: %v", cp.UserID, err)
		}
	}

	s.notify(ctx, &notification.CreateNotificationRequest{
		UserID:  cp.UserID,
		Type:    notification.TypeCouponRedeemed,
		Title:   "Enjoy your free product!",
		Message: "Your coupon was redeemed. Share a story to earn bonus points.",
		Data:    map[string]any{"couponId": cp.ID, "campaignId": cp.CampaignID},
	})

	return cp, nil
}

func (s *CouponService) withCampaign(ctx context.Context, cp *coupon.Coupon) (*coupon.CouponWithCampaign, error) {
	c, err := s.store.GetCampaign(ctx, cp.CampaignID)
	if err != nil {
		return nil, notFoundAs(err, ErrCampaignNotFound, "get campaign")
	}
	return &coupon.CouponWithCampaign{
		Coupon:          *cp,
		EffectiveStatus: cp.EffectiveStatus(s.now()),
		Campaign:        c,
	}, nil
}

// GetCouponByCode resolves a scanned code for the in-store scanner.
func (s *CouponService) GetCouponByCode(ctx context.Context, code string) (*coupon.ScanResult, error) {
	cp, err := s.store.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, notFoundAs(err, ErrCouponNotFound, "get coupon")
	}
	c, err := s.store.GetCampaign(ctx, cp.CampaignID)
	if err != nil {
		return nil, notFoundAs(err, ErrCampaignNotFound, "get campaign")
	}
	return &coupon.ScanResult{
		ID:             cp.ID,
		CampaignID:     cp.CampaignID,
		Code:           cp.Code,
		Status:         cp.EffectiveStatus(s.now()),
		ClaimedAt:      cp.ClaimedAt,
		ExpirationDate: cp.ExpirationDate,
		RedeemedAt:     cp.RedeemedAt,
		BrandName:      c.BrandName,
		ProductName:    c.ProductName,
		Title:          c.Title,
	}, nil
}

func (s *CouponService) ListUserCoupons(ctx context.Context, userID int) ([]*coupon.CouponWithCampaign, error) {
	coupons, err := s.store.ListCouponsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	out := make([]*coupon.CouponWithCampaign, 0, len(coupons))
	for _, cp := range coupons {
		withCamp, err := s.withCampaign(ctx, cp)
		if err != nil {
			return nil, err
		}
		out = append(out, withCamp)
	}
	return out, nil
}

func (s *CouponService) GetCouponQRCode(ctx context.Context, couponID, userID int) (*coupon.QRCodeResponse, error) {
	cp, err := s.store.GetCoupon(ctx, couponID)
	if err != nil {
		return nil, notFoundAs(err, ErrCouponNotFound, "get coupon")
	}
	if cp.UserID != userID {
		return nil, ErrForbidden
	}

	image, err := utils.EncodeQRCodePNG(cp.QRPayload)
	if err != nil {
		return nil, err
	}

	return &coupon.QRCodeResponse{
		CouponID:     cp.ID,
		QRPayload:    cp.QRPayload,
		QrCodeBase64: image,
	}, nil
}

func (s *CouponService) recordEvent(ctx context.Context, campaignID, userID int, eventType analytics.EventType) {
	if s.analytics == nil {
		return
	}
	if err := s.analytics.Record(ctx, campaignID, &userID, eventType); err != nil {
		log.Printf("Failed to record %s for campaign %d: %v", eventType, campaignID, err)
	}
}

func (s *CouponService) notify(ctx context.Context, req *notification.CreateNotificationRequest) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.CreateNotification(ctx, req); err != nil {
		log.Printf("Failed to create %s notification for user %d: %v", req.Type, req.UserID, err)
	}
}
