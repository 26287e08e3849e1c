package services

import (
	"errors"
	"fmt"

	"earlyshhAPI/internal/storage"
)

var (
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCouponNotFound       = errors.New("coupon not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrStoryNotFound        = errors.New("story not found")
	ErrNotificationNotFound = errors.New("notification not found")

	ErrAlreadyClaimed   = errors.New("you have already claimed this campaign")
	ErrCapacityExceeded = errors.New("no more coupons available")
	ErrCampaignInactive = errors.New("campaign is not active")
	ErrAlreadyRedeemed  = errors.New("coupon has already been redeemed")
	ErrCouponExpired    = errors.New("coupon has expired")
	ErrAlreadyExists    = errors.New("already exists")

	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrInvalidToken = errors.New("invalid session token")
)

// validationError wraps ErrValidation with a human readable reason.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFoundAs maps storage.ErrNotFound onto a domain sentinel and wraps
// everything else as an internal failure.
func notFoundAs(err error, sentinel error, action string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return sentinel
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
