package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/internal/types/notification"
)

type NotificationCreator interface {
	CreateNotification(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error)
}

// CouponExpiryWorker persists the expired status on lapsed coupons and warns
// holders once when a coupon is about to lapse.
type CouponExpiryWorker struct {
	store      storage.Storage
	notifier   NotificationCreator
	remindWith time.Duration
	now        func() time.Time

	mu       sync.Mutex
	reminded map[int]bool
}

func NewCouponExpiryWorker(store storage.Storage, notifier NotificationCreator) *CouponExpiryWorker {
	return &CouponExpiryWorker{
		store:      store,
		notifier:   notifier,
		remindWith: 24 * time.Hour,
		now:        time.Now,
		reminded:   make(map[int]bool),
	}
}

// Start runs a sweep every interval until ctx is cancelled.
func (w *CouponExpiryWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
				if _, _, err := w.Sweep(sweepCtx); err != nil {
					log.Printf("Coupon expiry sweep failed: %v", err)
				}
				cancel()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Sweep returns how many coupons were expired and how many reminders went out.
func (w *CouponExpiryWorker) Sweep(ctx context.Context) (expired int, reminded int, err error) {
	users, err := w.store.ListUsers(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list users: %w", err)
	}

	now := w.now()
	for _, u := range users {
		coupons, err := w.store.ListCouponsByUser(ctx, u.ID)
		if err != nil {
			return expired, reminded, fmt.Errorf("failed to list coupons for user %d: %w", u.ID, err)
		}

		for _, cp := range coupons {
			if cp.Status != coupon.StatusClaimed {
				continue
			}

			if cp.IsExpired(now) {
				changed, err := w.store.ExpireCouponIfLapsed(ctx, cp.ID, now)
				if err != nil {
					log.Printf("Failed to expire coupon %d: %v", cp.ID, err)
					continue
				}
				if changed {
					expired++
				}
				continue
			}

			if cp.ExpirationDate.Sub(now) <= w.remindWith && w.markReminded(cp.ID) {
				if err := w.remind(ctx, cp); err != nil {
					log.Printf("Failed to send expiry reminder for coupon %d: %v", cp.ID, err)
					continue
				}
				reminded++
			}
		}
	}

	if expired > 0 || reminded > 0 {
		log.Printf("Coupon sweep: %d expired, %d reminders", expired, reminded)
	}
	return expired, reminded, nil
}

func (w *CouponExpiryWorker) markReminded(couponID int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reminded[couponID] {
		return false
	}
	w.reminded[couponID] = true
	return true
}

func (w *CouponExpiryWorker) remind(ctx context.Context, cp *coupon.Coupon) error {
	if w.notifier == nil {
		return nil
	}

	title := "Your coupon expires soon"
	if c, err := w.store.GetCampaign(ctx, cp.CampaignID); err == nil {
		title = fmt.Sprintf("Your free %s expires soon", c.ProductName)
	}

	_, err := w.notifier.CreateNotification(ctx, &notification.CreateNotificationRequest{
		UserID:  cp.UserID,
		Type:    notification.TypeCampaignEnding,
		Title:   title,
		Message: fmt.Sprintf("Redeem it before %s.", cp.ExpirationDate.Format("Jan 2, 15:04")),
		Data:    map[string]any{"couponId": cp.ID, "campaignId": cp.CampaignID},
	})
	return err
}
