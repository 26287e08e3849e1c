package services

import "github.com/prometheus/client_golang/prometheus"

var (
	couponsClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coupons_claimed_total",
			Help: "Total number of coupons issued",
		},
	)
	couponClaimRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_claim_rejections_total",
			Help: "Claims rejected by the claim workflow",
		},
		[]string{"reason"},
	)
	couponsRedeemed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coupons_redeemed_total",
			Help: "Total number of coupons redeemed in store",
		},
	)
	badgesAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badges_awarded_total",
			Help: "Badges awarded by the gamification engine",
		},
		[]string{"badge"},
	)
	notificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_dispatch_dropped_total",
			Help: "Notifications not delivered live because the dispatch queue was full",
		},
	)
)

// Collectors lists the domain metrics so main can register them next to the HTTP ones.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		couponsClaimed,
		couponClaimRejections,
		couponsRedeemed,
		badgesAwarded,
		notificationsDropped,
	}
}

func claimRejectionReason(err error) string {
	switch err {
	case ErrAlreadyClaimed:
		return "already_claimed"
	case ErrCapacityExceeded:
		return "capacity_exceeded"
	case ErrCampaignInactive:
		return "inactive"
	case ErrCampaignNotFound:
		return "not_found"
	}
	return "other"
}
