package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/activity"
	"earlyshhAPI/internal/types/badge"
	"earlyshhAPI/internal/types/notification"
	"earlyshhAPI/internal/types/user"
)

// Notifier is the one method the domain services need from notifications.
type Notifier interface {
	CreateNotification(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error)
}

var activityPoints = map[activity.Type]int{
	activity.TypeCouponClaimed:   10,
	activity.TypeStoryPosted:     15,
	activity.TypeFriendReferred:  30,
	activity.TypeCouponRedeemed:  5,
	activity.TypeSurveyCompleted: 5,
	activity.TypeBadgeEarned:     20,
	activity.TypeLevelUp:         0,
}

const (
	quickClaimWindowSeconds = 3600
	quickClaimBonus         = 5
)

type levelThreshold struct {
	level       user.Level
	minProducts int
}

// Ordered ascending; a user's level is the last threshold they reach.
var levelThresholds = []levelThreshold{
	{user.LevelNewbie, 0},
	{user.LevelExplorer, 3},
	{user.LevelCaptain, 10},
	{user.LevelCampusInfluencer, 25},
}

func LevelFor(totalFreeProducts int) user.Level {
	level := levelThresholds[0].level
	for _, t := range levelThresholds {
		if totalFreeProducts >= t.minProducts {
			level = t.level
		}
	}
	return level
}

func levelRank(l user.Level) int {
	for i, t := range levelThresholds {
		if t.level == l {
			return i
		}
	}
	return 0
}

type GamificationService struct {
	store    storage.Storage
	notifier Notifier
	userLock *keyedMutex
	now      func() time.Time
}

func NewGamificationService(store storage.Storage, notifier Notifier) *GamificationService {
	return &GamificationService{
		store:    store,
		notifier: notifier,
		userLock: newKeyedMutex(),
		now:      time.Now,
	}
}

// TrackActivity records an activity, updates the user's aggregates and then
// awards any badges and level the new totals unlock. Calls for the same user
// are serialised.
func (s *GamificationService) TrackActivity(ctx context.Context, userID int, activityType activity.Type, metadata map[string]any) (*activity.Activity, error) {
	if _, ok := activityPoints[activityType]; !ok {
		return nil, validationError("unknown activity type %q", activityType)
	}

	unlock := s.userLock.Lock(userID)
	defer unlock()

	return s.trackActivityLocked(ctx, userID, activityType, metadata)
}

func (s *GamificationService) trackActivityLocked(ctx context.Context, userID int, activityType activity.Type, metadata map[string]any) (*activity.Activity, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "get user")
	}

	now := s.now()
	act := &activity.Activity{
		UserID:    userID,
		Type:      activityType,
		Points:    pointsFor(activityType, metadata),
		Metadata:  metadata,
		CreatedAt: now,
	}
	if err := s.store.CreateActivity(ctx, act); err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}

	// The counters are folded into the locked row, not a snapshot, so other
	// instances cannot lose updates.
	u, err := s.store.ModifyUser(ctx, userID, func(u *user.User) error {
		applyActivity(u, act, now)
		return nil
	})
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "update user stats")
	}

	if err := s.checkBadges(ctx, u); err != nil {
		return nil, err
	}

	if err := s.checkLevel(ctx, userID); err != nil {
		return nil, err
	}

	return act, nil
}

func pointsFor(activityType activity.Type, metadata map[string]any) int {
	points := activityPoints[activityType]
	if activityType == activity.TypeCouponClaimed {
		if claimTime, ok := numberFrom(metadata["claimTime"]); ok && claimTime <= quickClaimWindowSeconds {
			points += quickClaimBonus
		}
	}
	return points
}

// applyActivity folds one activity into the user's counters and streak.
func applyActivity(u *user.User, act *activity.Activity, now time.Time) {
	u.TotalPoints += act.Points

	switch act.Type {
	case activity.TypeCouponClaimed:
		u.TotalFreeProducts++
		if savings, ok := decimalFrom(act.Metadata["savings"]); ok {
			u.TotalSavings = u.TotalSavings.Add(savings)
		}
	case activity.TypeStoryPosted:
		u.TotalStories++
	case activity.TypeFriendReferred:
		u.TotalReferrals++
	}

	if !act.Type.Synthetic() {
		updateStreak(u, now)
	}
	u.UpdatedAt = now
}

// updateStreak compares calendar days: same day keeps the streak, the next
// day extends it and anything later starts over at 1.
func updateStreak(u *user.User, now time.Time) {
	today := startOfDay(now)

	switch {
	case u.LastActivityDate == nil:
		u.CurrentStreak = 1
	default:
		last := startOfDay(u.LastActivityDate.In(now.Location()))
		days := daysBetween(last, today)
		switch {
		case days <= 0:
			if u.CurrentStreak == 0 {
				u.CurrentStreak = 1
			}
		case days == 1:
			u.CurrentStreak++
		default:
			u.CurrentStreak = 1
		}
	}

	if u.CurrentStreak > u.LongestStreak {
		u.LongestStreak = u.CurrentStreak
	}
	u.LastActivityDate = &now
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days so DST shifts do not skew the result.
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func (s *GamificationService) checkBadges(ctx context.Context, u *user.User) error {
	badges, err := s.store.ListBadges(ctx)
	if err != nil {
		return fmt.Errorf("failed to list badges: %w", err)
	}
	earned, err := s.store.ListUserBadges(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("failed to list user badges: %w", err)
	}

	has := make(map[int]bool, len(earned))
	for _, ub := range earned {
		has[ub.BadgeID] = true
	}

	for _, b := range badges {
		if has[b.ID] {
			continue
		}
		ok, err := s.requirementMet(ctx, u, b.Requirement)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.awardBadge(ctx, u.ID, b); err != nil {
			return err
		}
	}
	return nil
}

func (s *GamificationService) requirementMet(ctx context.Context, u *user.User, req badge.Requirement) (bool, error) {
	switch req.Type {
	case badge.RequirementProductsClaimed:
		return u.TotalFreeProducts >= req.Value, nil
	case badge.RequirementStreakDays:
		return u.CurrentStreak >= req.Value, nil
	case badge.RequirementStoriesPosted:
		if req.Timeframe != badge.TimeframeMonth {
			return false, nil
		}
		n, err := s.store.CountStoriesByUserSince(ctx, u.ID, startOfMonth(s.now()))
		if err != nil {
			return false, fmt.Errorf("failed to count stories: %w", err)
		}
		return n >= req.Value, nil
	case badge.RequirementFriendsReferred:
		// Not supported yet.
		return false, nil
	case badge.RequirementQuickClaim:
		// Quick claims earn bonus points, not this badge.
		return false, nil
	}
	return false, nil
}

func (s *GamificationService) awardBadge(ctx context.Context, userID int, b *badge.Badge) error {
	err := s.store.CreateUserBadge(ctx, &badge.UserBadge{UserID: userID, BadgeID: b.ID, EarnedAt: s.now()})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to award badge %s: %w", b.Key, err)
	}

	badgesAwarded.WithLabelValues(b.Key).Inc()
	log.WithFields(log.Fields{"user_id": userID, "badge": b.Key}).Info("Badge awarded")

	if _, err := s.trackActivityLocked(ctx, userID, activity.TypeBadgeEarned, map[string]any{
		"badgeId":   b.ID,
		"badgeKey":  b.Key,
		"badgeName": b.Name,
	}); err != nil {
		return err
	}

	s.notify(ctx, &notification.CreateNotificationRequest{
		UserID:  userID,
		Type:    notification.TypeBadgeEarned,
		Title:   "New badge unlocked!",
		Message: fmt.Sprintf("%s %s: %s", b.Icon, b.Name, b.Description),
		Data:    map[string]any{"badgeId": b.ID, "badgeKey": b.Key},
	})
	return nil
}

func (s *GamificationService) checkLevel(ctx context.Context, userID int) error {
	var previous, next user.Level
	changed := false

	_, err := s.store.ModifyUser(ctx, userID, func(u *user.User) error {
		previous = u.Level
		next = LevelFor(u.TotalFreeProducts)
		if levelRank(next) <= levelRank(u.Level) {
			return nil
		}
		u.Level = next
		u.UpdatedAt = s.now()
		changed = true
		return nil
	})
	if err != nil {
		return notFoundAs(err, ErrUserNotFound, "update level")
	}
	if !changed {
		return nil
	}

	log.WithFields(log.Fields{"user_id": userID, "from": previous, "to": next}).Info("Level up")

	if _, err := s.trackActivityLocked(ctx, userID, activity.TypeLevelUp, map[string]any{
		"from": string(previous),
		"to":   string(next),
	}); err != nil {
		return err
	}

	s.notify(ctx, &notification.CreateNotificationRequest{
		UserID:  userID,
		Type:    notification.TypeLevelUp,
		Title:   "Level up!",
		Message: fmt.Sprintf("You are now a %s", next),
		Data:    map[string]any{"level": string(next)},
	})
	return nil
}

func (s *GamificationService) notify(ctx context.Context, req *notification.CreateNotificationRequest) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.CreateNotification(ctx, req); err != nil {
		log.Printf("Failed to create %s notification for user %d: %v", req.Type, req.UserID, err)
	}
}

// GetUserBadges returns the whole catalog with the user's earned status.
func (s *GamificationService) GetUserBadges(ctx context.Context, userID int) ([]*badge.BadgeWithStatus, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "get user")
	}

	badges, err := s.store.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	earned, err := s.store.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}

	earnedAt := make(map[int]time.Time, len(earned))
	for _, ub := range earned {
		earnedAt[ub.BadgeID] = ub.EarnedAt
	}

	out := make([]*badge.BadgeWithStatus, 0, len(badges))
	for _, b := range badges {
		status := &badge.BadgeWithStatus{Badge: *b}
		if at, ok := earnedAt[b.ID]; ok {
			status.Earned = true
			status.EarnedAt = &at
		}
		out = append(out, status)
	}
	return out, nil
}

func (s *GamificationService) ListBadges(ctx context.Context) ([]*badge.Badge, error) {
	badges, err := s.store.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	return badges, nil
}

func (s *GamificationService) GetRecentActivity(ctx context.Context, userID int, limit int) ([]*activity.Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	activities, err := s.store.ListActivitiesByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

func (s *GamificationService) GetLevelProgress(ctx context.Context, userID int) (*user.LevelProgress, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "get user")
	}
	return levelProgress(u), nil
}

func levelProgress(u *user.User) *user.LevelProgress {
	progress := &user.LevelProgress{
		CurrentLevel:      LevelFor(u.TotalFreeProducts),
		TotalFreeProducts: u.TotalFreeProducts,
		Progress:          1,
	}

	rank := levelRank(progress.CurrentLevel)
	if rank+1 < len(levelThresholds) {
		current := levelThresholds[rank]
		next := levelThresholds[rank+1]
		progress.NextLevel = &next.level
		progress.ProductsToNext = next.minProducts - u.TotalFreeProducts
		progress.Progress = float64(u.TotalFreeProducts-current.minProducts) / float64(next.minProducts-current.minProducts)
	}
	return progress
}

func numberFrom(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func decimalFrom(v any) (decimal.Decimal, bool) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, true
	case string:
		parsed, err := decimal.NewFromString(d)
		return parsed, err == nil
	case float64:
		return decimal.NewFromFloat(d), true
	case int:
		return decimal.NewFromInt(int64(d)), true
	}
	return decimal.Zero, false
}
