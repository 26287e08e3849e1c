package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"earlyshhAPI/internal/types/activity"
	"earlyshhAPI/internal/types/analytics"
	"earlyshhAPI/internal/types/badge"
	"earlyshhAPI/internal/types/campaign"
	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/internal/types/notification"
	"earlyshhAPI/internal/types/story"
	"earlyshhAPI/internal/types/survey"
	"earlyshhAPI/internal/types/user"
)

// MemoryStorage keeps every entity in process memory. State is lost on restart.
// All methods hand out copies so callers never alias stored records.
type MemoryStorage struct {
	mu sync.RWMutex

	users         map[int]*user.User
	campaigns     map[int]*campaign.Campaign
	coupons       map[int]*coupon.Coupon
	stories       map[int]*story.Story
	surveys       map[int]*survey.Survey
	badges        map[int]*badge.Badge
	userBadges    map[int][]*badge.UserBadge
	activities    []*activity.Activity
	notifications map[int]*notification.Notification
	deviceTokens  map[int][]*notification.DeviceToken
	events        []*analytics.Event

	nextUserID         int
	nextCampaignID     int
	nextCouponID       int
	nextStoryID        int
	nextSurveyID       int
	nextBadgeID        int
	nextActivityID     int
	nextNotificationID int
	nextEventID        int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:         make(map[int]*user.User),
		campaigns:     make(map[int]*campaign.Campaign),
		coupons:       make(map[int]*coupon.Coupon),
		stories:       make(map[int]*story.Story),
		surveys:       make(map[int]*survey.Survey),
		badges:        make(map[int]*badge.Badge),
		userBadges:    make(map[int][]*badge.UserBadge),
		notifications: make(map[int]*notification.Notification),
		deviceTokens:  make(map[int][]*notification.DeviceToken),
	}
}

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) Close() {}

// Users

func (m *MemoryStorage) CreateUser(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.InstagramID == u.InstagramID {
			return fmt.Errorf("user with instagram id %s: %w", u.InstagramID, ErrAlreadyExists)
		}
		if u.ClerkID != nil && existing.ClerkID != nil && *existing.ClerkID == *u.ClerkID {
			return fmt.Errorf("user with clerk id %s: %w", *u.ClerkID, ErrAlreadyExists)
		}
	}

	m.nextUserID++
	u.ID = m.nextUserID
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id int) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStorage) GetUserByInstagramID(ctx context.Context, instagramID string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.InstagramID == instagramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user with instagram id %s: %w", instagramID, ErrNotFound)
}

func (m *MemoryStorage) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.ClerkID != nil && *u.ClerkID == clerkID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user with clerk id %s: %w", clerkID, ErrNotFound)
}

func (m *MemoryStorage) ListUsers(ctx context.Context) ([]*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*user.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) ModifyUser(ctx context.Context, id int, fn func(u *user.User) error) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	updated := *current
	if err := fn(&updated); err != nil {
		return nil, err
	}
	updated.ID = id
	m.users[id] = &updated

	out := updated
	return &out, nil
}

// Campaigns

func (m *MemoryStorage) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextCampaignID++
	c.ID = m.nextCampaignID
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *MemoryStorage) GetCampaign(ctx context.Context, id int) (*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %d: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStorage) ListCampaigns(ctx context.Context) ([]*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*campaign.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) UpdateCampaign(ctx context.Context, c *campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.campaigns[c.ID]; !ok {
		return fmt.Errorf("campaign %d: %w", c.ID, ErrNotFound)
	}
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

// Coupons

func (m *MemoryStorage) CreateCouponIfAvailable(ctx context.Context, c *coupon.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	camp, ok := m.campaigns[c.CampaignID]
	if !ok {
		return fmt.Errorf("campaign %d: %w", c.CampaignID, ErrNotFound)
	}
	if !camp.IsRunning(c.ClaimedAt) {
		return ErrCampaignInactive
	}

	issued := 0
	for _, existing := range m.coupons {
		if existing.CampaignID != c.CampaignID {
			continue
		}
		if existing.UserID == c.UserID {
			return ErrAlreadyClaimed
		}
		issued++
	}
	if issued >= camp.MaxCoupons {
		return ErrCapacityExceeded
	}

	m.nextCouponID++
	c.ID = m.nextCouponID
	cp := *c
	m.coupons[c.ID] = &cp
	return nil
}

func (m *MemoryStorage) GetCoupon(ctx context.Context, id int) (*coupon.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.coupons[id]
	if !ok {
		return nil, fmt.Errorf("coupon %d: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStorage) findCoupon(match func(*coupon.Coupon) bool) (*coupon.Coupon, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.coupons {
		if match(c) {
			cp := *c
			return &cp, true
		}
	}
	return nil, false
}

func (m *MemoryStorage) GetCouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	if c, ok := m.findCoupon(func(c *coupon.Coupon) bool { return c.Code == code }); ok {
		return c, nil
	}
	return nil, fmt.Errorf("coupon with code %s: %w", code, ErrNotFound)
}

func (m *MemoryStorage) GetCouponByFetchCode(ctx context.Context, fetchCode string) (*coupon.Coupon, error) {
	if c, ok := m.findCoupon(func(c *coupon.Coupon) bool { return c.FetchCode == fetchCode }); ok {
		return c, nil
	}
	return nil, fmt.Errorf("coupon with fetch code: %w", ErrNotFound)
}

func (m *MemoryStorage) GetUserCouponForCampaign(ctx context.Context, userID, campaignID int) (*coupon.Coupon, error) {
	if c, ok := m.findCoupon(func(c *coupon.Coupon) bool {
		return c.UserID == userID && c.CampaignID == campaignID
	}); ok {
		return c, nil
	}
	return nil, fmt.Errorf("coupon for user %d campaign %d: %w", userID, campaignID, ErrNotFound)
}

func (m *MemoryStorage) ListCouponsByUser(ctx context.Context, userID int) ([]*coupon.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*coupon.Coupon{}
	for _, c := range m.coupons {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStorage) CountCouponsByCampaign(ctx context.Context, campaignID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, c := range m.coupons {
		if c.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) RedeemCouponIfClaimed(ctx context.Context, id int, at time.Time) (*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.coupons[id]
	if !ok {
		return nil, fmt.Errorf("coupon %d: %w", id, ErrNotFound)
	}
	switch c.EffectiveStatus(at) {
	case coupon.StatusRedeemed:
		return nil, ErrAlreadyRedeemed
	case coupon.StatusExpired:
		return nil, ErrCouponExpired
	}

	redeemedAt := at
	c.Status = coupon.StatusRedeemed
	c.RedeemedAt = &redeemedAt
	cp := *c
	return &cp, nil
}

func (m *MemoryStorage) ExpireCouponIfLapsed(ctx context.Context, id int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.coupons[id]
	if !ok {
		return false, fmt.Errorf("coupon %d: %w", id, ErrNotFound)
	}
	if !c.IsExpired(at) {
		return false, nil
	}
	c.Status = coupon.StatusExpired
	return true, nil
}

func (m *MemoryStorage) MarkCouponStoryPosted(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.coupons[id]
	if !ok {
		return fmt.Errorf("coupon %d: %w", id, ErrNotFound)
	}
	c.StoryPosted = true
	return nil
}

// Stories

func (m *MemoryStorage) CreateStory(ctx context.Context, s *story.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextStoryID++
	s.ID = m.nextStoryID
	cp := *s
	m.stories[s.ID] = &cp
	return nil
}

func (m *MemoryStorage) GetStory(ctx context.Context, id int) (*story.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stories[id]
	if !ok {
		return nil, fmt.Errorf("story %d: %w", id, ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStorage) UpdateStory(ctx context.Context, s *story.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stories[s.ID]; !ok {
		return fmt.Errorf("story %d: %w", s.ID, ErrNotFound)
	}
	cp := *s
	m.stories[s.ID] = &cp
	return nil
}

func (m *MemoryStorage) filterStories(match func(*story.Story) bool) []*story.Story {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*story.Story{}
	for _, s := range m.stories {
		if match(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *MemoryStorage) ListStoriesByUser(ctx context.Context, userID int) ([]*story.Story, error) {
	return m.filterStories(func(s *story.Story) bool { return s.UserID == userID }), nil
}

func (m *MemoryStorage) ListStoriesByCampaign(ctx context.Context, campaignID int) ([]*story.Story, error) {
	return m.filterStories(func(s *story.Story) bool { return s.CampaignID == campaignID }), nil
}

func (m *MemoryStorage) CountStoriesByUserSince(ctx context.Context, userID int, since time.Time) (int, error) {
	return len(m.filterStories(func(s *story.Story) bool {
		return s.UserID == userID && !s.CreatedAt.Before(since)
	})), nil
}

// Surveys

func (m *MemoryStorage) CreateSurvey(ctx context.Context, s *survey.Survey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.surveys {
		if existing.CouponID == s.CouponID {
			return fmt.Errorf("survey for coupon %d: %w", s.CouponID, ErrAlreadyExists)
		}
	}

	m.nextSurveyID++
	s.ID = m.nextSurveyID
	cp := *s
	m.surveys[s.ID] = &cp
	return nil
}

func (m *MemoryStorage) ListSurveysByCampaign(ctx context.Context, campaignID int) ([]*survey.Survey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*survey.Survey{}
	for _, s := range m.surveys {
		if s.CampaignID == campaignID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Badges

func (m *MemoryStorage) CreateBadge(ctx context.Context, b *badge.Badge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.badges {
		if existing.Key == b.Key {
			return fmt.Errorf("badge %s: %w", b.Key, ErrAlreadyExists)
		}
	}

	m.nextBadgeID++
	b.ID = m.nextBadgeID
	cp := *b
	m.badges[b.ID] = &cp
	return nil
}

func (m *MemoryStorage) ListBadges(ctx context.Context) ([]*badge.Badge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*badge.Badge, 0, len(m.badges))
	for _, b := range m.badges {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) ListUserBadges(ctx context.Context, userID int) ([]*badge.UserBadge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*badge.UserBadge, 0, len(m.userBadges[userID]))
	for _, ub := range m.userBadges[userID] {
		cp := *ub
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStorage) CreateUserBadge(ctx context.Context, ub *badge.UserBadge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.userBadges[ub.UserID] {
		if existing.BadgeID == ub.BadgeID {
			return fmt.Errorf("badge %d for user %d: %w", ub.BadgeID, ub.UserID, ErrAlreadyExists)
		}
	}
	cp := *ub
	m.userBadges[ub.UserID] = append(m.userBadges[ub.UserID], &cp)
	return nil
}

// Activities

func (m *MemoryStorage) CreateActivity(ctx context.Context, a *activity.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextActivityID++
	a.ID = m.nextActivityID
	cp := *a
	m.activities = append(m.activities, &cp)
	return nil
}

func (m *MemoryStorage) ListActivitiesByUser(ctx context.Context, userID int, limit int) ([]*activity.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*activity.Activity{}
	for i := len(m.activities) - 1; i >= 0; i-- {
		a := m.activities[i]
		if a.UserID != userID {
			continue
		}
		cp := *a
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Notifications

func (m *MemoryStorage) CreateNotification(ctx context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextNotificationID++
	n.ID = m.nextNotificationID
	cp := *n
	m.notifications[n.ID] = &cp
	return nil
}

func (m *MemoryStorage) GetNotification(ctx context.Context, id int) (*notification.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notifications[id]
	if !ok {
		return nil, fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	cp := *n
	return &cp, nil
}

func (m *MemoryStorage) ListNotificationsByUser(ctx context.Context, userID int, unreadOnly bool, limit, offset int) ([]*notification.Notification, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := []*notification.Notification{}
	for _, n := range m.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		cp := *n
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if offset >= total {
		return []*notification.Notification{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func (m *MemoryStorage) CountUnreadNotifications(ctx context.Context, userID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, notif := range m.notifications {
		if notif.UserID == userID && !notif.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) UpdateNotification(ctx context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notifications[n.ID]; !ok {
		return fmt.Errorf("notification %d: %w", n.ID, ErrNotFound)
	}
	cp := *n
	m.notifications[n.ID] = &cp
	return nil
}

func (m *MemoryStorage) MarkAllNotificationsRead(ctx context.Context, userID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (m *MemoryStorage) DeleteNotification(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notifications[id]; !ok {
		return fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	delete(m.notifications, id)
	return nil
}

func (m *MemoryStorage) UpsertDeviceToken(ctx context.Context, t *notification.DeviceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.deviceTokens[t.UserID] {
		if existing.Token == t.Token {
			existing.Platform = t.Platform
			existing.LastUsed = t.LastUsed
			return nil
		}
	}
	cp := *t
	m.deviceTokens[t.UserID] = append(m.deviceTokens[t.UserID], &cp)
	return nil
}

func (m *MemoryStorage) ListDeviceTokens(ctx context.Context, userID int) ([]*notification.DeviceToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*notification.DeviceToken, 0, len(m.deviceTokens[userID]))
	for _, t := range m.deviceTokens[userID] {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// Analytics

func (m *MemoryStorage) CreateAnalyticsEvent(ctx context.Context, e *analytics.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextEventID++
	e.ID = m.nextEventID
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *MemoryStorage) ListAnalyticsEvents(ctx context.Context, campaignID int) ([]*analytics.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*analytics.Event{}
	for _, e := range m.events {
		if e.CampaignID == campaignID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
