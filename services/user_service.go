package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/activity"
	"earlyshhAPI/internal/types/coupon"
	"earlyshhAPI/internal/types/user"
)

type UserService struct {
	store        storage.Storage
	sessions     *SessionService
	gamification *GamificationService
	now          func() time.Time
}

func NewUserService(store storage.Storage, sessions *SessionService, gamification *GamificationService) *UserService {
	return &UserService{
		store:        store,
		sessions:     sessions,
		gamification: gamification,
		now:          time.Now,
	}
}

// AuthenticateInstagram upserts the user behind an Instagram identity and
// starts a session. The Instagram handshake itself happens on the client.
func (s *UserService) AuthenticateInstagram(ctx context.Context, req *user.InstagramAuthRequest) (*user.AuthResponse, error) {
	req.InstagramID = strings.TrimSpace(req.InstagramID)
	req.Username = strings.TrimPrefix(strings.TrimSpace(req.Username), "@")
	if req.InstagramID == "" || req.Username == "" {
		return nil, validationError("instagramId and username are required")
	}

	now := s.now()
	isNew := false

	u, err := s.store.GetUserByInstagramID(ctx, req.InstagramID)
	switch {
	case err == nil:
		u, err = s.store.ModifyUser(ctx, u.ID, func(u *user.User) error {
			u.Username = req.Username
			if req.DisplayName != "" {
				u.DisplayName = req.DisplayName
			}
			if req.ProfilePicture != "" {
				u.ProfilePicture = req.ProfilePicture
			}
			if req.ClerkID != nil && *req.ClerkID != "" {
				u.ClerkID = req.ClerkID
			}
			u.UpdatedAt = now
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}

	case errors.Is(err, storage.ErrNotFound):
		displayName := req.DisplayName
		if displayName == "" {
			displayName = req.Username
		}
		u = &user.User{
			InstagramID:    req.InstagramID,
			ClerkID:        req.ClerkID,
			Username:       req.Username,
			DisplayName:    displayName,
			ProfilePicture: req.ProfilePicture,
			TotalSavings:   decimal.Zero,
			Level:          user.LevelNewbie,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.store.CreateUser(ctx, u); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return nil, fmt.Errorf("user %w", ErrAlreadyExists)
			}
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		isNew = true
		log.WithFields(log.Fields{"user_id": u.ID, "username": u.Username}).Info("New user signed up")

	default:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	token, expiresAt, err := s.sessions.Issue(u.ID)
	if err != nil {
		return nil, err
	}

	return &user.AuthResponse{
		User:      u,
		Token:     token,
		ExpiresAt: expiresAt,
		IsNew:     isNew,
	}, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int) (*user.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "get user")
	}
	return u, nil
}

// ResolveClerkUser maps a verified Clerk subject onto a local user.
func (s *UserService) ResolveClerkUser(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := s.store.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "get user by clerk id")
	}
	return u, nil
}

func (s *UserService) GetDashboard(ctx context.Context, userID int) (*user.Dashboard, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	badges, err := s.gamification.GetUserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	recent, err := s.gamification.GetRecentActivity(ctx, userID, 10)
	if err != nil {
		return nil, err
	}

	coupons, err := s.store.ListCouponsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	now := s.now()
	var counts user.CouponCounts
	for _, cp := range coupons {
		switch cp.EffectiveStatus(now) {
		case coupon.StatusClaimed:
			counts.Active++
		case coupon.StatusRedeemed:
			counts.Redeemed++
		case coupon.StatusExpired:
			counts.Expired++
		}
	}

	return &user.Dashboard{
		User:           u,
		LevelProgress:  levelProgress(u),
		Badges:         badges,
		RecentActivity: recent,
		Coupons:        counts,
	}, nil
}

func (s *UserService) GetLeaderboard(ctx context.Context, limit int) ([]*user.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	sort.SliceStable(users, func(i, j int) bool {
		if users[i].TotalPoints != users[j].TotalPoints {
			return users[i].TotalPoints > users[j].TotalPoints
		}
		return users[i].ID < users[j].ID
	})

	if len(users) > limit {
		users = users[:limit]
	}

	entries := make([]*user.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, &user.LeaderboardEntry{
			Rank:          i + 1,
			UserID:        u.ID,
			Username:      u.Username,
			DisplayName:   u.DisplayName,
			TotalPoints:   u.TotalPoints,
			Level:         u.Level,
			CurrentStreak: u.CurrentStreak,
		})
	}
	return entries, nil
}

// RecordReferral credits userID for inviting an Instagram account, once per account.
func (s *UserService) RecordReferral(ctx context.Context, userID int, referredInstagramID string) (*activity.Activity, error) {
	referredInstagramID = strings.TrimSpace(referredInstagramID)
	if referredInstagramID == "" {
		return nil, validationError("referredInstagramId is required")
	}

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.InstagramID == referredInstagramID {
		return nil, validationError("you cannot refer yourself")
	}

	history, err := s.store.ListActivitiesByUser(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	for _, a := range history {
		if a.Type == activity.TypeFriendReferred && a.Metadata["referredInstagramId"] == referredInstagramID {
			return nil, fmt.Errorf("referral %w", ErrAlreadyExists)
		}
	}

	return s.gamification.TrackActivity(ctx, userID, activity.TypeFriendReferred, map[string]any{
		"referredInstagramId": referredInstagramID,
	})
}
