package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/types/notification"
)

type NotificationService struct {
	store      storage.NotificationStore
	dispatcher *NotificationDispatcher
	now        func() time.Time
}

func NewNotificationService(store storage.NotificationStore) *NotificationService {
	return &NotificationService{
		store: store,
		now:   time.Now,
	}
}

// SetDispatcher enables live and push delivery. Without one notifications are only stored.
func (s *NotificationService) SetDispatcher(d *NotificationDispatcher) {
	s.dispatcher = d
}

func (s *NotificationService) CreateNotification(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error) {
	if req.UserID == 0 || req.Title == "" {
		return nil, validationError("notification needs a user and a title")
	}

	notif := &notification.Notification{
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Data:      req.Data,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateNotification(ctx, notif); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchNotification(notif)
	}
	return notif, nil
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	notifications, total, err := s.store.ListNotificationsByUser(ctx, userID, unreadOnly, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	unread, err := s.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread count: %w", err)
	}

	return &notification.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
		TotalCount:    total,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID int) (int, error) {
	count, err := s.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	return count, nil
}

func (s *NotificationService) ownedNotification(ctx context.Context, notificationID, userID int) (*notification.Notification, error) {
	notif, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, notFoundAs(err, ErrNotificationNotFound, "get notification")
	}
	// Someone else's notification is reported as missing.
	if notif.UserID != userID {
		return nil, ErrNotificationNotFound
	}
	return notif, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID int) error {
	notif, err := s.ownedNotification(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if notif.IsRead {
		return nil
	}

	notif.IsRead = true
	if err := s.store.UpdateNotification(ctx, notif); err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID int) (int, error) {
	count, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all as read: %w", err)
	}
	return count, nil
}

func (s *NotificationService) DeleteNotification(ctx context.Context, notificationID, userID int) error {
	if _, err := s.ownedNotification(ctx, notificationID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteNotification(ctx, notificationID); err != nil {
		return notFoundAs(err, ErrNotificationNotFound, "delete notification")
	}
	return nil
}

func (s *NotificationService) RegisterDevice(ctx context.Context, userID int, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationError("device token is required")
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	switch platform {
	case "", "android", "ios", "web":
	default:
		return validationError("unsupported platform %q", platform)
	}

	now := s.now()
	err := s.store.UpsertDeviceToken(ctx, &notification.DeviceToken{
		UserID:   userID,
		Token:    token,
		Platform: platform,
		AddedAt:  now,
		LastUsed: now,
	})
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	log.Printf("Registered %s device for user %d", platform, userID)
	return nil
}
