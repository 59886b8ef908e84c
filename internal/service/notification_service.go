package service

import (
	"context"

	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/repository"
	"go.uber.org/zap"
)

// Notifier receives moderation notes addressed to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, typ, title, body string, itemID *uint64)
}

type NotificationService interface {
	Notifier
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userID string) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// Notify is best-effort; failures are logged and never reach the caller.
func (s *notificationService) Notify(ctx context.Context, userID, typ, title, body string, itemID *uint64) {
	if userID == "" || typ == "" {
		return
	}
	n := &model.Notification{
		UserID: userID,
		Type:   typ,
		Title:  title,
		Body:   body,
		ItemID: itemID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logger.FromContext(ctx).Warn("notification not stored",
			zap.String("user_id", userID), zap.String("type", typ), zap.Error(err))
	}
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userID)
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}
