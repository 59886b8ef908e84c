package service

import (
	"context"
	"errors"

	"github.com/campusolx/backend/internal/ai"
	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recentItemsOnDashboard = 5

type Screener interface {
	Screen(ctx context.Context, l ai.Listing) (*ai.Screening, error)
}

type DashboardStats struct {
	PendingItems  int64
	TotalUsers    int64
	VerifiedUsers int64
	TotalItems    int64
	RecentItems   []model.Item
}

type ModerationService interface {
	Stats(ctx context.Context, actor Principal) (*DashboardStats, error)
	Items(ctx context.Context, actor Principal, status model.ItemStatus) ([]model.Item, error)
	Users(ctx context.Context, actor Principal) ([]model.User, error)
	VerifyUser(ctx context.Context, actor Principal, userID string) (*model.User, error)
	PromoteUser(ctx context.Context, actor Principal, userID string) (*model.User, error)
	ScreeningEnabled() bool
	Screen(ctx context.Context, actor Principal, itemID uint64) (*ai.Screening, error)
}

type moderationService struct {
	items    repository.ItemRepository
	users    repository.UserRepository
	screener Screener
}

// NewModerationService builds the admin service. screener may be nil.
func NewModerationService(items repository.ItemRepository, users repository.UserRepository, screener Screener) ModerationService {
	return &moderationService{items: items, users: users, screener: screener}
}

func requireModerator(actor Principal) error {
	if !Authorize(actor, CapabilityModerator) {
		return Forbidden("moderator access required")
	}
	return nil
}

func (s *moderationService) Stats(ctx context.Context, actor Principal) (*DashboardStats, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	var st DashboardStats
	var err error
	if st.PendingItems, err = s.items.Count(ctx, model.ItemStatusPending); err != nil {
		return nil, err
	}
	if st.TotalItems, err = s.items.Count(ctx, ""); err != nil {
		return nil, err
	}
	if st.TotalUsers, st.VerifiedUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if st.RecentItems, err = s.items.Recent(ctx, recentItemsOnDashboard); err != nil {
		return nil, err
	}
	return &st, nil
}

// Items lists items in any status, or only status when it is set.
func (s *moderationService) Items(ctx context.Context, actor Principal, status model.ItemStatus) ([]model.Item, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, Validation("unknown status", FieldError{Field: "status", Message: "Must be one of: pending approved rejected sold"})
	}
	items, _, err := s.items.List(ctx, repository.ItemFilter{Status: status})
	return items, err
}

func (s *moderationService) Users(ctx context.Context, actor Principal) ([]model.User, error) {
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

func (s *moderationService) VerifyUser(ctx context.Context, actor Principal, userID string) (*model.User, error) {
	return s.updateUser(ctx, actor, userID, map[string]any{"verified": true})
}

// PromoteUser grants moderator rights; moderators are always verified.
func (s *moderationService) PromoteUser(ctx context.Context, actor Principal, userID string) (*model.User, error) {
	return s.updateUser(ctx, actor, userID, map[string]any{"moderator": true, "verified": true})
}

func (s *moderationService) updateUser(ctx context.Context, actor Principal, userID string, fields map[string]any) (*model.User, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("user not found")
		}
		return nil, err
	}
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, userID, fields); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("user updated by moderator",
		zap.String("target_user_id", userID), zap.Any("fields", fields))
	return s.users.FindByID(ctx, userID)
}

func (s *moderationService) ScreeningEnabled() bool {
	return s.screener != nil
}

func (s *moderationService) Screen(ctx context.Context, actor Principal, itemID uint64) (*ai.Screening, error) {
	if s.screener == nil {
		return nil, NotFound("screening is not enabled")
	}
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("item not found")
		}
		return nil, err
	}
	if err := requireModerator(actor); err != nil {
		return nil, err
	}
	return s.screener.Screen(ctx, ai.Listing{
		Title:       item.Title,
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price.StringFixed(2),
		ImageCount:  len(item.Images),
	})
}
