package repository

import (
	"context"
	"strings"

	"github.com/campusolx/backend/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemFilter narrows List. Zero values mean no constraint; Limit 0 returns every match.
type ItemFilter struct {
	Status   model.ItemStatus
	Category string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Limit    int
	Offset   int
}

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	FindByID(ctx context.Context, id uint64) (*model.Item, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Item, error)
	List(ctx context.Context, f ItemFilter) ([]model.Item, int64, error)
	ListBySeller(ctx context.Context, sellerID string, status model.ItemStatus) ([]model.Item, error)
	UpdateFields(ctx context.Context, id uint64, fields map[string]any) error
	TransitionStatus(ctx context.Context, id uint64, from, to model.ItemStatus) (bool, error)
	Delete(ctx context.Context, id uint64) error
	Count(ctx context.Context, status model.ItemStatus) (int64, error)
	Recent(ctx context.Context, n int) ([]model.Item, error)
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *itemRepository) FindByID(ctx context.Context, id uint64) (*model.Item, error) {
	var item model.Item
	if err := r.db.WithContext(ctx).
		Preload("Images", orderedImages).
		First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Item, error) {
	out := make(map[uint64]model.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []model.Item
	if err := r.db.WithContext(ctx).
		Preload("Images", orderedImages).
		Where("id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

// likeEscaper makes search text match literally under ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func applyItemFilter(q *gorm.DB, f ItemFilter) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		like := "%" + likeEscaper.Replace(s) + "%"
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", like, like)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	return q
}

func (r *itemRepository) List(ctx context.Context, f ItemFilter) ([]model.Item, int64, error) {
	var (
		items []model.Item
		total int64
	)
	if err := applyItemFilter(r.db.WithContext(ctx).Model(&model.Item{}), f).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := applyItemFilter(r.db.WithContext(ctx), f).
		Preload("Images", orderedImages).
		Order("created_at DESC").
		Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *itemRepository) ListBySeller(ctx context.Context, sellerID string, status model.ItemStatus) ([]model.Item, error) {
	var items []model.Item
	q := r.db.WithContext(ctx).Where("seller_id = ?", sellerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Preload("Images", orderedImages).
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) UpdateFields(ctx context.Context, id uint64, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&model.Item{ID: id}).Updates(fields).Error
}

// TransitionStatus moves an item from one status to another only if it is
// still in from. It reports whether the row was changed.
func (r *itemRepository) TransitionStatus(ctx context.Context, id uint64, from, to model.ItemStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Item{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": r.db.NowFunc()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Delete removes the item together with its images, conversations and messages.
func (r *itemRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convIDs := tx.Model(&model.Conversation{}).Select("id").Where("item_id = ?", id)
		if err := tx.Where("conversation_id IN (?)", convIDs).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&model.Conversation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&model.ItemImage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Item{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *itemRepository) Count(ctx context.Context, status model.ItemStatus) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&model.Item{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *itemRepository) Recent(ctx context.Context, n int) ([]model.Item, error) {
	var items []model.Item
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(n).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
