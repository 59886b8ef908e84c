package repository

import (
	"context"

	"github.com/campusolx/backend/internal/model"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	Create(ctx context.Context, cv *model.Conversation) error
	FindByTriple(ctx context.Context, itemID uint64, buyerID, sellerID string) (*model.Conversation, error)
	FindByID(ctx context.Context, id uint64) (*model.Conversation, error)
	FindByUser(ctx context.Context, userID string) ([]model.Conversation, error)
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, convID uint64) ([]model.Message, error)
	LastMessages(ctx context.Context, convIDs []uint64) (map[uint64]model.Message, error)
	CountMessages(ctx context.Context, convIDs []uint64) (map[uint64]int64, error)
	Delete(ctx context.Context, id uint64) error
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create inserts a conversation. A second insert for the same triple fails
// with gorm.ErrDuplicatedKey.
func (r *conversationRepository) Create(ctx context.Context, cv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(cv).Error
}

func (r *conversationRepository) FindByTriple(ctx context.Context, itemID uint64, buyerID, sellerID string) (*model.Conversation, error) {
	var cv model.Conversation
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND buyer_id = ? AND seller_id = ?", itemID, buyerID, sellerID).
		First(&cv).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint64) (*model.Conversation, error) {
	var cv model.Conversation
	if err := r.db.WithContext(ctx).First(&cv, id).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	var list []model.Conversation
	if err := r.db.WithContext(ctx).
		Where("seller_id = ? OR buyer_id = ?", userID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *conversationRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *conversationRepository) ListMessages(ctx context.Context, convID uint64) ([]model.Message, error) {
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *conversationRepository) LastMessages(ctx context.Context, convIDs []uint64) (map[uint64]model.Message, error) {
	out := make(map[uint64]model.Message, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}
	latest := r.db.Model(&model.Message{}).
		Select("MAX(id)").
		Where("conversation_id IN ?", convIDs).
		Group("conversation_id")
	var msgs []model.Message
	if err := r.db.WithContext(ctx).Where("id IN (?)", latest).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ConversationID] = m
	}
	return out, nil
}

func (r *conversationRepository) CountMessages(ctx context.Context, convIDs []uint64) (map[uint64]int64, error) {
	out := make(map[uint64]int64, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ConversationID uint64
		Count          int64
	}
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("conversation_id, COUNT(*) AS count").
		Where("conversation_id IN ?", convIDs).
		Group("conversation_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ConversationID] = row.Count
	}
	return out, nil
}

// Delete removes a conversation and its messages in one transaction.
func (r *conversationRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Conversation{}, id).Error
	})
}
