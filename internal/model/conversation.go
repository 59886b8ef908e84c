package model

import "time"

// Conversation is identified by (item, buyer, seller); the triple never changes.
type Conversation struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ItemID    uint64    `gorm:"column:item_id;not null;uniqueIndex:idx_conversation_triple"`
	BuyerID   string    `gorm:"column:buyer_id;size:36;not null;uniqueIndex:idx_conversation_triple;index"`
	SellerID  string    `gorm:"column:seller_id;size:36;not null;uniqueIndex:idx_conversation_triple;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.BuyerID == userID || c.SellerID == userID)
}

// OtherParticipant returns the counterpart of userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}
