package model

import "time"

type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	ConversationID uint64    `gorm:"column:conversation_id;not null;index"`
	SenderID       string    `gorm:"column:sender_id;size:36;not null;index"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (Message) TableName() string {
	return "messages"
}
