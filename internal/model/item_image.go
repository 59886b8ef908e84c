package model

import "time"

type ItemImage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ItemID    uint64    `gorm:"column:item_id;not null;index:idx_item_images_item_id"`
	Position  int       `gorm:"column:position;not null;default:0"`
	ImageURL  string    `gorm:"column:image_url;size:512;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ItemImage) TableName() string {
	return "item_images"
}
