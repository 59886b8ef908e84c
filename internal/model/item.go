package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusApproved ItemStatus = "approved"
	ItemStatusRejected ItemStatus = "rejected"
	ItemStatusSold     ItemStatus = "sold"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPending, ItemStatusApproved, ItemStatusRejected, ItemStatusSold:
		return true
	}
	return false
}

// CanTransitionTo reports whether the listing lifecycle allows from -> to.
// Rejected and sold are terminal.
func (s ItemStatus) CanTransitionTo(to ItemStatus) bool {
	switch s {
	case ItemStatusPending:
		return to == ItemStatusApproved || to == ItemStatusRejected
	case ItemStatusApproved:
		return to == ItemStatusSold
	}
	return false
}

var Categories = []string{"Books", "Electronics", "Furniture", "Clothing", "Sports", "Other"}

func IsValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

type Item struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	SellerID    string          `gorm:"column:seller_id;size:36;not null;index"`
	Title       string          `gorm:"size:100;not null"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Category    string          `gorm:"size:32;not null;index"`
	Status      ItemStatus      `gorm:"size:16;not null;index;default:pending"`
	Images      []ItemImage     `gorm:"foreignKey:ItemID"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime"`
}

func (Item) TableName() string {
	return "items"
}

func (i *Item) ImageURLs() []string {
	urls := make([]string, 0, len(i.Images))
	for _, img := range i.Images {
		urls = append(urls, img.ImageURL)
	}
	return urls
}
