package model

import "time"

type User struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Email        string    `gorm:"column:email;size:255;not null;uniqueIndex"`
	Name         string    `gorm:"column:name;size:100;not null"`
	University   string    `gorm:"column:university;size:100"`
	PasswordHash string    `gorm:"column:password_hash;size:255" json:"-"`
	Verified     bool      `gorm:"column:verified;not null;default:false"`
	Moderator    bool      `gorm:"column:moderator;not null;default:false"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
