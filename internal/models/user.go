// Package models defines domain models for the karma engagement platform.
package models

import (
	"time"
)

// User represents a platform user with their running ledger balances.
// Users are auto-registered on first login and never deleted.
type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ExternalID        string    `gorm:"column:external_id;uniqueIndex;not null;size:255" json:"external_id"`
	DisplayName       string    `gorm:"size:255" json:"display_name"`
	Email             string    `gorm:"size:255" json:"email"`
	IsAdmin           bool      `gorm:"default:false" json:"is_admin"`
	KarmaCoins        int       `gorm:"default:0" json:"karma_coins"`
	ImpactScore       int       `gorm:"default:0" json:"impact_score"`
	ContributionValue float64   `gorm:"default:0" json:"contribution_value"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Relationships
	SocialAccounts []SocialAccount `gorm:"foreignKey:UserID" json:"social_accounts,omitempty"`
	RedeemedCodes  []RedeemedCode  `gorm:"foreignKey:UserID" json:"redeemed_codes,omitempty"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// SocialAccount links a user to one of their social media handles.
type SocialAccount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Platform  string    `gorm:"size:50;not null" json:"platform"`
	Handle    string    `gorm:"size:255;not null" json:"handle"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for SocialAccount model.
func (SocialAccount) TableName() string {
	return "social_accounts"
}

// RedeemedCode records a reward code handed out to a user.
type RedeemedCode struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RewardID   uint      `gorm:"not null;index" json:"reward_id"`
	RewardName string    `gorm:"size:255" json:"reward_name"`
	Code       string    `gorm:"size:255;not null" json:"code"`
	RedeemedAt time.Time `gorm:"not null" json:"redeemed_at"`
}

// TableName specifies the table name for RedeemedCode model.
func (RedeemedCode) TableName() string {
	return "redeemed_codes"
}
