package models

import (
	"time"
)

// RewardCategory groups rewards in the catalog.
type RewardCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	CreatedAt time.Time `json:"created_at"`

	Rewards []Reward `gorm:"foreignKey:CategoryID" json:"rewards,omitempty"`
}

// TableName specifies the table name for RewardCategory model.
func (RewardCategory) TableName() string {
	return "reward_categories"
}

// Reward is a catalog item redeemable for karma coins. Code-backed rewards
// carry a finite set of unique one-time codes; quantity-backed rewards are a
// plain counter. For code-backed rewards Quantity must always equal the number
// of remaining Codes rows.
type Reward struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CategoryID  uint      `gorm:"not null;index" json:"category_id"`
	Name        string    `gorm:"not null;size:255" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Cost        int       `gorm:"not null" json:"cost"`
	Quantity    int       `gorm:"not null;default:0" json:"quantity"`
	Origin      string    `gorm:"size:20;not null;default:'custom'" json:"origin"` // 'predefined' or 'custom'
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Codes []RewardCode `gorm:"foreignKey:RewardID" json:"codes,omitempty"`
}

// TableName specifies the table name for Reward model.
func (Reward) TableName() string {
	return "rewards"
}

// Reward origin constants.
const (
	RewardOriginPredefined = "predefined"
	RewardOriginCustom     = "custom"
)

// CodeBacked reports whether the reward is backed by unique one-time codes.
func (r *Reward) CodeBacked() bool {
	return len(r.Codes) > 0
}

// RewardCode is one unissued unique code of a code-backed reward.
// Redemption deletes the row and decrements the reward quantity in the same
// database transaction.
type RewardCode struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	RewardID uint   `gorm:"not null;index" json:"reward_id"`
	Code     string `gorm:"not null;size:255" json:"code"`
}

// TableName specifies the table name for RewardCode model.
func (RewardCode) TableName() string {
	return "reward_codes"
}
