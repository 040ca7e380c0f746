package models

import (
	"time"
)

// Transaction is a single entry in a user's append-only coin ledger.
// Amounts are always positive; Type gives the direction.
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Reference   string    `gorm:"uniqueIndex;not null;size:64" json:"reference"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Description string    `gorm:"type:text" json:"description"`
	Amount      int       `gorm:"not null" json:"amount"`
	Type        string    `gorm:"size:20;not null;index" json:"type"` // 'earn' or 'spend'
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// Transaction type constants.
const (
	TransactionTypeEarn  = "earn"
	TransactionTypeSpend = "spend"
)

// Signed returns the amount with the direction applied.
func (t *Transaction) Signed() int {
	if t.Type == TransactionTypeSpend {
		return -t.Amount
	}
	return t.Amount
}
