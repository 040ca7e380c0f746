package repository

import (
	"fmt"
	"time"

	"github.com/karmahq/karma-server/internal/models"
)

// TransactionRepository handles ledger transaction database operations.
// The transaction log is append-only; there are no update or delete paths.
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append adds an entry to a user's transaction log.
func (r *TransactionRepository) Append(txn *models.Transaction) error {
	if err := r.db.Create(txn).Error; err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// ListByUser retrieves a user's transactions, newest first.
func (r *TransactionRepository) ListByUser(userID uint) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %d: %w", userID, err)
	}
	return txns, nil
}

// BalanceOf recomputes a user's coin balance from the full transaction log:
// sum of earn amounts minus sum of spend amounts.
func (r *TransactionRepository) BalanceOf(userID uint) (int, error) {
	var balance *int
	err := r.db.Model(&models.Transaction{}).
		Select("SUM(CASE WHEN type = ? THEN amount ELSE -amount END)", models.TransactionTypeEarn).
		Where("user_id = ?", userID).
		Scan(&balance).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute balance for user %d: %w", userID, err)
	}
	if balance == nil {
		return 0, nil
	}
	return *balance, nil
}

// EarnedSince sums a user's earn transactions created at or after the cutoff.
func (r *TransactionRepository) EarnedSince(userID uint, since time.Time) (int, error) {
	var total *int
	err := r.db.Model(&models.Transaction{}).
		Select("SUM(amount)").
		Where("user_id = ? AND type = ? AND created_at >= ?", userID, models.TransactionTypeEarn, since).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum earnings for user %d: %w", userID, err)
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// UserEarnings is a per-user earn total for a period.
type UserEarnings struct {
	UserID uint
	Coins  int
}

// EarningsSince returns per-user earn totals since the cutoff, highest first.
func (r *TransactionRepository) EarningsSince(since time.Time) ([]UserEarnings, error) {
	var totals []UserEarnings
	err := r.db.Model(&models.Transaction{}).
		Select("user_id, SUM(amount) AS coins").
		Where("type = ? AND created_at >= ?", models.TransactionTypeEarn, since).
		Group("user_id").
		Order("coins DESC").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate earnings: %w", err)
	}
	return totals, nil
}

// ListAll retrieves the entire transaction log. Used by backup export.
func (r *TransactionRepository) ListAll() ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := r.db.Order("id ASC").Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}
