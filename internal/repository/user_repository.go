package repository

import (
	"fmt"
	"time"

	"github.com/karmahq/karma-server/internal/models"
)

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user.
func (r *UserRepository) Create(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by id %d: %w", id, err)
	}
	return &user, nil
}

// GetByExternalID retrieves a user by their external identifier string.
func (r *UserRepository) GetByExternalID(externalID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("external_id = ?", externalID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by external_id %s: %w", externalID, err)
	}
	return &user, nil
}

// Update updates a user.
func (r *UserRepository) Update(user *models.User) error {
	if err := r.db.Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// List retrieves all users.
func (r *UserRepository) List() ([]models.User, error) {
	var users []models.User
	if err := r.db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// AddSocialAccount links a social media handle to a user.
func (r *UserRepository) AddSocialAccount(account *models.SocialAccount) error {
	if err := r.db.Create(account).Error; err != nil {
		return fmt.Errorf("failed to add social account: %w", err)
	}
	return nil
}

// GetSocialAccounts retrieves all social accounts of a user.
func (r *UserRepository) GetSocialAccounts(userID uint) ([]models.SocialAccount, error) {
	var accounts []models.SocialAccount
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get social accounts for user %d: %w", userID, err)
	}
	return accounts, nil
}

// CreateRedeemedCode records a code handed out to a user.
func (r *UserRepository) CreateRedeemedCode(record *models.RedeemedCode) error {
	if record.RedeemedAt.IsZero() {
		record.RedeemedAt = time.Now()
	}
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to record redeemed code: %w", err)
	}
	return nil
}

// GetRedeemedCodes retrieves all codes a user has redeemed, newest first.
func (r *UserRepository) GetRedeemedCodes(userID uint) ([]models.RedeemedCode, error) {
	var codes []models.RedeemedCode
	err := r.db.Where("user_id = ?", userID).Order("redeemed_at DESC").Find(&codes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get redeemed codes for user %d: %w", userID, err)
	}
	return codes, nil
}

// DeleteUserData removes a user's ledger rows (transactions, redeemed codes,
// social accounts, completions) ahead of a user-only restore. The user row
// itself is kept and overwritten by the restore.
func (r *UserRepository) DeleteUserData(userID uint) error {
	if err := r.db.Where("user_id = ?", userID).Delete(&models.Transaction{}).Error; err != nil {
		return fmt.Errorf("failed to delete transactions for user %d: %w", userID, err)
	}
	if err := r.db.Where("user_id = ?", userID).Delete(&models.RedeemedCode{}).Error; err != nil {
		return fmt.Errorf("failed to delete redeemed codes for user %d: %w", userID, err)
	}
	if err := r.db.Where("user_id = ?", userID).Delete(&models.SocialAccount{}).Error; err != nil {
		return fmt.Errorf("failed to delete social accounts for user %d: %w", userID, err)
	}
	if err := r.db.Where("user_id = ?", userID).Delete(&models.TaskCompletion{}).Error; err != nil {
		return fmt.Errorf("failed to delete completions for user %d: %w", userID, err)
	}
	return nil
}
