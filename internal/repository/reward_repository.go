package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/karmahq/karma-server/internal/models"
)

// RewardRepository handles reward catalog database operations.
type RewardRepository struct {
	db *DB
}

// NewRewardRepository creates a new reward repository.
func NewRewardRepository(db *DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// CreateCategory creates a reward category.
func (r *RewardRepository) CreateCategory(category *models.RewardCategory) error {
	if err := r.db.Create(category).Error; err != nil {
		return fmt.Errorf("failed to create reward category: %w", err)
	}
	return nil
}

// GetCategoryByID retrieves a category by id.
func (r *RewardRepository) GetCategoryByID(id uint) (*models.RewardCategory, error) {
	var category models.RewardCategory
	if err := r.db.First(&category, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get category %d: %w", id, err)
	}
	return &category, nil
}

// GetCategoryBySlug retrieves a category by its slug.
func (r *RewardRepository) GetCategoryBySlug(slug string) (*models.RewardCategory, error) {
	var category models.RewardCategory
	if err := r.db.Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, fmt.Errorf("failed to get category %s: %w", slug, err)
	}
	return &category, nil
}

// ListCategories retrieves all categories with their rewards and codes preloaded.
func (r *RewardRepository) ListCategories() ([]models.RewardCategory, error) {
	var categories []models.RewardCategory
	err := r.db.
		Preload("Rewards").
		Preload("Rewards.Codes").
		Order("created_at ASC").
		Find(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reward categories: %w", err)
	}
	return categories, nil
}

// Create creates a reward together with its codes, if any.
func (r *RewardRepository) Create(reward *models.Reward) error {
	if err := r.db.Create(reward).Error; err != nil {
		return fmt.Errorf("failed to create reward: %w", err)
	}
	return nil
}

// GetByID retrieves a reward by id with remaining codes preloaded. Reward ids
// are globally unique across categories, so no category filter is needed.
func (r *RewardRepository) GetByID(id uint) (*models.Reward, error) {
	var reward models.Reward
	if err := r.db.Preload("Codes").First(&reward, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get reward %d: %w", id, err)
	}
	return &reward, nil
}

// GetByIDForUpdate retrieves a reward with a row lock, for use inside a
// redemption transaction. Concurrent redemptions of the same reward serialize
// on this lock.
func (r *RewardRepository) GetByIDForUpdate(id uint) (*models.Reward, error) {
	var reward models.Reward
	query := r.db.DB
	// SQLite is single-writer and rejects SELECT ... FOR UPDATE.
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.First(&reward, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock reward %d: %w", id, err)
	}
	return &reward, nil
}

// GetByName retrieves a reward by name.
func (r *RewardRepository) GetByName(name string) (*models.Reward, error) {
	var reward models.Reward
	if err := r.db.Preload("Codes").Where("name = ?", name).First(&reward).Error; err != nil {
		return nil, fmt.Errorf("failed to get reward %q: %w", name, err)
	}
	return &reward, nil
}

// Update updates a reward.
func (r *RewardRepository) Update(reward *models.Reward) error {
	if err := r.db.Save(reward).Error; err != nil {
		return fmt.Errorf("failed to update reward: %w", err)
	}
	return nil
}

// Delete removes a reward and its remaining codes.
func (r *RewardRepository) Delete(id uint) error {
	if err := r.db.Where("reward_id = ?", id).Delete(&models.RewardCode{}).Error; err != nil {
		return fmt.Errorf("failed to delete reward codes: %w", err)
	}
	if err := r.db.Delete(&models.Reward{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete reward %d: %w", id, err)
	}
	return nil
}

// PopCode removes and returns one unissued code of a code-backed reward.
// Returns gorm.ErrRecordNotFound when no codes remain.
func (r *RewardRepository) PopCode(rewardID uint) (string, error) {
	var code models.RewardCode
	err := r.db.Where("reward_id = ?", rewardID).Order("id ASC").First(&code).Error
	if err != nil {
		return "", err
	}
	if err := r.db.Delete(&code).Error; err != nil {
		return "", fmt.Errorf("failed to pop reward code: %w", err)
	}
	return code.Code, nil
}

// CountCodes returns the number of unissued codes of a reward.
func (r *RewardRepository) CountCodes(rewardID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.RewardCode{}).Where("reward_id = ?", rewardID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count reward codes: %w", err)
	}
	return count, nil
}

// SetQuantity updates only the quantity column of a reward.
func (r *RewardRepository) SetQuantity(rewardID uint, quantity int) error {
	err := r.db.Model(&models.Reward{}).Where("id = ?", rewardID).
		Update("quantity", quantity).Error
	if err != nil {
		return fmt.Errorf("failed to set reward quantity: %w", err)
	}
	return nil
}

// IsNotFound reports whether an error is a missing-record lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
