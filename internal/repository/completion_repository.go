package repository

import (
	"fmt"
	"time"

	"github.com/karmahq/karma-server/internal/models"
)

// CompletionRepository handles task completion database operations.
type CompletionRepository struct {
	db *DB
}

// NewCompletionRepository creates a new completion repository.
func NewCompletionRepository(db *DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Create creates a task completion record.
func (r *CompletionRepository) Create(completion *models.TaskCompletion) error {
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now()
	}
	if err := r.db.Create(completion).Error; err != nil {
		return fmt.Errorf("failed to create completion: %w", err)
	}
	return nil
}

// GetByID retrieves a completion by id.
func (r *CompletionRepository) GetByID(id uint) (*models.TaskCompletion, error) {
	var completion models.TaskCompletion
	if err := r.db.First(&completion, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get completion %d: %w", id, err)
	}
	return &completion, nil
}

// Update updates a completion record.
func (r *CompletionRepository) Update(completion *models.TaskCompletion) error {
	if err := r.db.Save(completion).Error; err != nil {
		return fmt.Errorf("failed to update completion: %w", err)
	}
	return nil
}

// ListByCampaign retrieves completions for a campaign, optionally filtered
// by status, oldest first.
func (r *CompletionRepository) ListByCampaign(campaignID uint, status string) ([]models.TaskCompletion, error) {
	query := r.db.Where("campaign_id = ?", campaignID).Order("completed_at ASC, id ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var completions []models.TaskCompletion
	if err := query.Find(&completions).Error; err != nil {
		return nil, fmt.Errorf("failed to list completions for campaign %d: %w", campaignID, err)
	}
	return completions, nil
}

// ListByUser retrieves a user's completions, newest first.
func (r *CompletionRepository) ListByUser(userID uint) ([]models.TaskCompletion, error) {
	var completions []models.TaskCompletion
	err := r.db.Where("user_id = ?", userID).Order("completed_at DESC, id DESC").Find(&completions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completions for user %d: %w", userID, err)
	}
	return completions, nil
}

// ListPending retrieves all completions awaiting admin review, oldest first.
func (r *CompletionRepository) ListPending() ([]models.TaskCompletion, error) {
	var completions []models.TaskCompletion
	err := r.db.Where("status = ?", models.CompletionStatusPending).
		Preload("User").
		Preload("Campaign").
		Order("completed_at ASC").
		Find(&completions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending completions: %w", err)
	}
	return completions, nil
}

// CountPending returns the number of completions awaiting review.
func (r *CompletionRepository) CountPending() (int64, error) {
	var count int64
	err := r.db.Model(&models.TaskCompletion{}).
		Where("status = ?", models.CompletionStatusPending).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending completions: %w", err)
	}
	return count, nil
}

// HasApprovedCompletion reports whether a user already has an approved
// completion of a task.
func (r *CompletionRepository) HasApprovedCompletion(userID, taskID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.TaskCompletion{}).
		Where("user_id = ? AND task_id = ? AND status = ?", userID, taskID, models.CompletionStatusApproved).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check completion of task %d: %w", taskID, err)
	}
	return count > 0, nil
}

// ListAll retrieves every completion record. Used by backup export.
func (r *CompletionRepository) ListAll() ([]models.TaskCompletion, error) {
	var completions []models.TaskCompletion
	if err := r.db.Order("id ASC").Find(&completions).Error; err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	return completions, nil
}
