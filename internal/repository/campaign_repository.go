package repository

import (
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/karmahq/karma-server/internal/models"
)

// CampaignRepository handles campaign and task database operations.
type CampaignRepository struct {
	db *DB
}

// NewCampaignRepository creates a new campaign repository.
func NewCampaignRepository(db *DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a campaign together with its tasks.
func (r *CampaignRepository) Create(campaign *models.Campaign) error {
	if err := r.db.Create(campaign).Error; err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetByID retrieves a campaign by id with tasks preloaded.
func (r *CampaignRepository) GetByID(id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.Preload("Tasks").First(&campaign, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get campaign %d: %w", id, err)
	}
	return &campaign, nil
}

// GetByIDForUpdate retrieves a campaign with a row lock, for use inside an
// approval transaction. Concurrent approvals on the same campaign serialize
// on this lock.
func (r *CampaignRepository) GetByIDForUpdate(id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	query := r.db.DB
	// SQLite is single-writer and rejects SELECT ... FOR UPDATE.
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.First(&campaign, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock campaign %d: %w", id, err)
	}
	return &campaign, nil
}

// List retrieves campaigns, optionally filtered by status.
func (r *CampaignRepository) List(status string) ([]models.Campaign, error) {
	query := r.db.Preload("Tasks").Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var campaigns []models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// Update updates a campaign.
func (r *CampaignRepository) Update(campaign *models.Campaign) error {
	if err := r.db.Save(campaign).Error; err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	return nil
}

// SetProgress updates only the progress and status columns of a campaign.
func (r *CampaignRepository) SetProgress(campaignID uint, progress int, status string) error {
	err := r.db.Model(&models.Campaign{}).Where("id = ?", campaignID).
		Updates(map[string]interface{}{"progress": progress, "status": status}).Error
	if err != nil {
		return fmt.Errorf("failed to set campaign progress: %w", err)
	}
	return nil
}

// GetTask retrieves a task by id.
func (r *CampaignRepository) GetTask(taskID uint) (*models.Task, error) {
	var task models.Task
	if err := r.db.First(&task, taskID).Error; err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}
	return &task, nil
}

// AddTask adds a task to a campaign.
func (r *CampaignRepository) AddTask(task *models.Task) error {
	if err := r.db.Create(task).Error; err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}
	return nil
}
