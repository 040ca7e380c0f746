// Package campaigns manages the campaign lifecycle: brand submissions, admin
// review, and task definition.
package campaigns

import (
	"context"
	"errors"
	"fmt"

	"github.com/karmahq/karma-server/internal/models"
	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/pkg/logger"
)

// ErrInvalidTransition is returned when a campaign status change is not
// allowed from its current state.
var ErrInvalidTransition = errors.New("invalid campaign status transition")

// Service handles campaign lifecycle operations.
type Service struct {
	store *repository.Store
	log   *logger.Logger
}

// NewService creates a new campaigns service.
func NewService(store *repository.Store, log *logger.Logger) *Service {
	return &Service{
		store: store,
		log:   log,
	}
}

// Create registers a new sponsored campaign. Campaigns start pending and
// accept no completions until an admin activates them.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) Create(ctx context.Context, mission, brandName, description string, targetAmount float64) (*models.Campaign, error) {
	if mission == "" {
		return nil, fmt.Errorf("campaign mission is required")
	}
	if targetAmount < 0 {
		return nil, fmt.Errorf("campaign target amount cannot be negative, got %f", targetAmount)
	}

	campaign := &models.Campaign{
		Mission:      mission,
		BrandName:    brandName,
		Description:  description,
		TargetAmount: targetAmount,
		Status:       models.CampaignStatusPending,
	}
	if err := s.store.Campaigns.Create(campaign); err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("campaign_id", campaign.ID).
		Str("brand", brandName).
		Float64("target", targetAmount).
		Msg("Campaign created")

	return campaign, nil
}

// Get retrieves a campaign with its tasks.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) Get(ctx context.Context, campaignID uint) (*models.Campaign, error) {
	return s.store.Campaigns.GetByID(campaignID)
}

// List returns campaigns, optionally filtered by status.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) List(ctx context.Context, status string) ([]models.Campaign, error) {
	return s.store.Campaigns.List(status)
}

// Activate moves a pending campaign to active (admin operation).
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) Activate(ctx context.Context, campaignID uint) (*models.Campaign, error) {
	return s.transition(campaignID, models.CampaignStatusPending, models.CampaignStatusActive)
}

// RejectCampaign moves a pending campaign to rejected (admin operation).
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) RejectCampaign(ctx context.Context, campaignID uint) (*models.Campaign, error) {
	return s.transition(campaignID, models.CampaignStatusPending, models.CampaignStatusRejected)
}

// AddTask attaches a task to a campaign. Tasks can be added until the
// campaign completes.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) AddTask(ctx context.Context, campaignID uint, description, kind string, impactPoints, karmaCoins int) (*models.Task, error) {
	switch kind {
	case models.TaskKindSocial, models.TaskKindCode, models.TaskKindGeneric:
	default:
		return nil, fmt.Errorf("unknown task kind %q", kind)
	}
	if impactPoints < 0 || karmaCoins < 0 {
		return nil, fmt.Errorf("task rewards cannot be negative")
	}

	campaign, err := s.store.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == models.CampaignStatusCompleted || campaign.Status == models.CampaignStatusRejected {
		return nil, ErrInvalidTransition
	}

	task := &models.Task{
		CampaignID:   campaignID,
		Description:  description,
		Kind:         kind,
		ImpactPoints: impactPoints,
		KarmaCoins:   karmaCoins,
	}
	if err := s.store.Campaigns.AddTask(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) transition(campaignID uint, from, to string) (*models.Campaign, error) {
	var campaign *models.Campaign
	err := s.store.InTransaction(func(tx *repository.Store) error {
		var err error
		campaign, err = tx.Campaigns.GetByID(campaignID)
		if err != nil {
			return err
		}
		if campaign.Status != from {
			return ErrInvalidTransition
		}
		campaign.Status = to
		return tx.Campaigns.Update(campaign)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("campaign_id", campaignID).
		Str("status", to).
		Msg("Campaign status changed")

	return campaign, nil
}
