// Package completions implements the task completion and approval workflow.
package completions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	prommetrics "github.com/karmahq/karma-server/internal/metrics"
	"github.com/karmahq/karma-server/internal/models"
	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/internal/service/ledger"
	"github.com/karmahq/karma-server/pkg/logger"
)

var (
	// ErrAlreadyReviewed is returned when a review targets a completion that
	// has already left the pending state.
	ErrAlreadyReviewed = errors.New("completion already reviewed")

	// ErrAlreadyCompleted is returned when a user re-submits a task they
	// already have an approved completion for.
	ErrAlreadyCompleted = errors.New("task already completed by user")

	// ErrCampaignNotActive is returned when submitting against a campaign
	// that is not accepting completions.
	ErrCampaignNotActive = errors.New("campaign is not active")

	// ErrTaskMismatch is returned when the task does not belong to the
	// campaign named in the submission.
	ErrTaskMismatch = errors.New("task does not belong to campaign")
)

// Notifier announces campaign milestones to an external channel.
type Notifier interface {
	SendCampaignCompleted(mission, brand string, targetAmount float64) error
}

// StandingInvalidator drops a user's cached weekly standing after their coin
// total changed.
type StandingInvalidator interface {
	InvalidateStanding(ctx context.Context, userID uint)
}

// Service handles completion submission and the tri-state review workflow.
type Service struct {
	store     *repository.Store
	notifier  Notifier
	standings StandingInvalidator
	log       *logger.Logger
}

// NewService creates a new completions service. notifier may be nil when no
// webhook is configured; standings may be nil when no cache is configured.
func NewService(store *repository.Store, notifier Notifier, standings StandingInvalidator, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		notifier:  notifier,
		standings: standings,
		log:       log,
	}
}

// Submit records a completion of a task by a user. Social tasks enter the
// pending queue for admin review; code and generic tasks are approved on the
// spot, with all approval side effects applied in the same transaction.
func (s *Service) Submit(ctx context.Context, userID, campaignID, taskID uint, submittedData string) (*models.TaskCompletion, error) {
	var completion *models.TaskCompletion
	var campaignCompleted *models.Campaign
	var taskKind string

	err := s.store.InTransaction(func(tx *repository.Store) error {
		campaign, err := tx.Campaigns.GetByID(campaignID)
		if err != nil {
			return err
		}
		if campaign.Status != models.CampaignStatusActive {
			return ErrCampaignNotActive
		}

		task, err := tx.Campaigns.GetTask(taskID)
		if err != nil {
			return err
		}
		if task.CampaignID != campaignID {
			return ErrTaskMismatch
		}
		taskKind = task.Kind

		done, err := tx.Completions.HasApprovedCompletion(userID, taskID)
		if err != nil {
			return err
		}
		if done {
			return ErrAlreadyCompleted
		}

		completion = &models.TaskCompletion{
			UserID:          userID,
			CampaignID:      campaignID,
			TaskID:          taskID,
			TaskDescription: task.Description,
			SubmittedData:   submittedData,
			ImpactPoints:    task.ImpactPoints,
			KarmaCoins:      task.KarmaCoins,
			Status:          models.CompletionStatusPending,
			CompletedAt:     time.Now(),
		}
		if err := tx.Completions.Create(completion); err != nil {
			return err
		}

		if task.AutoApproved() {
			flipped, err := applyApproval(tx, completion, nil)
			if err != nil {
				return err
			}
			campaignCompleted = flipped
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prommetrics.RecordCompletionSubmitted(taskKind)
	if completion.Status == models.CompletionStatusApproved {
		prommetrics.RecordCompletionReviewed("approved")
		prommetrics.RecordCoinsEarned(completion.KarmaCoins)
		s.invalidateStanding(ctx, userID)
	} else {
		s.refreshPendingGauge()
	}
	s.announceCompleted(campaignCompleted)

	s.log.Info().
		Uint("user_id", userID).
		Uint("task_id", taskID).
		Str("status", completion.Status).
		Msg("Completion submitted")

	return completion, nil
}

// Approve moves a pending completion to approved and applies every reward
// side effect in one transaction. Reviewing a terminal completion fails with
// ErrAlreadyReviewed and changes nothing.
func (s *Service) Approve(ctx context.Context, completionID, reviewerID uint) (*models.TaskCompletion, error) {
	var completion *models.TaskCompletion
	var campaignCompleted *models.Campaign

	err := s.store.InTransaction(func(tx *repository.Store) error {
		var err error
		completion, err = tx.Completions.GetByID(completionID)
		if err != nil {
			return err
		}
		if completion.Terminal() {
			return ErrAlreadyReviewed
		}

		flipped, err := applyApproval(tx, completion, &reviewerID)
		if err != nil {
			return err
		}
		campaignCompleted = flipped
		return nil
	})
	if err != nil {
		return nil, err
	}

	prommetrics.RecordCompletionReviewed("approved")
	prommetrics.RecordCoinsEarned(completion.KarmaCoins)
	s.invalidateStanding(ctx, completion.UserID)
	s.refreshPendingGauge()
	s.announceCompleted(campaignCompleted)

	s.log.Info().
		Uint("completion_id", completionID).
		Uint("reviewer_id", reviewerID).
		Msg("Completion approved")

	return completion, nil
}

// Reject moves a pending completion to rejected. No points, coins, or
// progress change hands.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) Reject(ctx context.Context, completionID, reviewerID uint) (*models.TaskCompletion, error) {
	var completion *models.TaskCompletion

	err := s.store.InTransaction(func(tx *repository.Store) error {
		var err error
		completion, err = tx.Completions.GetByID(completionID)
		if err != nil {
			return err
		}
		if completion.Terminal() {
			return ErrAlreadyReviewed
		}

		now := time.Now()
		completion.Status = models.CompletionStatusRejected
		completion.ReviewedAt = &now
		completion.ReviewedBy = &reviewerID
		return tx.Completions.Update(completion)
	})
	if err != nil {
		return nil, err
	}

	prommetrics.RecordCompletionReviewed("rejected")
	s.refreshPendingGauge()

	s.log.Info().
		Uint("completion_id", completionID).
		Uint("reviewer_id", reviewerID).
		Msg("Completion rejected")

	return completion, nil
}

// ListPending returns the admin review queue, oldest first.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) ListPending(ctx context.Context) ([]models.TaskCompletion, error) {
	return s.store.Completions.ListPending()
}

// ListByUser returns a user's completion history.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) ListByUser(ctx context.Context, userID uint) ([]models.TaskCompletion, error) {
	return s.store.Completions.ListByUser(userID)
}

// GetCompletion retrieves a completion by id.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) GetCompletion(ctx context.Context, completionID uint) (*models.TaskCompletion, error) {
	return s.store.Completions.GetByID(completionID)
}

// applyApproval performs the approval side effects inside the caller's
// transaction: status flip, impact score, coin credit, contribution value,
// and campaign progress. It returns the campaign when the approval pushed it
// to completed, so the caller can announce it after commit.
func applyApproval(tx *repository.Store, completion *models.TaskCompletion, reviewerID *uint) (*models.Campaign, error) {
	now := time.Now()
	completion.Status = models.CompletionStatusApproved
	completion.ReviewedAt = &now
	completion.ReviewedBy = reviewerID
	if err := tx.Completions.Update(completion); err != nil {
		return nil, err
	}

	// Row lock: concurrent approvals on the same campaign serialize here, so
	// the progress read-modify-write below cannot lose an increment.
	campaign, err := tx.Campaigns.GetByIDForUpdate(completion.CampaignID)
	if err != nil {
		return nil, err
	}

	if completion.KarmaCoins > 0 {
		desc := fmt.Sprintf("Completed task: %s", completion.TaskDescription)
		if _, err := ledger.Credit(tx, completion.UserID, completion.KarmaCoins, desc); err != nil {
			return nil, err
		}
	}

	// Credit saved the user with a fresh balance, so reload before touching
	// the other counters.
	user, err := tx.Users.GetByID(completion.UserID)
	if err != nil {
		return nil, err
	}
	user.ImpactScore += completion.ImpactPoints
	user.ContributionValue += float64(completion.ImpactPoints) / 100.0 * campaign.TargetAmount
	if err := tx.Users.Update(user); err != nil {
		return nil, err
	}

	progress := campaign.Progress + completion.ImpactPoints
	if progress > 100 {
		progress = 100
	}
	status := campaign.Status
	var flipped *models.Campaign
	if progress >= 100 && campaign.Status == models.CampaignStatusActive {
		status = models.CampaignStatusCompleted
		campaign.Progress = progress
		campaign.Status = status
		flipped = campaign
	}
	if err := tx.Campaigns.SetProgress(campaign.ID, progress, status); err != nil {
		return nil, err
	}
	prommetrics.SetCampaignProgress(strconv.FormatUint(uint64(campaign.ID), 10), progress)

	return flipped, nil
}

// refreshPendingGauge recounts the review queue so the gauge stays current
// between scheduled digest runs.
func (s *Service) refreshPendingGauge() {
	count, err := s.store.Completions.CountPending()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to count pending completions")
		return
	}
	prommetrics.SetPendingCompletions(int(count))
}

// invalidateStanding drops the earner's cached weekly standing so the next
// league read reflects the freshly credited coins.
func (s *Service) invalidateStanding(ctx context.Context, userID uint) {
	if s.standings == nil {
		return
	}
	s.standings.InvalidateStanding(ctx, userID)
}

// announceCompleted notifies the configured channel about a freshly completed
// campaign. Notification failures are logged, not propagated; the approval
// has already committed.
func (s *Service) announceCompleted(campaign *models.Campaign) {
	if campaign == nil {
		return
	}
	prommetrics.RecordCampaignCompleted()
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendCampaignCompleted(campaign.Mission, campaign.BrandName, campaign.TargetAmount); err != nil {
		s.log.Warn().Err(err).Uint("campaign_id", campaign.ID).Msg("Failed to send campaign completed notification")
	}
}
