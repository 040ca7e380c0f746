// Package rewards provides the reward catalog and the redemption workflow.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	prommetrics "github.com/karmahq/karma-server/internal/metrics"
	"github.com/karmahq/karma-server/internal/models"
	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/internal/service/ledger"
	"github.com/karmahq/karma-server/pkg/logger"
)

// ErrOutOfStock is returned when a reward has no quantity left.
var ErrOutOfStock = errors.New("reward is out of stock")

// ErrInsufficientCoins mirrors the ledger sentinel for callers of this package.
var ErrInsufficientCoins = ledger.ErrInsufficientCoins

// Service handles the reward catalog and redemptions.
type Service struct {
	store *repository.Store
	log   *logger.Logger
}

// NewService creates a new rewards service.
func NewService(store *repository.Store, log *logger.Logger) *Service {
	return &Service{
		store: store,
		log:   log,
	}
}

// Redemption is the result of a successful redemption.
type Redemption struct {
	Reward      *models.Reward      `json:"reward"`
	Code        string              `json:"code,omitempty"`
	Transaction *models.Transaction `json:"transaction"`
	NewBalance  int                 `json:"new_balance"`
}

// Redeem exchanges karma coins for a reward. It fails closed when the user's
// balance does not cover the cost or the reward is out of stock. The stock
// decrement, code pop, coin deduction, and redeemed-code record all commit in
// one database transaction; no partial redemption can survive a failure
// between the steps.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Redeem(ctx context.Context, userID, rewardID uint) (*Redemption, error) {
	var result *Redemption
	category := "unknown"

	err := s.store.InTransaction(func(tx *repository.Store) error {
		// Row lock: concurrent redemptions of the same reward serialize here.
		reward, err := tx.Rewards.GetByIDForUpdate(rewardID)
		if err != nil {
			return err
		}

		if cat, catErr := tx.Rewards.GetCategoryByID(reward.CategoryID); catErr == nil {
			category = cat.Slug
		}

		if reward.Quantity <= 0 {
			return ErrOutOfStock
		}

		codeCount, err := tx.Rewards.CountCodes(reward.ID)
		if err != nil {
			return err
		}

		code := ""
		if codeCount > 0 {
			code, err = tx.Rewards.PopCode(reward.ID)
			if err != nil {
				return fmt.Errorf("failed to pop code for reward %d: %w", reward.ID, err)
			}
		} else {
			// Quantity-backed rewards get a generated voucher reference.
			code = uuid.NewString()
		}

		newQuantity := reward.Quantity - 1
		if err := tx.Rewards.SetQuantity(reward.ID, newQuantity); err != nil {
			return err
		}

		// Invariant: a code-backed reward's quantity tracks its remaining codes.
		if codeCount > 0 && int(codeCount)-1 != newQuantity {
			return fmt.Errorf("reward %d stock skew: %d codes remain but quantity is %d",
				reward.ID, codeCount-1, newQuantity)
		}

		txn, err := ledger.Debit(tx, userID, reward.Cost, fmt.Sprintf("Redeemed reward: %s", reward.Name))
		if err != nil {
			return err
		}

		record := &models.RedeemedCode{
			UserID:     userID,
			RewardID:   reward.ID,
			RewardName: reward.Name,
			Code:       code,
			RedeemedAt: time.Now(),
		}
		if err := tx.Users.CreateRedeemedCode(record); err != nil {
			return err
		}

		user, err := tx.Users.GetByID(userID)
		if err != nil {
			return err
		}

		reward.Quantity = newQuantity
		result = &Redemption{
			Reward:      reward,
			Code:        code,
			Transaction: txn,
			NewBalance:  user.KarmaCoins,
		}
		return nil
	})
	if err != nil {
		prommetrics.RecordRedemption(category, redemptionStatus(err))
		return nil, err
	}

	prommetrics.RecordRedemption(category, "success")
	prommetrics.RecordCoinsSpent(result.Reward.Cost)

	s.log.Info().
		Uint("user_id", userID).
		Uint("reward_id", rewardID).
		Int("cost", result.Reward.Cost).
		Int("remaining", result.Reward.Quantity).
		Msg("Reward redeemed")

	return result, nil
}

// redemptionStatus maps a redemption failure to a metrics label.
func redemptionStatus(err error) string {
	switch {
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ledger.ErrInsufficientCoins):
		return "insufficient_coins"
	default:
		return "error"
	}
}

// GetCatalog retrieves all categories with their rewards.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) GetCatalog(ctx context.Context) ([]models.RewardCategory, error) {
	return s.store.Rewards.ListCategories()
}

// GetReward retrieves a reward by id.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) GetReward(ctx context.Context, rewardID uint) (*models.Reward, error) {
	return s.store.Rewards.GetByID(rewardID)
}

// CreateReward creates a custom reward (admin operation). For a code-backed
// reward the quantity is derived from the code list.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) CreateReward(ctx context.Context, categoryID uint, name, description string, cost, quantity int, codes []string) (*models.Reward, error) {
	if cost <= 0 {
		return nil, fmt.Errorf("reward cost must be positive, got %d", cost)
	}
	if _, err := s.store.Rewards.GetCategoryByID(categoryID); err != nil {
		return nil, err
	}

	reward := &models.Reward{
		CategoryID:  categoryID,
		Name:        name,
		Description: description,
		Cost:        cost,
		Quantity:    quantity,
		Origin:      models.RewardOriginCustom,
	}
	if len(codes) > 0 {
		reward.Quantity = len(codes)
		for _, code := range codes {
			reward.Codes = append(reward.Codes, models.RewardCode{Code: code})
		}
	}

	if err := s.store.Rewards.Create(reward); err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("reward_id", reward.ID).
		Str("name", name).
		Int("quantity", reward.Quantity).
		Bool("code_backed", reward.CodeBacked()).
		Msg("Created reward")

	return reward, nil
}

// UpdateReward edits a reward's descriptive fields and cost (admin
// operation). Stock is never touched here; quantity changes only through
// redemption or code management, keeping the code-count invariant intact.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) UpdateReward(ctx context.Context, rewardID uint, name, description string, cost int) (*models.Reward, error) {
	if cost <= 0 {
		return nil, fmt.Errorf("reward cost must be positive, got %d", cost)
	}
	reward, err := s.store.Rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}

	reward.Name = name
	reward.Description = description
	reward.Cost = cost
	if err := s.store.Rewards.Update(reward); err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("reward_id", rewardID).
		Str("name", name).
		Int("cost", cost).
		Msg("Updated reward")

	return reward, nil
}

// DeleteReward removes a reward (admin operation).
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) DeleteReward(ctx context.Context, rewardID uint) error {
	if _, err := s.store.Rewards.GetByID(rewardID); err != nil {
		return err
	}
	return s.store.Rewards.Delete(rewardID)
}

// CreateCategory creates a reward category (admin operation).
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) CreateCategory(ctx context.Context, name, slug string) (*models.RewardCategory, error) {
	category := &models.RewardCategory{Name: name, Slug: slug}
	if err := s.store.Rewards.CreateCategory(category); err != nil {
		return nil, err
	}
	return category, nil
}
