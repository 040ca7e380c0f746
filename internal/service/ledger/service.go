// Package ledger maintains per-user coin balances and the append-only
// transaction log behind them.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/karmahq/karma-server/internal/config"
	"github.com/karmahq/karma-server/internal/models"
	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/pkg/logger"
)

// ErrInsufficientCoins is returned when a debit exceeds the user's balance.
var ErrInsufficientCoins = errors.New("insufficient karma coins")

// Service handles user registration and ledger reads. Mutations that must be
// atomic with other entities (redemption, approval) go through Credit/Debit
// inside a transaction-scoped store.
type Service struct {
	store *repository.Store
	admin *config.AdminConfig
	log   *logger.Logger
}

// NewService creates a new ledger service.
func NewService(store *repository.Store, admin *config.AdminConfig, log *logger.Logger) *Service {
	return &Service{
		store: store,
		admin: admin,
		log:   log,
	}
}

// RegisterOrLogin returns the user for an external identifier, creating the
// record on first sight. The admin flag comes from the configured identifier
// list.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) RegisterOrLogin(ctx context.Context, externalID, displayName, email string) (*models.User, error) {
	user, err := s.store.Users.GetByExternalID(externalID)
	if err == nil {
		return user, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	user = &models.User{
		ExternalID:  externalID,
		DisplayName: displayName,
		Email:       email,
		IsAdmin:     s.admin.IsAdminIdentifier(externalID),
	}
	if err := s.store.Users.Create(user); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("external_id", externalID).
		Bool("is_admin", user.IsAdmin).
		Msg("Registered new user")

	return user, nil
}

// GetUser retrieves a user by id.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.store.Users.GetByID(userID)
}

// GetTransactions retrieves a user's transaction log, newest first.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) GetTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	return s.store.Transactions.ListByUser(userID)
}

// GetRedeemedCodes retrieves a user's redeemed codes, newest first.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) GetRedeemedCodes(ctx context.Context, userID uint) ([]models.RedeemedCode, error) {
	return s.store.Users.GetRedeemedCodes(userID)
}

// AddSocialAccount links a social handle to a user.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) AddSocialAccount(ctx context.Context, userID uint, platform, handle string) (*models.SocialAccount, error) {
	if _, err := s.store.Users.GetByID(userID); err != nil {
		return nil, err
	}
	account := &models.SocialAccount{
		UserID:   userID,
		Platform: platform,
		Handle:   handle,
	}
	if err := s.store.Users.AddSocialAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// AdjustContribution sets a user's contribution value (admin operation).
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) AdjustContribution(ctx context.Context, userID uint, value float64) (*models.User, error) {
	user, err := s.store.Users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	user.ContributionValue = value
	if err := s.store.Users.Update(user); err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("user_id", userID).
		Float64("contribution_value", value).
		Msg("Adjusted contribution value")

	return user, nil
}

// VerifyBalance recomputes a user's balance from the transaction log and
// reports whether the cached value matches. The balance invariant
// (coins == earned - spent) should hold at all times; a mismatch indicates
// a write applied outside Credit/Debit.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) VerifyBalance(ctx context.Context, userID uint) (cached, recomputed int, err error) {
	user, err := s.store.Users.GetByID(userID)
	if err != nil {
		return 0, 0, err
	}
	recomputed, err = s.store.Transactions.BalanceOf(userID)
	if err != nil {
		return 0, 0, err
	}
	return user.KarmaCoins, recomputed, nil
}

// Credit appends an earn transaction and refreshes the cached balance from
// the log, all within the caller's transaction scope.
func Credit(tx *repository.Store, userID uint, amount int, description string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	txn := &models.Transaction{
		Reference:   uuid.NewString(),
		UserID:      userID,
		Description: description,
		Amount:      amount,
		Type:        models.TransactionTypeEarn,
	}
	if err := tx.Transactions.Append(txn); err != nil {
		return nil, err
	}
	if err := refreshBalance(tx, userID); err != nil {
		return nil, err
	}
	return txn, nil
}

// Debit appends a spend transaction after checking the recomputed balance
// covers it, then refreshes the cached balance. Fails closed with
// ErrInsufficientCoins.
func Debit(tx *repository.Store, userID uint, amount int, description string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	balance, err := tx.Transactions.BalanceOf(userID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientCoins
	}
	txn := &models.Transaction{
		Reference:   uuid.NewString(),
		UserID:      userID,
		Description: description,
		Amount:      amount,
		Type:        models.TransactionTypeSpend,
	}
	if err := tx.Transactions.Append(txn); err != nil {
		return nil, err
	}
	if err := refreshBalance(tx, userID); err != nil {
		return nil, err
	}
	return txn, nil
}

// refreshBalance recomputes the cached coin balance from the log. Both earn
// and spend paths go through here, keeping the cached value authoritative.
func refreshBalance(tx *repository.Store, userID uint) error {
	balance, err := tx.Transactions.BalanceOf(userID)
	if err != nil {
		return err
	}
	user, err := tx.Users.GetByID(userID)
	if err != nil {
		return err
	}
	user.KarmaCoins = balance
	return tx.Users.Update(user)
}
