// Package backup exports and restores the dataset as namespace-prefixed JSON.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/pkg/logger"
)

// keyPrefix namespaces every collection key in an export file.
const keyPrefix = "karma:"

// Service produces and consumes backup archives. An archive is one JSON
// object whose keys name collections: "karma:<collection>" for a full export,
// "karma:user:<id>:<collection>" for a user-only export.
type Service struct {
	store *repository.Store
	log   *logger.Logger
}

// NewService creates a new backup service.
func NewService(store *repository.Store, log *logger.Logger) *Service {
	return &Service{
		store: store,
		log:   log,
	}
}

// Export serializes the full dataset.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	ds, err := s.store.Backups.ExportAll()
	if err != nil {
		return nil, err
	}

	archive := map[string]interface{}{
		keyPrefix + "users":             ds.Users,
		keyPrefix + "social_accounts":   ds.SocialAccounts,
		keyPrefix + "transactions":      ds.Transactions,
		keyPrefix + "reward_categories": ds.RewardCategories,
		keyPrefix + "rewards":           ds.Rewards,
		keyPrefix + "reward_codes":      ds.RewardCodes,
		keyPrefix + "redeemed_codes":    ds.RedeemedCodes,
		keyPrefix + "campaigns":         ds.Campaigns,
		keyPrefix + "tasks":             ds.Tasks,
		keyPrefix + "completions":       ds.Completions,
	}

	data, err := json.Marshal(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backup: %w", err)
	}

	s.log.Info().Int("users", len(ds.Users)).Int("bytes", len(data)).Msg("Exported full backup")
	return data, nil
}

// ExportUser serializes one user's snapshot.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) ExportUser(ctx context.Context, userID uint) ([]byte, error) {
	ds, err := s.store.Backups.ExportUser(userID)
	if err != nil {
		return nil, err
	}

	prefix := userKeyPrefix(userID)
	archive := map[string]interface{}{
		prefix + "ledger":         ds.User,
		prefix + "transactions":   ds.Transactions,
		prefix + "completions":    ds.Completions,
		prefix + "redeemed_codes": ds.RedeemedCodes,
	}

	data, err := json.Marshal(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user backup: %w", err)
	}

	s.log.Info().Uint("user_id", userID).Int("bytes", len(data)).Msg("Exported user backup")
	return data, nil
}

// Restore loads an archive. A full archive replaces the entire dataset; a
// user-only archive removes and re-inserts only the rows of the users it
// names.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) Restore(ctx context.Context, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse backup: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("backup archive is empty")
	}

	userIDs := map[uint]bool{}
	for key := range raw {
		if !strings.HasPrefix(key, keyPrefix) {
			return fmt.Errorf("unexpected backup key %q", key)
		}
		if id, ok := parseUserKey(key); ok {
			userIDs[id] = true
		}
	}

	if len(userIDs) > 0 {
		if countUserKeys(raw) != len(raw) {
			return fmt.Errorf("backup mixes full and user-only keys")
		}
		for id := range userIDs {
			if err := s.restoreUser(raw, id); err != nil {
				return err
			}
		}
		return nil
	}

	return s.restoreFull(raw)
}

func (s *Service) restoreFull(raw map[string]json.RawMessage) error {
	ds := &repository.Dataset{}
	for key, dest := range map[string]interface{}{
		"users":             &ds.Users,
		"social_accounts":   &ds.SocialAccounts,
		"transactions":      &ds.Transactions,
		"reward_categories": &ds.RewardCategories,
		"rewards":           &ds.Rewards,
		"reward_codes":      &ds.RewardCodes,
		"redeemed_codes":    &ds.RedeemedCodes,
		"campaigns":         &ds.Campaigns,
		"tasks":             &ds.Tasks,
		"completions":       &ds.Completions,
	} {
		msg, ok := raw[keyPrefix+key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, dest); err != nil {
			return fmt.Errorf("failed to parse backup collection %q: %w", key, err)
		}
	}

	if err := s.store.Backups.ReplaceAll(ds); err != nil {
		return err
	}

	s.log.Info().Int("users", len(ds.Users)).Msg("Restored full backup")
	return nil
}

func (s *Service) restoreUser(raw map[string]json.RawMessage, userID uint) error {
	prefix := userKeyPrefix(userID)
	ds := &repository.UserDataset{}
	for key, dest := range map[string]interface{}{
		"ledger":         &ds.User,
		"transactions":   &ds.Transactions,
		"completions":    &ds.Completions,
		"redeemed_codes": &ds.RedeemedCodes,
	} {
		msg, ok := raw[prefix+key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, dest); err != nil {
			return fmt.Errorf("failed to parse backup collection %q for user %d: %w", key, userID, err)
		}
	}

	if err := s.store.Backups.RestoreUser(ds); err != nil {
		return err
	}

	s.log.Info().Uint("user_id", userID).Msg("Restored user backup")
	return nil
}

func userKeyPrefix(userID uint) string {
	return fmt.Sprintf("%suser:%d:", keyPrefix, userID)
}

// parseUserKey extracts the user id from a "karma:user:<id>:<collection>"
// key. The second return is false for full-export keys.
func parseUserKey(key string) (uint, bool) {
	rest, ok := strings.CutPrefix(key, keyPrefix+"user:")
	if !ok {
		return 0, false
	}
	idPart, _, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func countUserKeys(raw map[string]json.RawMessage) int {
	n := 0
	for key := range raw {
		if _, ok := parseUserKey(key); ok {
			n++
		}
	}
	return n
}
