// Package league computes weekly tier standings and the leaderboard.
package league

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/karmahq/karma-server/internal/cache"
	"github.com/karmahq/karma-server/internal/config"
	prommetrics "github.com/karmahq/karma-server/internal/metrics"
	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/pkg/logger"
)

// standingCacheKey is the per-user cache key for the weekly standing.
const standingCacheKey = "karma:league:standing:%d"

// Standing is a user's position in the weekly league.
type Standing struct {
	UserID         uint   `json:"user_id"`
	WeeklyCoins    int    `json:"weekly_coins"`
	Tier           string `json:"tier"`
	Prize          string `json:"prize,omitempty"`
	ProgressToNext int    `json:"progress_to_next"` // 0-100, 100 in the top tier
	NextTier       string `json:"next_tier,omitempty"`
	WeekStart      string `json:"week_start"`
}

// LeaderboardEntry is one ranked row of the weekly leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	WeeklyCoins int    `json:"weekly_coins"`
	Tier        string `json:"tier"`
}

// Service computes league standings over the transaction log.
type Service struct {
	store *repository.Store
	cache cache.Cache
	cfg   *config.LeaguesConfig
	log   *logger.Logger
	now   func() time.Time
}

// NewService creates a new league service. cache may be nil, in which case
// every standing is recomputed.
func NewService(store *repository.Store, c cache.Cache, cfg *config.LeaguesConfig, log *logger.Logger) *Service {
	return &Service{
		store: store,
		cache: c,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// WeekStart returns the start of the current ranking week: the most recent
// occurrence of the configured weekday at midnight in the configured
// timezone.
func (s *Service) WeekStart() (time.Time, error) {
	day, err := s.cfg.WeekStartDay()
	if err != nil {
		return time.Time{}, err
	}
	loc, err := s.cfg.GetLocation()
	if err != nil {
		return time.Time{}, err
	}

	now := s.now().In(loc)
	offset := (int(now.Weekday()) - int(day) + 7) % 7
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return start.AddDate(0, 0, -offset), nil
}

// GetStanding returns a user's weekly league standing, served from cache when
// a fresh entry exists.
func (s *Service) GetStanding(ctx context.Context, userID uint) (*Standing, error) {
	key := fmt.Sprintf(standingCacheKey, userID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
			var cached Standing
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	standing, err := s.computeStanding(userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(standing); err == nil {
			ttl := time.Duration(s.cfg.CacheTTL) * time.Second
			if err := s.cache.Set(ctx, key, string(raw), ttl); err != nil {
				s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to cache league standing")
			}
		}
	}
	return standing, nil
}

// InvalidateStanding drops a user's cached standing, for callers that just
// changed the user's weekly total.
func (s *Service) InvalidateStanding(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, fmt.Sprintf(standingCacheKey, userID)); err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to invalidate league standing")
	}
}

func (s *Service) computeStanding(userID uint) (*Standing, error) {
	weekStart, err := s.WeekStart()
	if err != nil {
		return nil, err
	}

	coins, err := s.store.Transactions.EarnedSince(userID, weekStart)
	if err != nil {
		return nil, err
	}

	tier, next := s.tierFor(coins)
	standing := &Standing{
		UserID:      userID,
		WeeklyCoins: coins,
		Tier:        tier.Name,
		Prize:       tier.Prize,
		WeekStart:   weekStart.Format(time.RFC3339),
	}
	if next == nil {
		standing.ProgressToNext = 100
	} else {
		standing.NextTier = next.Name
		span := next.MinCoins - tier.MinCoins
		standing.ProgressToNext = (coins - tier.MinCoins) * 100 / span
	}

	prommetrics.ObserveWeeklyScore(tier.Name, coins)
	return standing, nil
}

// tierFor finds the unique tier containing the score and the tier above it,
// nil when the score sits in the open-ended top tier. The ladder is validated
// at startup, so the scan always hits.
func (s *Service) tierFor(coins int) (config.TierConfig, *config.TierConfig) {
	tiers := s.cfg.Tiers
	for i, tier := range tiers {
		if i == len(tiers)-1 || (coins >= tier.MinCoins && coins <= tier.MaxCoins) {
			if i == len(tiers)-1 {
				return tier, nil
			}
			next := tiers[i+1]
			return tier, &next
		}
	}
	// Unreachable with a validated ladder.
	return config.TierConfig{}, nil
}

// GetLeaderboard returns the top users by weekly earned coins, rank-assigned.
// A limit of 0 or less falls back to 10.
//
//nolint:revive // ctx reserved for future context-aware operations
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	weekStart, err := s.WeekStart()
	if err != nil {
		return nil, err
	}

	earnings, err := s.store.Transactions.EarningsSince(weekStart)
	if err != nil {
		return nil, err
	}
	if len(earnings) > limit {
		earnings = earnings[:limit]
	}

	entries := make([]LeaderboardEntry, 0, len(earnings))
	for i, row := range earnings {
		user, err := s.store.Users.GetByID(row.UserID)
		if err != nil {
			return nil, err
		}
		tier, _ := s.tierFor(row.Coins)
		entries = append(entries, LeaderboardEntry{
			Rank:        i + 1,
			UserID:      row.UserID,
			DisplayName: user.DisplayName,
			WeeklyCoins: row.Coins,
			Tier:        tier.Name,
		})
	}
	return entries, nil
}

// NormalizeTiers repairs a tier ladder after a boundary edit: every tier's
// lower bound is pulled to its lower neighbor's upper bound plus one, the
// first tier is anchored at zero, and the last is made open-ended.
func NormalizeTiers(tiers []config.TierConfig) []config.TierConfig {
	if len(tiers) == 0 {
		return tiers
	}
	out := make([]config.TierConfig, len(tiers))
	copy(out, tiers)

	out[0].MinCoins = 0
	for i := 1; i < len(out); i++ {
		out[i].MinCoins = out[i-1].MaxCoins + 1
		if out[i].MaxCoins != -1 && out[i].MaxCoins < out[i].MinCoins {
			out[i].MaxCoins = out[i].MinCoins
		}
	}
	out[len(out)-1].MaxCoins = -1
	return out
}
