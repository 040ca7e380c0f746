// Package scheduler runs the recurring background jobs: the daily pending
// review digest, campaign progress reconciliation, and the weekly league
// results announcement.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/karmahq/karma-server/internal/config"
	prommetrics "github.com/karmahq/karma-server/internal/metrics"
	"github.com/karmahq/karma-server/internal/notifier"
	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/internal/service/league"
	"github.com/karmahq/karma-server/internal/service/progress"
	"github.com/karmahq/karma-server/pkg/logger"
)

// Service handles background job scheduling.
type Service struct {
	config        *config.Config
	store         *repository.Store
	aggregator    *progress.Aggregator
	leagueService *league.Service
	notifier      *notifier.Client
	log           *logger.Logger
	cron          *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.Config,
	store *repository.Store,
	aggregator *progress.Aggregator,
	leagueService *league.Service,
	notifierClient *notifier.Client,
	log *logger.Logger,
) *Service {
	return &Service{
		config:        cfg,
		store:         store,
		aggregator:    aggregator,
		leagueService: leagueService,
		notifier:      notifierClient,
		log:           log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.Scheduler.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Scheduler.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	reminderExpr, err := s.buildReminderExpression()
	if err != nil {
		return fmt.Errorf("failed to build reminder schedule: %w", err)
	}
	if _, err := s.cron.AddFunc(reminderExpr, func() {
		s.runPendingDigest(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register pending digest job: %w", err)
	}

	if s.config.Scheduler.ReconcileTime != "" {
		if _, err := s.cron.AddFunc(s.config.Scheduler.ReconcileTime, func() {
			s.runReconciliation(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register reconciliation job: %w", err)
		}
		s.log.Info().
			Str("schedule", s.config.Scheduler.ReconcileTime).
			Msg("Progress reconciliation job registered")
	}

	leagueExpr, err := s.buildLeagueExpression()
	if err != nil {
		return fmt.Errorf("failed to build league schedule: %w", err)
	}
	if _, err := s.cron.AddFunc(leagueExpr, func() {
		s.runLeagueResults(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register league results job: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("reminder_schedule", reminderExpr).
		Str("league_schedule", leagueExpr).
		Str("timezone", s.config.Scheduler.Timezone).
		Bool("skip_weekends", s.config.Scheduler.SkipWeekends).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildReminderExpression generates the daily digest cron expression from the
// configured HH:MM time.
func (s *Service) buildReminderExpression() (string, error) {
	parts := strings.Split(s.config.Scheduler.ReminderTime, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.Scheduler.ReminderTime)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	if s.config.Scheduler.SkipWeekends {
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// buildLeagueExpression schedules the weekly results announcement for five
// minutes before the ranking week rolls over, so the closing standings are
// the ones announced.
func (s *Service) buildLeagueExpression() (string, error) {
	day, err := s.config.Leagues.WeekStartDay()
	if err != nil {
		return "", err
	}
	lastDay := (int(day) + 6) % 7
	return fmt.Sprintf("55 23 * * %d", lastDay), nil
}

// runPendingDigest posts the daily digest of completions awaiting review.
func (s *Service) runPendingDigest(_ context.Context) {
	start := time.Now()
	defer prommetrics.SetSchedulerLastRun()

	s.log.Info().Msg("Running pending review digest job")

	completions, err := s.store.Completions.ListPending()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list pending completions")
		prommetrics.RecordSchedulerJobRun("pending_digest", "error")
		return
	}

	prommetrics.SetPendingCompletions(len(completions))

	pending := buildPendingDigest(completions)
	if len(pending) == 0 {
		s.log.Debug().Msg("No pending completions to notify about")
		prommetrics.RecordSchedulerJobRun("pending_digest", "success")
		return
	}

	if err := s.notifier.SendPendingReviewDigest(pending); err != nil {
		s.log.Error().Err(err).Msg("Failed to send pending review digest")
		prommetrics.RecordSchedulerJobRun("pending_digest", "error")
		return
	}

	prommetrics.RecordSchedulerJobRun("pending_digest", "success")
	s.log.Info().
		Int("count", len(pending)).
		Dur("duration", time.Since(start)).
		Msg("Sent pending review digest")
}

// runReconciliation repairs drifted campaign progress counters.
func (s *Service) runReconciliation(ctx context.Context) {
	start := time.Now()
	defer prommetrics.SetSchedulerLastRun()

	s.log.Info().Msg("Running progress reconciliation job")

	repaired, err := s.aggregator.Reconcile(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Progress reconciliation failed")
		prommetrics.RecordSchedulerJobRun("reconcile", "error")
		return
	}

	prommetrics.RecordSchedulerJobRun("reconcile", "success")
	s.log.Info().
		Int("repaired", repaired).
		Dur("duration", time.Since(start)).
		Msg("Progress reconciliation completed")
}

// runLeagueResults announces the closing weekly standings.
func (s *Service) runLeagueResults(ctx context.Context) {
	start := time.Now()
	defer prommetrics.SetSchedulerLastRun()

	s.log.Info().Msg("Running weekly league results job")

	entries, err := s.leagueService.GetLeaderboard(ctx, 10)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to compute weekly leaderboard")
		prommetrics.RecordSchedulerJobRun("league_results", "error")
		return
	}

	results := make([]notifier.LeagueResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, notifier.LeagueResult{
			DisplayName: e.DisplayName,
			Tier:        e.Tier,
			Coins:       e.WeeklyCoins,
			Rank:        e.Rank,
		})
	}

	if err := s.notifier.SendWeeklyLeagueResults(results); err != nil {
		s.log.Error().Err(err).Msg("Failed to send weekly league results")
		prommetrics.RecordSchedulerJobRun("league_results", "error")
		return
	}

	prommetrics.RecordSchedulerJobRun("league_results", "success")
	s.log.Info().
		Int("entries", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Weekly league results announced")
}
