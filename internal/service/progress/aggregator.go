// Package progress reports campaign progress from the completion log and
// repairs drift in the stored progress counter.
package progress

import (
	"context"
	"fmt"
	"strconv"

	prommetrics "github.com/karmahq/karma-server/internal/metrics"
	"github.com/karmahq/karma-server/internal/models"
	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/pkg/logger"
)

// Report is a point-in-time aggregation over a campaign's completion log.
// It is recomputed on every read and never cached.
type Report struct {
	CampaignID        uint   `json:"campaign_id"`
	Mission           string `json:"mission"`
	Participants      int    `json:"participants"`
	ApprovedCount     int    `json:"approved_count"`
	TotalImpactPoints int    `json:"total_impact_points"`
	ComputedProgress  int    `json:"computed_progress"`
	StoredProgress    int    `json:"stored_progress"`
}

// Aggregator computes campaign progress reports.
type Aggregator struct {
	store *repository.Store
	log   *logger.Logger
}

// NewAggregator creates a new progress aggregator.
func NewAggregator(store *repository.Store, log *logger.Logger) *Aggregator {
	return &Aggregator{
		store: store,
		log:   log,
	}
}

// Report aggregates a campaign's completion log. Participants counts distinct
// users across all completions; points and counts cover approved ones only.
//
//nolint:revive // ctx reserved for future context-aware operations
func (a *Aggregator) Report(ctx context.Context, campaignID uint) (*Report, error) {
	campaign, err := a.store.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	completions, err := a.store.Completions.ListByCampaign(campaignID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaign %d: %w", campaignID, err)
	}

	report := &Report{
		CampaignID:     campaign.ID,
		Mission:        campaign.Mission,
		StoredProgress: campaign.Progress,
	}
	seen := map[uint]bool{}
	for i := range completions {
		c := &completions[i]
		if !seen[c.UserID] {
			seen[c.UserID] = true
			report.Participants++
		}
		if c.Status == models.CompletionStatusApproved {
			report.ApprovedCount++
			report.TotalImpactPoints += c.ImpactPoints
		}
	}
	report.ComputedProgress = clampProgress(report.TotalImpactPoints)

	return report, nil
}

// Reconcile recomputes every campaign's progress from its completion log and
// repairs the stored counter where it has drifted. A campaign that should
// have reached 100 while active is flipped to completed, matching the
// approval-time rule.
func (a *Aggregator) Reconcile(ctx context.Context) (repaired int, err error) {
	campaigns, err := a.store.Campaigns.List("")
	if err != nil {
		return 0, err
	}

	for i := range campaigns {
		campaign := &campaigns[i]
		report, err := a.Report(ctx, campaign.ID)
		if err != nil {
			return repaired, err
		}
		if report.ComputedProgress == campaign.Progress {
			continue
		}

		status := campaign.Status
		if report.ComputedProgress >= 100 && status == models.CampaignStatusActive {
			status = models.CampaignStatusCompleted
		}
		if err := a.store.Campaigns.SetProgress(campaign.ID, report.ComputedProgress, status); err != nil {
			return repaired, err
		}
		repaired++

		prommetrics.RecordProgressDriftRepair()
		prommetrics.SetCampaignProgress(strconv.FormatUint(uint64(campaign.ID), 10), report.ComputedProgress)

		a.log.Warn().
			Uint("campaign_id", campaign.ID).
			Int("stored", campaign.Progress).
			Int("computed", report.ComputedProgress).
			Msg("Repaired campaign progress drift")
	}

	return repaired, nil
}

func clampProgress(points int) int {
	if points > 100 {
		return 100
	}
	if points < 0 {
		return 0
	}
	return points
}
