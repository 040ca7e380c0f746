// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the karma platform.
var (
	// Counters.
	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_redemptions_total",
			Help: "Total number of reward redemption attempts",
		},
		[]string{"category", "status"},
	)

	CoinsSpentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "karma_coins_spent_total",
			Help: "Total karma coins spent on rewards",
		},
	)

	CoinsEarnedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "karma_coins_earned_total",
			Help: "Total karma coins credited by approved completions",
		},
	)

	CompletionsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_completions_submitted_total",
			Help: "Total task completion submissions",
		},
		[]string{"kind"},
	)

	CompletionsReviewedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_completions_reviewed_total",
			Help: "Total task completion reviews (approvals and rejections)",
		},
		[]string{"outcome"},
	)

	CampaignsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaigns_completed_total",
			Help: "Total campaigns that reached 100% progress",
		},
	)

	ProgressDriftRepairsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_progress_drift_repairs_total",
			Help: "Total campaign progress values repaired by reconciliation",
		},
	)

	// Gauges.
	CampaignProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "campaign_progress_percent",
			Help: "Current stored progress per campaign",
		},
		[]string{"campaign"},
	)

	PendingCompletions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_task_completions",
			Help: "Current number of completions awaiting admin review",
		},
	)

	// Histograms.
	RedemptionCost = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reward_redemption_cost_coins",
			Help:    "Coin cost of redeemed rewards",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10 to ~5k coins
		},
	)

	WeeklyScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "league_weekly_score_coins",
			Help:    "Weekly coin scores observed at standing computation",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"tier"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
	)
)

// RecordRedemption records a reward redemption attempt.
func RecordRedemption(category, status string) {
	RedemptionsTotal.WithLabelValues(category, status).Inc()
}

// RecordCoinsSpent records coins spent on a redemption.
func RecordCoinsSpent(coins int) {
	CoinsSpentTotal.Add(float64(coins))
	RedemptionCost.Observe(float64(coins))
}

// RecordCoinsEarned records coins credited by an approval.
func RecordCoinsEarned(coins int) {
	CoinsEarnedTotal.Add(float64(coins))
}

// RecordCompletionSubmitted records a task completion submission.
func RecordCompletionSubmitted(kind string) {
	CompletionsSubmittedTotal.WithLabelValues(kind).Inc()
}

// RecordCompletionReviewed records an approval or rejection.
func RecordCompletionReviewed(outcome string) {
	CompletionsReviewedTotal.WithLabelValues(outcome).Inc()
}

// RecordCampaignCompleted records a campaign reaching full progress.
func RecordCampaignCompleted() {
	CampaignsCompletedTotal.Inc()
}

// RecordProgressDriftRepair records a reconciliation repair.
func RecordProgressDriftRepair() {
	ProgressDriftRepairsTotal.Inc()
}

// SetCampaignProgress sets the stored progress gauge of a campaign.
func SetCampaignProgress(campaign string, progress int) {
	CampaignProgress.WithLabelValues(campaign).Set(float64(progress))
}

// SetPendingCompletions sets the pending review queue gauge.
func SetPendingCompletions(count int) {
	PendingCompletions.Set(float64(count))
}

// ObserveWeeklyScore observes a weekly coin score with its resolved tier.
func ObserveWeeklyScore(tier string, coins int) {
	WeeklyScore.WithLabelValues(tier).Observe(float64(coins))
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last scheduler run.
func SetSchedulerLastRun() {
	SchedulerLastRunTimestamp.SetToCurrentTime()
}
