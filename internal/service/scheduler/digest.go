package scheduler

import (
	"github.com/karmahq/karma-server/internal/models"
	"github.com/karmahq/karma-server/internal/notifier"
)

// buildPendingDigest transforms pending completions into the digest format.
// The completions come preloaded with their user and campaign.
func buildPendingDigest(completions []models.TaskCompletion) []notifier.PendingCompletion {
	pending := make([]notifier.PendingCompletion, 0, len(completions))

	for _, c := range completions {
		user := "unknown"
		if c.User.DisplayName != "" {
			user = c.User.DisplayName
		}

		pending = append(pending, notifier.PendingCompletion{
			User:        user,
			Campaign:    c.Campaign.Mission,
			Task:        c.TaskDescription,
			SubmittedAt: c.CompletedAt,
		})
	}

	return pending
}
