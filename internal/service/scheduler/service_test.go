package scheduler

import (
	"testing"
	"time"

	"github.com/karmahq/karma-server/internal/config"
	"github.com/karmahq/karma-server/internal/models"
)

func TestBuildReminderExpression(t *testing.T) {
	tests := []struct {
		name         string
		time         string
		skipWeekends bool
		want         string
		wantErr      bool
	}{
		{
			name:         "daily at 9am",
			time:         "09:00",
			skipWeekends: false,
			want:         "0 9 * * *",
			wantErr:      false,
		},
		{
			name:         "weekdays at 9am",
			time:         "09:00",
			skipWeekends: true,
			want:         "0 9 * * 1-5",
			wantErr:      false,
		},
		{
			name:         "daily at 14:30",
			time:         "14:30",
			skipWeekends: false,
			want:         "30 14 * * *",
			wantErr:      false,
		},
		{
			name:         "invalid format no colon",
			time:         "0900",
			skipWeekends: false,
			want:         "",
			wantErr:      true,
		},
		{
			name:         "invalid hour",
			time:         "25:00",
			skipWeekends: false,
			want:         "",
			wantErr:      true,
		},
		{
			name:         "invalid minute",
			time:         "09:60",
			skipWeekends: false,
			want:         "",
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Scheduler: config.SchedulerConfig{
					ReminderTime: tt.time,
					SkipWeekends: tt.skipWeekends,
				},
			}

			s := &Service{config: cfg}

			got, err := s.buildReminderExpression()

			if (err != nil) != tt.wantErr {
				t.Errorf("buildReminderExpression() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if got != tt.want {
				t.Errorf("buildReminderExpression() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildLeagueExpression(t *testing.T) {
	tests := []struct {
		name      string
		weekStart string
		want      string
	}{
		{
			name:      "monday week announces sunday night",
			weekStart: "monday",
			want:      "55 23 * * 0",
		},
		{
			name:      "sunday week announces saturday night",
			weekStart: "sunday",
			want:      "55 23 * * 6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Leagues: config.LeaguesConfig{WeekStart: tt.weekStart},
			}
			s := &Service{config: cfg}

			got, err := s.buildLeagueExpression()
			if err != nil {
				t.Fatalf("buildLeagueExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("buildLeagueExpression() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildPendingDigest(t *testing.T) {
	submitted := time.Now().Add(-24 * time.Hour)

	completions := []models.TaskCompletion{
		{
			User:            models.User{DisplayName: "Alice"},
			Campaign:        models.Campaign{Mission: "Plant trees"},
			TaskDescription: "Share the campaign",
			CompletedAt:     submitted,
		},
		{
			// Missing display name falls back to "unknown".
			Campaign:        models.Campaign{Mission: "Clean the river"},
			TaskDescription: "Post a photo",
			CompletedAt:     submitted,
		},
	}

	pending := buildPendingDigest(completions)

	if len(pending) != 2 {
		t.Fatalf("Expected 2 digest entries, got %d", len(pending))
	}
	if pending[0].User != "Alice" || pending[0].Campaign != "Plant trees" {
		t.Errorf("Unexpected first entry: %+v", pending[0])
	}
	if pending[1].User != "unknown" {
		t.Errorf("Expected unknown user fallback, got %q", pending[1].User)
	}
	if !pending[0].SubmittedAt.Equal(submitted) {
		t.Errorf("Expected submitted time preserved")
	}
}
