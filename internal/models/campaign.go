package models

import (
	"time"
)

// Campaign is a sponsored charity mission with a funding target and tasks.
// Progress is an incrementally maintained 0-100 counter raised at approval
// time; reaching 100 while active flips the campaign to completed.
type Campaign struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Mission      string    `gorm:"type:text;not null" json:"mission"`
	BrandName    string    `gorm:"size:255" json:"brand_name"`
	Description  string    `gorm:"type:text" json:"description"`
	TargetAmount float64   `gorm:"not null;default:0" json:"target_amount"`
	Progress     int       `gorm:"not null;default:0" json:"progress"`
	Status       string    `gorm:"size:20;not null;index" json:"status"` // 'pending', 'active', 'rejected', 'completed'
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relationships
	Tasks []Task `gorm:"foreignKey:CampaignID" json:"tasks,omitempty"`
}

// TableName specifies the table name for Campaign model.
func (Campaign) TableName() string {
	return "campaigns"
}

// Campaign status constants.
const (
	CampaignStatusPending   = "pending"
	CampaignStatusActive    = "active"
	CampaignStatusRejected  = "rejected"
	CampaignStatusCompleted = "completed"
)

// Task is an action a user can perform against a campaign to earn points and
// coins. Social tasks require admin review; code and generic tasks are
// approved at submission.
type Task struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CampaignID   uint      `gorm:"not null;index" json:"campaign_id"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	Kind         string    `gorm:"size:20;not null" json:"kind"` // 'social', 'code', 'generic'
	ImpactPoints int       `gorm:"not null;default:0" json:"impact_points"`
	KarmaCoins   int       `gorm:"not null;default:0" json:"karma_coins"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for Task model.
func (Task) TableName() string {
	return "tasks"
}

// Task kind constants.
const (
	TaskKindSocial  = "social"
	TaskKindCode    = "code"
	TaskKindGeneric = "generic"
)

// AutoApproved reports whether completions of this task skip admin review.
func (t *Task) AutoApproved() bool {
	return t.Kind != TaskKindSocial
}

// TaskCompletion records a user's attempt of a task, with a tri-state
// approval workflow. Approval is the only transition that grants points and
// coins and advances campaign progress; it fires at most once per record.
type TaskCompletion struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	User            User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CampaignID      uint       `gorm:"not null;index" json:"campaign_id"`
	Campaign        Campaign   `gorm:"foreignKey:CampaignID" json:"campaign,omitempty"`
	TaskID          uint       `gorm:"not null;index" json:"task_id"`
	TaskDescription string     `gorm:"type:text" json:"task_description"`
	SubmittedData   string     `gorm:"type:text" json:"submitted_data,omitempty"`
	ImpactPoints    int        `gorm:"not null;default:0" json:"impact_points"`
	KarmaCoins      int        `gorm:"not null;default:0" json:"karma_coins"`
	Status          string     `gorm:"size:20;not null;index" json:"status"` // 'pending', 'approved', 'rejected'
	CompletedAt     time.Time  `gorm:"not null" json:"completed_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy      *uint      `json:"reviewed_by,omitempty"`
}

// TableName specifies the table name for TaskCompletion model.
func (TaskCompletion) TableName() string {
	return "task_completions"
}

// Completion status constants.
const (
	CompletionStatusPending  = "pending"
	CompletionStatusApproved = "approved"
	CompletionStatusRejected = "rejected"
)

// Terminal reports whether the completion has left the pending state.
func (c *TaskCompletion) Terminal() bool {
	return c.Status != CompletionStatusPending
}
