package models

import (
	"time"
)

// Weekly plan status values.
const (
	PlanStatusOpen   = "open"
	PlanStatusClosed = "closed"
)

// WeeklyActivityPlan is one week's planned pipeline activity. Plans whose
// week has ended are closed by the background plan worker.
type WeeklyActivityPlan struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	WeekStart time.Time  `gorm:"not null;index" json:"week_start"`
	WeekEnd   time.Time  `gorm:"not null;index" json:"week_end"`
	Status    string     `gorm:"default:'open'" json:"status"` // open, closed
	CreatedBy *string    `gorm:"type:uuid" json:"created_by,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	// Relations
	Metrics []WeeklyMetricDefinition `gorm:"foreignKey:PlanID" json:"metrics,omitempty"`
}

// WeeklyMetricDefinition is one tracked metric inside a weekly plan.
type WeeklyMetricDefinition struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PlanID      string `gorm:"type:uuid;not null;index" json:"plan_id"`
	Label       string `gorm:"not null" json:"label"`
	TargetCount int    `gorm:"default:0" json:"target_count"`
	ActualCount int    `gorm:"default:0" json:"actual_count"`
	SortOrder   int    `gorm:"default:0" json:"sort_order"`
}
