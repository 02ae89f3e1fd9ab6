package models

import (
	"time"

	"gorm.io/datatypes"
)

// Proctoring severities reported by the monitoring collaborator.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ProctoringEvent is one violation reported for a submission.
type ProctoringEvent struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	SubmissionID uint              `gorm:"not null;index" json:"submission_id"`
	EventType    string            `gorm:"size:64;not null" json:"event_type"`
	Severity     string            `gorm:"size:16;not null" json:"severity"`
	OccurredAt   time.Time         `json:"occurred_at"`
	Details      datatypes.JSONMap `gorm:"type:json" json:"details"`
}
