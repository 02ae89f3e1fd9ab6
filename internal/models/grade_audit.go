package models

import (
	"time"

	"gorm.io/datatypes"
)

// Grade audit actions.
const (
	GradeActionScoreUpdate = "score_update"
	GradeActionBulkApprove = "bulk_approve"
	GradeActionDelete      = "delete"
)

// GradeAudit captures every grading mutation performed through the console.
type GradeAudit struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ExamID        uint              `gorm:"not null;index" json:"exam_id"`
	SubmissionID  *uint             `json:"submission_id"`
	StudentID     *uint             `json:"student_id"`
	Action        string            `gorm:"size:32;not null" json:"action"`
	TotalScore    *float64          `json:"total_score"`
	AIScore       *float64          `json:"ai_score"`
	PreviousTotal *float64          `json:"previous_total"`
	ActorID       uint              `json:"actor_id"`
	ActorRole     string            `gorm:"size:32" json:"actor_role"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
}
