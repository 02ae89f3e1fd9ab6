package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/grading"
)

// Exam submission statuses.
const (
	ExamStatusPending    = "pending"
	ExamStatusInProgress = "in_progress"
	ExamStatusGraded     = "graded"
	ExamStatusSubmitted  = "submitted"
	ExamStatusConfirmed  = "confirmed"
)

// ExamSubmission is one student's attempt at one exam. Deleting an attempt is
// a soft delete so the exam's activity count never moves backwards.
type ExamSubmission struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	ExamID              uint           `gorm:"not null;index:idx_exam_student" json:"exam_id"`
	StudentID           uint           `gorm:"not null;index:idx_exam_student" json:"student_id"`
	StudentName         string         `gorm:"size:255" json:"student_name"`
	TotalScore          float64        `json:"total_score"`
	AIScore             float64        `json:"ai_score"`
	SuggestedTotalScore *float64       `json:"suggested_total_score"`
	InstructorConfirmed bool           `gorm:"not null;default:false" json:"instructor_confirmed"`
	Status              string         `gorm:"size:32;not null" json:"status"`
	StartedAt           *time.Time     `json:"started_at"`
	SubmittedAt         *time.Time     `json:"submitted_at"`
	DurationSeconds     *int           `json:"duration_seconds"`
	DurationMinutes     *int           `json:"duration_minutes"`
	CheatingCount       int            `gorm:"not null;default:0" json:"cheating_count"`
	HasFaceImage        bool           `json:"has_face_image"`
	HasStudentCard      bool           `json:"has_student_card"`
	ConfirmedBy         *uint          `json:"confirmed_by"`
	ConfirmedAt         *time.Time     `json:"confirmed_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
	Exam                Exam           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsConfirmed reports whether an instructor accepted the score as official.
func (s ExamSubmission) IsConfirmed() bool {
	return s.InstructorConfirmed || s.Status == ExamStatusConfirmed
}

// IsSubmitted reports whether the student finished the attempt.
func (s ExamSubmission) IsSubmitted() bool {
	switch s.Status {
	case ExamStatusSubmitted, ExamStatusGraded, ExamStatusConfirmed:
		return true
	}
	return s.SubmittedAt != nil
}

// AttemptKey implements grading.Attempt.
func (s ExamSubmission) AttemptKey() grading.AttemptKey {
	return grading.AttemptKey{ExamID: s.ExamID, StudentID: s.StudentID}
}

// Confirmed implements grading.Attempt.
func (s ExamSubmission) Confirmed() bool {
	return s.IsConfirmed()
}

// RankScore implements grading.Attempt.
func (s ExamSubmission) RankScore() float64 {
	return grading.EffectiveScore(s.TotalScore, s.SuggestedTotalScore)
}
