// Package results keeps the instructor's results table in sync with the
// exam backend and drives grading, approval, deletion and export.
package results

import (
	"strconv"
	"time"

	"github.com/noah-isme/gema-exam-console/internal/grading"
	"github.com/noah-isme/gema-exam-console/internal/models"
)

// Row is one submission as displayed in the results table.
type Row struct {
	SubmissionID        uint       `json:"submission_id"`
	ExamID              uint       `json:"exam_id"`
	ExamTitle           string     `json:"exam_title,omitempty"`
	StudentID           uint       `json:"student_id"`
	StudentName         string     `json:"student_name"`
	TotalScore          float64    `json:"total_score"`
	AIScore             float64    `json:"ai_score"`
	SuggestedTotalScore *float64   `json:"suggested_total_score"`
	InstructorConfirmed bool       `json:"instructor_confirmed"`
	Status              string     `json:"status"`
	StartedAt           *time.Time `json:"started_at"`
	SubmittedAt         *time.Time `json:"submitted_at"`
	DurationSeconds     *int       `json:"duration_seconds"`
	DurationMinutes     *int       `json:"duration_minutes"`
	CheatingCount       int        `json:"cheating_count"`
	HasFaceImage        bool       `json:"has_face_image"`
	HasStudentCard      bool       `json:"has_student_card"`
}

// Total is the displayed total, always recomputed from both components.
func (r Row) Total() float64 {
	return grading.Total(r.TotalScore, r.AIScore)
}

// IsConfirmed reports whether the instructor accepted the score.
func (r Row) IsConfirmed() bool {
	return r.InstructorConfirmed || r.Status == models.ExamStatusConfirmed
}

// Duration prefers the seconds field and falls back to minutes.
func (r Row) Duration() (time.Duration, bool) {
	switch {
	case r.DurationSeconds != nil:
		return time.Duration(*r.DurationSeconds) * time.Second, true
	case r.DurationMinutes != nil:
		return time.Duration(*r.DurationMinutes) * time.Minute, true
	default:
		return 0, false
	}
}

// DurationLabel renders Duration, or "-" when unknown.
func (r Row) DurationLabel() string {
	d, ok := r.Duration()
	if !ok {
		return "-"
	}
	return d.String()
}

// AttemptKey implements grading.Attempt.
func (r Row) AttemptKey() grading.AttemptKey {
	return grading.AttemptKey{ExamID: r.ExamID, StudentID: r.StudentID}
}

// Confirmed implements grading.Attempt.
func (r Row) Confirmed() bool {
	return r.IsConfirmed()
}

// RankScore implements grading.Attempt.
func (r Row) RankScore() float64 {
	return grading.EffectiveScore(r.TotalScore, r.SuggestedTotalScore)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}
