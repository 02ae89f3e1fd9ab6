package dto

import (
	"time"

	"github.com/noah-isme/gema-exam-console/internal/grading"
	"github.com/noah-isme/gema-exam-console/internal/models"
)

// ChangeCountResponse answers whether an exam's submission count moved.
type ChangeCountResponse struct {
	HasChanges bool  `json:"has_changes"`
	Count      int64 `json:"count"`
}

// ExamResponse exposes exam metadata used for headers and export file names.
type ExamResponse struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// NewExamResponse converts an Exam model.
func NewExamResponse(model models.Exam) ExamResponse {
	return ExamResponse{
		ID:              model.ID,
		Title:           model.Title,
		ScheduledAt:     model.ScheduledAt,
		DurationMinutes: model.DurationMinutes,
	}
}

// ExamSummaryResponse aggregates statistics for an exam.
type ExamSummaryResponse struct {
	ExamID            uint       `json:"exam_id"`
	TotalSubmissions  int        `json:"total_submissions"`
	SubmittedCount    int        `json:"submitted_count"`
	ConfirmedCount    int        `json:"confirmed_count"`
	PendingCount      int        `json:"pending_count"`
	AverageTotal      float64    `json:"average_total"`
	HighestTotal      float64    `json:"highest_total"`
	LowestTotal       float64    `json:"lowest_total"`
	TotalCheating     int        `json:"total_cheating"`
	LastSubmissionAt  *time.Time `json:"last_submission_at"`
	ScoreDistribution []int      `json:"score_distribution"`
}

// ExamResultResponse is one submission row of an exam's results table.
type ExamResultResponse struct {
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

// NewExamResultResponse converts an ExamSubmission model.
func NewExamResultResponse(model models.ExamSubmission) ExamResultResponse {
	return ExamResultResponse{
		SubmissionID:        model.ID,
		ExamID:              model.ExamID,
		ExamTitle:           model.Exam.Title,
		StudentID:           model.StudentID,
		StudentName:         model.StudentName,
		TotalScore:          model.TotalScore,
		AIScore:             model.AIScore,
		SuggestedTotalScore: model.SuggestedTotalScore,
		InstructorConfirmed: model.InstructorConfirmed,
		Status:              model.Status,
		StartedAt:           model.StartedAt,
		SubmittedAt:         model.SubmittedAt,
		DurationSeconds:     model.DurationSeconds,
		DurationMinutes:     model.DurationMinutes,
		CheatingCount:       model.CheatingCount,
		HasFaceImage:        model.HasFaceImage,
		HasStudentCard:      model.HasStudentCard,
	}
}

// UpdateScoreRequest persists an instructor's grade for one student.
type UpdateScoreRequest struct {
	TotalScore  *float64 `json:"total_score" validate:"required,gte=0,lte=10"`
	AIScore     *float64 `json:"ai_score" validate:"required,gte=0,lte=10"`
	StudentName string   `json:"student_name" validate:"omitempty,max=255"`
}

// UpdateScoreResponse reports the confirmation state after a score update.
type UpdateScoreResponse struct {
	SubmissionID        uint    `json:"submission_id"`
	ExamID              uint    `json:"exam_id"`
	StudentID           uint    `json:"student_id"`
	TotalScore          float64 `json:"total_score"`
	AIScore             float64 `json:"ai_score"`
	SuggestedTotalScore float64 `json:"suggested_total_score"`
	InstructorConfirmed bool    `json:"instructor_confirmed"`
	Status              string  `json:"status"`
}

// ApproveAllResponse reports how many submissions were confirmed.
type ApproveAllResponse struct {
	Approved int64 `json:"approved"`
}

// DeleteResultResponse reports how many attempts were removed.
type DeleteResultResponse struct {
	Deleted int64 `json:"deleted"`
}

// EvidenceResponse describes a stored evidence image.
type EvidenceResponse struct {
	SubmissionID uint      `json:"submission_id"`
	Kind         string    `json:"kind"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Backend      string    `json:"backend"`
	CreatedAt    time.Time `json:"created_at"`
}

// QuestionDetailResponse bundles everything the grading drawer shows about answers.
type QuestionDetailResponse struct {
	SubmissionID         uint               `json:"submission_id"`
	Questions            []QuestionResponse `json:"questions"`
	Answers              []AnswerResponse   `json:"answers"`
	Options              []OptionResponse   `json:"options"`
	IsBestAttempt        bool               `json:"is_best_attempt"`
	ReplacesSubmissionID *uint              `json:"replaces_submission_id"`
	AttemptCount         int                `json:"attempt_count"`
}

// QuestionResponse is a question of the exam.
type QuestionResponse struct {
	ID       uint    `json:"id"`
	Position int     `json:"position"`
	Kind     string  `json:"kind"`
	Prompt   string  `json:"prompt"`
	Points   float64 `json:"points"`
}

// OptionResponse is a multiple choice option.
type OptionResponse struct {
	ID         uint   `json:"id"`
	QuestionID uint   `json:"question_id"`
	Label      string `json:"label"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

// AnswerResponse is the submission's answer to a question.
type AnswerResponse struct {
	QuestionID uint     `json:"question_id"`
	OptionID   *uint    `json:"option_id"`
	EssayText  string   `json:"essay_text"`
	Score      *float64 `json:"score"`
	AIScore    *float64 `json:"ai_score"`
}

// ProctoringLogResponse lists violations with counts per severity.
type ProctoringLogResponse struct {
	SubmissionID     uint                      `json:"submission_id"`
	Events           []ProctoringEventResponse `json:"events"`
	CountsBySeverity map[string]int            `json:"counts_by_severity"`
	Total            int                       `json:"total"`
}

// ProctoringEventResponse is one violation.
type ProctoringEventResponse struct {
	EventType  string                 `json:"event_type"`
	Severity   string                 `json:"severity"`
	OccurredAt time.Time              `json:"occurred_at"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// ScoreDistributionBuckets is the number of histogram buckets over [0, 2*MaxScore].
const ScoreDistributionBuckets = 10

// DistributionBucket maps a total score to its histogram bucket.
func DistributionBucket(total float64) int {
	width := 2 * grading.MaxScore / ScoreDistributionBuckets
	bucket := int(total / width)
	if bucket < 0 {
		return 0
	}
	if bucket >= ScoreDistributionBuckets {
		return ScoreDistributionBuckets - 1
	}
	return bucket
}
