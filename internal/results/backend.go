package results

import (
	"context"
	"errors"

	"github.com/noah-isme/gema-exam-console/internal/dto"
)

var (
	// ErrConfirmationRequired is returned when an action needs an explicit confirm step.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrNoExamSelected is returned by view operations before SelectExam.
	ErrNoExamSelected = errors.New("no exam selected")
	// ErrRowNotFound indicates the student has no row in the current view.
	ErrRowNotFound = errors.New("row not found")
	// ErrEditorClosed is returned by editor operations after Close.
	ErrEditorClosed = errors.New("editor closed")
)

// ScoreUpdate is the payload persisted for one student.
type ScoreUpdate struct {
	TotalScore  float64
	AIScore     float64
	StudentName string
}

// ChangeSource answers whether an exam's activity count moved.
type ChangeSource interface {
	Changes(ctx context.Context, examID uint, lastCount int64) (dto.ChangeCountResponse, error)
}

// ResultSource loads the authoritative state of one exam.
type ResultSource interface {
	Exam(ctx context.Context, examID uint) (dto.ExamResponse, error)
	Summary(ctx context.Context, examID uint) (dto.ExamSummaryResponse, error)
	Results(ctx context.Context, examID uint) ([]Row, error)
}

// Grader persists instructor decisions.
type Grader interface {
	UpdateScore(ctx context.Context, examID, studentID uint, update ScoreUpdate) (dto.UpdateScoreResponse, error)
	ApproveAll(ctx context.Context, examID uint) (int64, error)
	DeleteResult(ctx context.Context, examID, studentID uint) error
}

// EvidenceSource fetches evidence images by submission.
type EvidenceSource interface {
	Evidence(ctx context.Context, submissionID uint, kind string) ([]byte, error)
}

// DetailSource feeds the editor's side panels.
type DetailSource interface {
	EvidenceSource
	QuestionDetail(ctx context.Context, submissionID uint) (dto.QuestionDetailResponse, error)
	ProctoringLog(ctx context.Context, submissionID uint) (dto.ProctoringLogResponse, error)
}

// Backend is everything the results view needs from the exam API.
type Backend interface {
	ChangeSource
	ResultSource
	Grader
	DetailSource
	StudentResults(ctx context.Context, studentID uint) ([]Row, error)
}
