package models

import "time"

// Question kinds.
const (
	QuestionKindMultipleChoice = "multiple_choice"
	QuestionKindEssay          = "essay"
)

// ExamQuestion is a single question of an exam.
type ExamQuestion struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	ExamID    uint             `gorm:"not null;index" json:"exam_id"`
	Position  int              `json:"position"`
	Kind      string           `gorm:"size:32;not null" json:"kind"`
	Prompt    string           `gorm:"type:text" json:"prompt"`
	Points    float64          `json:"points"`
	Options   []QuestionOption `gorm:"foreignKey:QuestionID" json:"options"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// QuestionOption is a selectable answer of a multiple choice question.
type QuestionOption struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"question_id"`
	Label      string `gorm:"size:8" json:"label"`
	Text       string `gorm:"type:text" json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

// ExamAnswer records what a submission answered for a question.
type ExamAnswer struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	QuestionID   uint      `gorm:"not null" json:"question_id"`
	OptionID     *uint     `json:"option_id"`
	EssayText    string    `gorm:"type:text" json:"essay_text"`
	Score        *float64  `json:"score"`
	AIScore      *float64  `json:"ai_score"`
	CreatedAt    time.Time `json:"created_at"`
}
