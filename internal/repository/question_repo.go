package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/models"
)

// QuestionRepository reads exam questions and the answers of a submission.
type QuestionRepository interface {
	ListQuestions(ctx context.Context, examID uint) ([]models.ExamQuestion, error)
	ListAnswers(ctx context.Context, submissionID uint) ([]models.ExamAnswer, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository constructs the question repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) ListQuestions(ctx context.Context, examID uint) ([]models.ExamQuestion, error) {
	var questions []models.ExamQuestion
	if err := r.db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("label ASC")
		}).
		Where("exam_id = ?", examID).
		Order("position ASC, id ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) ListAnswers(ctx context.Context, submissionID uint) ([]models.ExamAnswer, error) {
	var answers []models.ExamAnswer
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}
