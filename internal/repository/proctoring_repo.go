package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/models"
)

// ProctoringRepository reads violation events reported for submissions.
type ProctoringRepository interface {
	ListEvents(ctx context.Context, submissionID uint) ([]models.ProctoringEvent, error)
}

type proctoringRepository struct {
	db *gorm.DB
}

// NewProctoringRepository constructs the proctoring repository.
func NewProctoringRepository(db *gorm.DB) ProctoringRepository {
	return &proctoringRepository{db: db}
}

func (r *proctoringRepository) ListEvents(ctx context.Context, submissionID uint) ([]models.ProctoringEvent, error) {
	var events []models.ProctoringEvent
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
