package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/models"
)

// StudentRepository looks up enrolled students.
type StudentRepository interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("id = ?", id).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}
