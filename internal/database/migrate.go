package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/models"
)

// Migrate creates or updates the tables backing the exam results API.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Exam{},
		&models.Student{},
		&models.ExamSubmission{},
		&models.EvidenceImage{},
		&models.ExamQuestion{},
		&models.QuestionOption{},
		&models.ExamAnswer{},
		&models.ProctoringEvent{},
		&models.GradeAudit{},
	)
}
