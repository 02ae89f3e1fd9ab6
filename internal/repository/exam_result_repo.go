package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/models"
)

// ScoreUpdate carries an instructor's confirmed grade for one attempt.
type ScoreUpdate struct {
	SubmissionID uint
	TotalScore   float64
	AIScore      float64
	StudentName  string
	ActorID      uint
	ConfirmedAt  time.Time
}

// ExamResultRepository provides persistence helpers for the exam results view.
type ExamResultRepository interface {
	GetExam(ctx context.Context, examID uint) (models.Exam, error)
	ActivityCount(ctx context.Context, examID uint) (int64, error)
	ListByExam(ctx context.Context, examID uint) ([]models.ExamSubmission, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.ExamSubmission, error)
	ListAttempts(ctx context.Context, examID, studentID uint) ([]models.ExamSubmission, error)
	GetSubmission(ctx context.Context, submissionID uint) (models.ExamSubmission, error)
	ApplyScore(ctx context.Context, update ScoreUpdate) (models.ExamSubmission, error)
	ApproveAll(ctx context.Context, examID, actorID uint, at time.Time) (int64, error)
	DeleteAttempts(ctx context.Context, examID, studentID uint) (int64, error)
	CreateAudit(ctx context.Context, audit *models.GradeAudit) error
}

type examResultRepository struct {
	db *gorm.DB
}

// NewExamResultRepository builds the exam results repository.
func NewExamResultRepository(db *gorm.DB) ExamResultRepository {
	return &examResultRepository{db: db}
}

func (r *examResultRepository) GetExam(ctx context.Context, examID uint) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).First(&exam, examID).Error; err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}

// ActivityCount is a monotonic activity counter for an exam: every attempt
// ever started, every hand-in and every deletion moves it forward by one.
// Deleted attempts stay in the count because deletes are soft.
func (r *examResultRepository) ActivityCount(ctx context.Context, examID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.ExamSubmission{}).
		Select("COUNT(*) + COUNT(submitted_at) + COUNT(deleted_at)").
		Where("exam_id = ?", examID).
		Scan(&count).Error
	return count, err
}

func (r *examResultRepository) ListByExam(ctx context.Context, examID uint) ([]models.ExamSubmission, error) {
	var submissions []models.ExamSubmission
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *examResultRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.ExamSubmission, error) {
	var submissions []models.ExamSubmission
	if err := r.db.WithContext(ctx).
		Preload("Exam").
		Where("student_id = ?", studentID).
		Order("exam_id ASC, id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *examResultRepository) ListAttempts(ctx context.Context, examID, studentID uint) ([]models.ExamSubmission, error) {
	var submissions []models.ExamSubmission
	if err := r.db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Order("id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *examResultRepository) GetSubmission(ctx context.Context, submissionID uint) (models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := r.db.WithContext(ctx).Preload("Exam").First(&submission, submissionID).Error; err != nil {
		return models.ExamSubmission{}, err
	}
	return submission, nil
}

func (r *examResultRepository) ApplyScore(ctx context.Context, update ScoreUpdate) (models.ExamSubmission, error) {
	var submission models.ExamSubmission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&submission, update.SubmissionID).Error; err != nil {
			return err
		}

		suggested := update.TotalScore + update.AIScore
		actor := update.ActorID
		confirmedAt := update.ConfirmedAt

		submission.TotalScore = update.TotalScore
		submission.AIScore = update.AIScore
		submission.SuggestedTotalScore = &suggested
		submission.InstructorConfirmed = true
		submission.Status = models.ExamStatusConfirmed
		submission.ConfirmedBy = &actor
		submission.ConfirmedAt = &confirmedAt
		if update.StudentName != "" {
			submission.StudentName = update.StudentName
		}

		return tx.Save(&submission).Error
	})
	if err != nil {
		return models.ExamSubmission{}, err
	}
	return submission, nil
}

func (r *examResultRepository) ApproveAll(ctx context.Context, examID, actorID uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("exam_id = ?", examID).
		Updates(map[string]interface{}{
			"instructor_confirmed":  true,
			"status":                models.ExamStatusConfirmed,
			"suggested_total_score": gorm.Expr("COALESCE(suggested_total_score, total_score + ai_score)"),
			"confirmed_by":          actorID,
			"confirmed_at":          at,
		})
	return result.RowsAffected, result.Error
}

func (r *examResultRepository) DeleteAttempts(ctx context.Context, examID, studentID uint) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.ExamSubmission{}).
			Where("exam_id = ? AND student_id = ?", examID, studentID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return gorm.ErrRecordNotFound
		}

		for _, model := range []interface{}{&models.ExamAnswer{}, &models.ProctoringEvent{}, &models.EvidenceImage{}} {
			if err := tx.Where("submission_id IN ?", ids).Delete(model).Error; err != nil {
				return err
			}
		}

		result := tx.Where("id IN ?", ids).Delete(&models.ExamSubmission{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}

func (r *examResultRepository) CreateAudit(ctx context.Context, audit *models.GradeAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}
