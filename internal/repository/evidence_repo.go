package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-exam-console/internal/models"
)

// EvidenceRepository stores evidence image records.
type EvidenceRepository interface {
	Save(ctx context.Context, image *models.EvidenceImage) error
	Get(ctx context.Context, submissionID uint, kind string) (models.EvidenceImage, error)
}

type evidenceRepository struct {
	db *gorm.DB
}

// NewEvidenceRepository constructs an evidence repository.
func NewEvidenceRepository(db *gorm.DB) EvidenceRepository {
	return &evidenceRepository{db: db}
}

// Save upserts the image for its (submission, kind) pair and flags the
// submission as carrying that evidence.
func (r *evidenceRepository) Save(ctx context.Context, image *models.EvidenceImage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"content_type", "size", "data", "backend", "remote_key", "remote_url", "updated_at"}),
		}).Create(image).Error; err != nil {
			return err
		}

		column := "has_face_image"
		if image.Kind == models.EvidenceKindCard {
			column = "has_student_card"
		}
		return tx.Model(&models.ExamSubmission{}).
			Where("id = ?", image.SubmissionID).
			Update(column, true).Error
	})
}

func (r *evidenceRepository) Get(ctx context.Context, submissionID uint, kind string) (models.EvidenceImage, error) {
	var image models.EvidenceImage
	if err := r.db.WithContext(ctx).
		Where("submission_id = ? AND kind = ?", submissionID, kind).
		First(&image).Error; err != nil {
		return models.EvidenceImage{}, err
	}
	return image, nil
}
