package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/models"
	"github.com/noah-isme/gema-exam-console/internal/repository"
)

// MaxEvidenceBytes bounds a single evidence upload.
const MaxEvidenceBytes = 5 << 20

var (
	// ErrEvidenceNotFound indicates no image is stored for the submission and kind.
	ErrEvidenceNotFound = errors.New("evidence not found")
	// ErrInvalidEvidenceKind indicates the kind is neither face nor card.
	ErrInvalidEvidenceKind = errors.New("invalid evidence kind")
	// ErrEvidenceNotImage indicates the uploaded payload is not an image.
	ErrEvidenceNotImage = errors.New("evidence must be an image")
	// ErrEvidenceTooLarge indicates the upload exceeds MaxEvidenceBytes.
	ErrEvidenceTooLarge = errors.New("evidence exceeds size limit")
)

// BlobStore keeps evidence bytes outside the database.
type BlobStore interface {
	Name() string
	Put(ctx context.Context, key, contentType string, data []byte) (remoteKey, url string, err error)
	Get(ctx context.Context, remoteKey, url string) ([]byte, error)
}

// EvidencePayload is a fetched evidence image.
type EvidencePayload struct {
	ContentType string
	Data        []byte
}

// EvidenceService stores and serves face-capture and identity-card images.
type EvidenceService interface {
	Upload(ctx context.Context, submissionID uint, kind string, data []byte) (dto.EvidenceResponse, error)
	Fetch(ctx context.Context, submissionID uint, kind string) (EvidencePayload, error)
}

type evidenceService struct {
	repo        repository.EvidenceRepository
	submissions repository.ExamResultRepository
	blobs       BlobStore
	logger      zerolog.Logger
}

// NewEvidenceService builds the evidence service. A nil blob store keeps the
// bytes in the database row.
func NewEvidenceService(repo repository.EvidenceRepository, submissions repository.ExamResultRepository, blobs BlobStore, logger zerolog.Logger) EvidenceService {
	return &evidenceService{
		repo:        repo,
		submissions: submissions,
		blobs:       blobs,
		logger:      logger.With().Str("component", "evidence_service").Logger(),
	}
}

// NormalizeEvidenceKind validates and lower-cases an evidence kind.
func NormalizeEvidenceKind(kind string) (string, error) {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case models.EvidenceKindFace, models.EvidenceKindCard:
		return k, nil
	default:
		return "", ErrInvalidEvidenceKind
	}
}

func (s *evidenceService) Upload(ctx context.Context, submissionID uint, kind string, data []byte) (dto.EvidenceResponse, error) {
	kind, err := NormalizeEvidenceKind(kind)
	if err != nil {
		return dto.EvidenceResponse{}, err
	}
	if len(data) > MaxEvidenceBytes {
		return dto.EvidenceResponse{}, ErrEvidenceTooLarge
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return dto.EvidenceResponse{}, ErrEvidenceNotImage
	}

	if _, err := s.submissions.GetSubmission(ctx, submissionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvidenceResponse{}, ErrSubmissionNotFound
		}
		return dto.EvidenceResponse{}, err
	}

	image := models.EvidenceImage{
		SubmissionID: submissionID,
		Kind:         kind,
		ContentType:  mime.String(),
		Size:         int64(len(data)),
		Backend:      "db",
	}

	if s.blobs != nil {
		key := fmt.Sprintf("evidence/%d/%s%s", submissionID, kind, mime.Extension())
		remoteKey, url, err := s.blobs.Put(ctx, key, mime.String(), data)
		if err != nil {
			return dto.EvidenceResponse{}, err
		}
		image.Backend = s.blobs.Name()
		image.RemoteKey = remoteKey
		image.RemoteURL = url
	} else {
		image.Data = data
	}

	if err := s.repo.Save(ctx, &image); err != nil {
		return dto.EvidenceResponse{}, err
	}

	s.logger.Info().Uint("submission_id", submissionID).Str("kind", kind).Str("backend", image.Backend).Msg("evidence stored")

	return dto.EvidenceResponse{
		SubmissionID: submissionID,
		Kind:         kind,
		ContentType:  image.ContentType,
		Size:         image.Size,
		Backend:      image.Backend,
		CreatedAt:    image.CreatedAt,
	}, nil
}

func (s *evidenceService) Fetch(ctx context.Context, submissionID uint, kind string) (EvidencePayload, error) {
	kind, err := NormalizeEvidenceKind(kind)
	if err != nil {
		return EvidencePayload{}, err
	}

	image, err := s.repo.Get(ctx, submissionID, kind)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EvidencePayload{}, ErrEvidenceNotFound
		}
		return EvidencePayload{}, err
	}

	data := image.Data
	if len(data) == 0 && (image.RemoteKey != "" || image.RemoteURL != "") {
		if s.blobs == nil {
			return EvidencePayload{}, fmt.Errorf("evidence stored in %s but no blob store configured", image.Backend)
		}
		data, err = s.blobs.Get(ctx, image.RemoteKey, image.RemoteURL)
		if err != nil {
			return EvidencePayload{}, err
		}
	}
	if len(data) == 0 {
		return EvidencePayload{}, ErrEvidenceNotFound
	}

	contentType := image.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	return EvidencePayload{ContentType: contentType, Data: data}, nil
}
