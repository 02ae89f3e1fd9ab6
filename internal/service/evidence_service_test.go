package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-console/internal/models"
	"github.com/noah-isme/gema-exam-console/internal/repository"
)

type memoryBlobStore struct {
	objects map[string][]byte
	failGet bool
}

func (m *memoryBlobStore) Name() string { return "memory" }

func (m *memoryBlobStore) Put(_ context.Context, key, _ string, data []byte) (string, string, error) {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return key, "https://blobs.test/" + key, nil
}

func (m *memoryBlobStore) Get(_ context.Context, key, _ string) ([]byte, error) {
	if m.failGet {
		return nil, errors.New("blob store unavailable")
	}
	return m.objects[key], nil
}

func TestEvidenceServiceStoresInDatabase(t *testing.T) {
	db := openResultsDB(t)
	exam := seedExam(t, db, "Physics")
	attempt := seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 1})
	repo := repository.NewExamResultRepository(db)
	svc := NewEvidenceService(repository.NewEvidenceRepository(db), repo, nil, zerolog.Nop())
	ctx := context.Background()
	data := tinyPNG(t)

	stored, err := svc.Upload(ctx, attempt.ID, "FACE", data)
	require.NoError(t, err)
	require.Equal(t, "image/png", stored.ContentType)
	require.Equal(t, "db", stored.Backend)

	payload, err := svc.Fetch(ctx, attempt.ID, models.EvidenceKindFace)
	require.NoError(t, err)
	require.Equal(t, data, payload.Data)
	require.Equal(t, "image/png", payload.ContentType)

	updated, err := repo.GetSubmission(ctx, attempt.ID)
	require.NoError(t, err)
	require.True(t, updated.HasFaceImage)
	require.False(t, updated.HasStudentCard)

	_, err = svc.Fetch(ctx, attempt.ID, models.EvidenceKindCard)
	require.ErrorIs(t, err, ErrEvidenceNotFound)
}

func TestEvidenceServiceUsesBlobStore(t *testing.T) {
	db := openResultsDB(t)
	exam := seedExam(t, db, "Physics")
	attempt := seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 1})
	blobs := &memoryBlobStore{}
	svc := NewEvidenceService(repository.NewEvidenceRepository(db), repository.NewExamResultRepository(db), blobs, zerolog.Nop())
	ctx := context.Background()
	data := tinyPNG(t)

	stored, err := svc.Upload(ctx, attempt.ID, models.EvidenceKindCard, data)
	require.NoError(t, err)
	require.Equal(t, "memory", stored.Backend)
	require.Len(t, blobs.objects, 1)

	var row models.EvidenceImage
	require.NoError(t, db.First(&row).Error)
	require.Empty(t, row.Data)
	require.Equal(t, "evidence/1/card.png", row.RemoteKey)

	payload, err := svc.Fetch(ctx, attempt.ID, models.EvidenceKindCard)
	require.NoError(t, err)
	require.Equal(t, data, payload.Data)

	blobs.failGet = true
	_, err = svc.Fetch(ctx, attempt.ID, models.EvidenceKindCard)
	require.Error(t, err)
}

func TestEvidenceServiceRejectsInvalidUploads(t *testing.T) {
	db := openResultsDB(t)
	exam := seedExam(t, db, "Physics")
	attempt := seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 1})
	svc := NewEvidenceService(repository.NewEvidenceRepository(db), repository.NewExamResultRepository(db), nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Upload(ctx, attempt.ID, "selfie", tinyPNG(t))
	require.ErrorIs(t, err, ErrInvalidEvidenceKind)

	_, err = svc.Upload(ctx, attempt.ID, models.EvidenceKindFace, []byte("plain text, not an image"))
	require.ErrorIs(t, err, ErrEvidenceNotImage)

	_, err = svc.Upload(ctx, 999, models.EvidenceKindFace, tinyPNG(t))
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}
