package service

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/models"
	"github.com/noah-isme/gema-exam-console/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []GradingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event GradingEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func newTestGradingService(t *testing.T, repo repository.ExamResultRepository, cache *redis.Client, events GradingEventPublisher) *gradingService {
	t.Helper()
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewGradingService(repo, validate, cache, events, zerolog.Nop()).(*gradingService)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestGradingServiceUpdateScoreConfirmsOfficialAttempt(t *testing.T) {
	db := openResultsDB(t)
	exam := seedExam(t, db, "Physics")
	low := seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 3, TotalScore: 2})
	high := seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 3, TotalScore: 7})

	events := &recordingPublisher{}
	svc := newTestGradingService(t, repository.NewExamResultRepository(db), nil, events)

	result, err := svc.UpdateScore(context.Background(), exam.ID, 3, dto.UpdateScoreRequest{
		TotalScore:  scorePointer(8),
		AIScore:     scorePointer(1.5),
		StudentName: "<b>Citra</b>",
	}, Actor{ID: 42, Role: "teacher"})
	require.NoError(t, err)
	require.Equal(t, high.ID, result.SubmissionID)
	require.Equal(t, 9.5, result.SuggestedTotalScore)
	require.True(t, result.InstructorConfirmed)
	require.Equal(t, models.ExamStatusConfirmed, result.Status)

	var stored models.ExamSubmission
	require.NoError(t, db.First(&stored, high.ID).Error)
	require.Equal(t, "Citra", stored.StudentName)
	require.NotNil(t, stored.SuggestedTotalScore)
	require.Equal(t, 9.5, *stored.SuggestedTotalScore)
	require.NotNil(t, stored.ConfirmedBy)
	require.Equal(t, uint(42), *stored.ConfirmedBy)

	var untouched models.ExamSubmission
	require.NoError(t, db.First(&untouched, low.ID).Error)
	require.False(t, untouched.InstructorConfirmed)

	var audits []models.GradeAudit
	require.NoError(t, db.Find(&audits).Error)
	require.Len(t, audits, 1)
	require.Equal(t, models.GradeActionScoreUpdate, audits[0].Action)
	require.Equal(t, 7.0, *audits[0].PreviousTotal)

	require.Len(t, events.events, 1)
	require.Equal(t, models.GradeActionScoreUpdate, events.events[0].Action)
}

func TestGradingServiceUpdateScoreRejectsOutOfRange(t *testing.T) {
	db := openResultsDB(t)
	exam := seedExam(t, db, "Physics")
	seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 3, TotalScore: 2})
	svc := newTestGradingService(t, repository.NewExamResultRepository(db), nil, nil)

	_, err := svc.UpdateScore(context.Background(), exam.ID, 3, dto.UpdateScoreRequest{
		TotalScore: scorePointer(10.5),
		AIScore:    scorePointer(1),
	}, Actor{ID: 1})
	require.Error(t, err)

	var stored models.ExamSubmission
	require.NoError(t, db.Where("student_id = ?", 3).First(&stored).Error)
	require.Equal(t, 2.0, stored.TotalScore)
	require.False(t, stored.InstructorConfirmed)
}

func TestGradingServiceUpdateScoreUnknownStudent(t *testing.T) {
	db := openResultsDB(t)
	exam := seedExam(t, db, "Physics")
	svc := newTestGradingService(t, repository.NewExamResultRepository(db), nil, nil)

	_, err := svc.UpdateScore(context.Background(), exam.ID, 99, dto.UpdateScoreRequest{
		TotalScore: scorePointer(1),
		AIScore:    scorePointer(1),
	}, Actor{ID: 1})
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestGradingServiceApproveAllInvalidatesSummary(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})

	db := openResultsDB(t)
	exam := seedExam(t, db, "Physics")
	seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 1, TotalScore: 4, AIScore: 3})
	seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 2, TotalScore: 5, SuggestedTotalScore: scorePointer(9)})
	require.NoError(t, mini.Set(summaryCacheKey(exam.ID), "{}"))

	svc := newTestGradingService(t, repository.NewExamResultRepository(db), redisClient, nil)
	result, err := svc.ApproveAll(context.Background(), exam.ID, Actor{ID: 5, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Approved)
	require.False(t, mini.Exists(summaryCacheKey(exam.ID)))

	var stored []models.ExamSubmission
	require.NoError(t, db.Order("student_id").Find(&stored).Error)
	for _, submission := range stored {
		require.True(t, submission.InstructorConfirmed)
		require.Equal(t, models.ExamStatusConfirmed, submission.Status)
	}
	require.Equal(t, 7.0, *stored[0].SuggestedTotalScore)
	require.Equal(t, 9.0, *stored[1].SuggestedTotalScore)
}

func TestGradingServiceApproveAllUnknownExam(t *testing.T) {
	db := openResultsDB(t)
	svc := newTestGradingService(t, repository.NewExamResultRepository(db), nil, nil)

	_, err := svc.ApproveAll(context.Background(), 77, Actor{ID: 5})
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestGradingServiceDeleteResultRemovesEveryAttempt(t *testing.T) {
	db := openResultsDB(t)
	exam := seedExam(t, db, "Physics")
	first := seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 3})
	seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 3})
	keep := seedAttempt(t, db, models.ExamSubmission{ExamID: exam.ID, StudentID: 4})
	require.NoError(t, db.Create(&models.ProctoringEvent{SubmissionID: first.ID, EventType: "tab_switch", Severity: models.SeverityLow, OccurredAt: time.Now()}).Error)

	svc := newTestGradingService(t, repository.NewExamResultRepository(db), nil, nil)
	result, err := svc.DeleteResult(context.Background(), exam.ID, 3, Actor{ID: 5})
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Deleted)

	var remaining []models.ExamSubmission
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, keep.ID, remaining[0].ID)

	var events int64
	require.NoError(t, db.Model(&models.ProctoringEvent{}).Count(&events).Error)
	require.Zero(t, events)

	_, err = svc.DeleteResult(context.Background(), exam.ID, 3, Actor{ID: 5})
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}
