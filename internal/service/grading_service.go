package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/grading"
	"github.com/noah-isme/gema-exam-console/internal/models"
	"github.com/noah-isme/gema-exam-console/internal/repository"
)

// ErrSubmissionNotFound indicates no attempt exists for the requested student.
var ErrSubmissionNotFound = errors.New("submission not found")

// GradingService encapsulates the instructor's grading writes.
type GradingService interface {
	UpdateScore(ctx context.Context, examID, studentID uint, payload dto.UpdateScoreRequest, actor Actor) (dto.UpdateScoreResponse, error)
	ApproveAll(ctx context.Context, examID uint, actor Actor) (dto.ApproveAllResponse, error)
	DeleteResult(ctx context.Context, examID, studentID uint, actor Actor) (dto.DeleteResultResponse, error)
}

type gradingService struct {
	repo      repository.ExamResultRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	cache     *redis.Client
	events    GradingEventPublisher
	tracer    trace.Tracer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewGradingService constructs the grading service. cache and events may be nil.
func NewGradingService(repo repository.ExamResultRepository, validator *validator.Validate, cache *redis.Client, events GradingEventPublisher, logger zerolog.Logger) GradingService {
	return &gradingService{
		repo:      repo,
		validator: validator,
		sanitizer: bluemonday.StrictPolicy(),
		cache:     cache,
		events:    events,
		tracer:    otel.Tracer("github.com/noah-isme/gema-exam-console/internal/service/grading"),
		logger:    logger.With().Str("component", "grading_service").Logger(),
		now:       time.Now,
	}
}

func (s *gradingService) UpdateScore(ctx context.Context, examID, studentID uint, payload dto.UpdateScoreRequest, actor Actor) (dto.UpdateScoreResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.update_score", trace.WithAttributes(
		attribute.Int64("grading.exam_id", int64(examID)),
		attribute.Int64("grading.student_id", int64(studentID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.UpdateScoreResponse{}, err
	}

	total, ai := *payload.TotalScore, *payload.AIScore
	if err := grading.ValidateScores(total, ai); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score_out_of_range")
		return dto.UpdateScoreResponse{}, err
	}

	attempts, err := s.repo.ListAttempts(ctx, examID, studentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt_lookup_failed")
		return dto.UpdateScoreResponse{}, err
	}

	official, ok := grading.BestOf(attempts)
	if !ok {
		span.SetStatus(codes.Error, "submission_not_found")
		return dto.UpdateScoreResponse{}, ErrSubmissionNotFound
	}
	previousTotal := grading.Total(official.TotalScore, official.AIScore)

	updated, err := s.repo.ApplyScore(ctx, repository.ScoreUpdate{
		SubmissionID: official.ID,
		TotalScore:   total,
		AIScore:      ai,
		StudentName:  strings.TrimSpace(s.sanitizer.Sanitize(payload.StudentName)),
		ActorID:      actor.ID,
		ConfirmedAt:  s.now(),
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UpdateScoreResponse{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return dto.UpdateScoreResponse{}, err
	}

	submissionID := updated.ID
	s.audit(ctx, &models.GradeAudit{
		ExamID:        examID,
		SubmissionID:  &submissionID,
		StudentID:     &studentID,
		Action:        models.GradeActionScoreUpdate,
		TotalScore:    &total,
		AIScore:       &ai,
		PreviousTotal: &previousTotal,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
	})
	s.afterWrite(ctx, GradingEvent{Action: models.GradeActionScoreUpdate, ExamID: examID, StudentID: &studentID, Affected: 1, ActorID: actor.ID})

	suggested := grading.Total(updated.TotalScore, updated.AIScore)
	span.SetAttributes(
		attribute.Float64("grading.suggested_total", suggested),
		attribute.Bool("grading.decreased", suggested < previousTotal),
	)

	return dto.UpdateScoreResponse{
		SubmissionID:        updated.ID,
		ExamID:              updated.ExamID,
		StudentID:           updated.StudentID,
		TotalScore:          updated.TotalScore,
		AIScore:             updated.AIScore,
		SuggestedTotalScore: suggested,
		InstructorConfirmed: updated.InstructorConfirmed,
		Status:              updated.Status,
	}, nil
}

func (s *gradingService) ApproveAll(ctx context.Context, examID uint, actor Actor) (dto.ApproveAllResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.approve_all", trace.WithAttributes(attribute.Int64("grading.exam_id", int64(examID))))
	defer span.End()

	if _, err := s.repo.GetExam(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApproveAllResponse{}, ErrExamNotFound
		}
		span.RecordError(err)
		return dto.ApproveAllResponse{}, err
	}

	approved, err := s.repo.ApproveAll(ctx, examID, actor.ID, s.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "approve_failed")
		return dto.ApproveAllResponse{}, err
	}

	s.audit(ctx, &models.GradeAudit{
		ExamID:    examID,
		Action:    models.GradeActionBulkApprove,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Metadata:  map[string]interface{}{"approved": approved},
	})
	s.afterWrite(ctx, GradingEvent{Action: models.GradeActionBulkApprove, ExamID: examID, Affected: approved, ActorID: actor.ID})

	span.SetAttributes(attribute.Int64("grading.approved", approved))
	return dto.ApproveAllResponse{Approved: approved}, nil
}

func (s *gradingService) DeleteResult(ctx context.Context, examID, studentID uint, actor Actor) (dto.DeleteResultResponse, error) {
	deleted, err := s.repo.DeleteAttempts(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DeleteResultResponse{}, ErrSubmissionNotFound
		}
		return dto.DeleteResultResponse{}, err
	}

	s.audit(ctx, &models.GradeAudit{
		ExamID:    examID,
		StudentID: &studentID,
		Action:    models.GradeActionDelete,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Metadata:  map[string]interface{}{"deleted": deleted},
	})
	s.afterWrite(ctx, GradingEvent{Action: models.GradeActionDelete, ExamID: examID, StudentID: &studentID, Affected: deleted, ActorID: actor.ID})

	return dto.DeleteResultResponse{Deleted: deleted}, nil
}

// audit failures are logged, never returned: the grade itself is already stored.
func (s *gradingService) audit(ctx context.Context, entry *models.GradeAudit) {
	if err := s.repo.CreateAudit(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Uint("exam_id", entry.ExamID).Str("action", entry.Action).Msg("failed to persist grade audit")
	}
}

func (s *gradingService) afterWrite(ctx context.Context, event GradingEvent) {
	if s.cache != nil {
		if err := s.cache.Del(ctx, summaryCacheKey(event.ExamID)).Err(); err != nil {
			s.logger.Warn().Err(err).Uint("exam_id", event.ExamID).Msg("failed to invalidate summary cache")
		}
	}
	if s.events != nil {
		s.events.Publish(ctx, event)
	}
}
