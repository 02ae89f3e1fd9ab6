package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/grading"
	"github.com/noah-isme/gema-exam-console/internal/models"
	"github.com/noah-isme/gema-exam-console/internal/repository"
)

// ErrExamNotFound indicates the exam does not exist.
var ErrExamNotFound = errors.New("exam not found")

// ErrStudentNotFound indicates the student does not exist.
var ErrStudentNotFound = errors.New("student not found")

// ExamResultService serves the read side of the instructor results view.
type ExamResultService interface {
	Exam(ctx context.Context, examID uint) (dto.ExamResponse, error)
	Changes(ctx context.Context, examID uint, lastCount int64) (dto.ChangeCountResponse, error)
	Summary(ctx context.Context, examID uint) (dto.ExamSummaryResponse, error)
	Results(ctx context.Context, examID uint) ([]dto.ExamResultResponse, error)
	StudentResults(ctx context.Context, studentID uint) ([]dto.ExamResultResponse, error)
}

type examResultService struct {
	repo     repository.ExamResultRepository
	students repository.StudentRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewExamResultService builds the results read service. students and cache may be nil.
func NewExamResultService(repo repository.ExamResultRepository, students repository.StudentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ExamResultService {
	return &examResultService{
		repo:     repo,
		students: students,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "exam_result_service").Logger(),
	}
}

func summaryCacheKey(examID uint) string {
	return fmt.Sprintf("exam:summary:%d", examID)
}

func (s *examResultService) Exam(ctx context.Context, examID uint) (dto.ExamResponse, error) {
	exam, err := s.repo.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}
	return dto.NewExamResponse(exam), nil
}

// Changes always reads the store; a cached count could hide fresh activity.
func (s *examResultService) Changes(ctx context.Context, examID uint, lastCount int64) (dto.ChangeCountResponse, error) {
	count, err := s.repo.ActivityCount(ctx, examID)
	if err != nil {
		return dto.ChangeCountResponse{}, err
	}
	return dto.ChangeCountResponse{HasChanges: count != lastCount, Count: count}, nil
}

// cachedSummary pairs a summary with the activity count it was built at, so a
// start or submission from the exam-taking flow makes the entry stale.
type cachedSummary struct {
	ActivityCount int64                   `json:"activity_count"`
	Summary       dto.ExamSummaryResponse `json:"summary"`
}

func (s *examResultService) Summary(ctx context.Context, examID uint) (dto.ExamSummaryResponse, error) {
	if _, err := s.Exam(ctx, examID); err != nil {
		return dto.ExamSummaryResponse{}, err
	}

	activity, err := s.repo.ActivityCount(ctx, examID)
	if err != nil {
		return dto.ExamSummaryResponse{}, err
	}

	cacheKey := summaryCacheKey(examID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var entry cachedSummary
			if unmarshalErr := json.Unmarshal([]byte(raw), &entry); unmarshalErr == nil && entry.ActivityCount == activity {
				s.logger.Debug().Uint("exam_id", examID).Msg("summary cache hit")
				return entry.Summary, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read summary cache")
		}
	}

	submissions, err := s.repo.ListByExam(ctx, examID)
	if err != nil {
		return dto.ExamSummaryResponse{}, err
	}

	response := buildSummary(examID, grading.SelectBest(submissions))

	if s.cache != nil {
		if payload, err := json.Marshal(cachedSummary{ActivityCount: activity, Summary: response}); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store summary cache")
			}
		}
	}

	return response, nil
}

func buildSummary(examID uint, submissions []models.ExamSubmission) dto.ExamSummaryResponse {
	summary := dto.ExamSummaryResponse{
		ExamID:            examID,
		TotalSubmissions:  len(submissions),
		ScoreDistribution: make([]int, dto.ScoreDistributionBuckets),
	}

	var scoreSum float64
	var scored int
	summary.LowestTotal = math.Inf(1)

	for _, submission := range submissions {
		summary.TotalCheating += submission.CheatingCount

		if submission.IsConfirmed() {
			summary.ConfirmedCount++
		}
		if !submission.IsSubmitted() {
			summary.PendingCount++
			continue
		}
		summary.SubmittedCount++

		total := grading.Total(submission.TotalScore, submission.AIScore)
		scoreSum += total
		scored++
		summary.HighestTotal = math.Max(summary.HighestTotal, total)
		summary.LowestTotal = math.Min(summary.LowestTotal, total)
		summary.ScoreDistribution[dto.DistributionBucket(total)]++

		if submission.SubmittedAt != nil && (summary.LastSubmissionAt == nil || submission.SubmittedAt.After(*summary.LastSubmissionAt)) {
			submittedAt := *submission.SubmittedAt
			summary.LastSubmissionAt = &submittedAt
		}
	}

	if scored > 0 {
		summary.AverageTotal = math.Round(scoreSum/float64(scored)*100) / 100
	} else {
		summary.LowestTotal = 0
	}

	return summary
}

// Results returns one row per student: the official attempt when a student
// has retaken the exam.
func (s *examResultService) Results(ctx context.Context, examID uint) ([]dto.ExamResultResponse, error) {
	if _, err := s.Exam(ctx, examID); err != nil {
		return nil, err
	}

	submissions, err := s.repo.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	official := grading.SelectBest(submissions)
	responses := make([]dto.ExamResultResponse, 0, len(official))
	for _, submission := range official {
		responses = append(responses, dto.NewExamResultResponse(submission))
	}
	return responses, nil
}

// StudentResults returns every attempt of a student; collapsing happens in the console.
func (s *examResultService) StudentResults(ctx context.Context, studentID uint) ([]dto.ExamResultResponse, error) {
	submissions, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(submissions) == 0 && s.students != nil {
		exists, err := s.students.Exists(ctx, studentID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrStudentNotFound
		}
	}

	responses := make([]dto.ExamResultResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewExamResultResponse(submission))
	}
	return responses, nil
}
