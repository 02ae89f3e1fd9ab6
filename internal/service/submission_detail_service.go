package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/grading"
	"github.com/noah-isme/gema-exam-console/internal/models"
	"github.com/noah-isme/gema-exam-console/internal/repository"
)

// SubmissionDetailService serves the grading drawer's side panels.
type SubmissionDetailService interface {
	QuestionDetail(ctx context.Context, submissionID uint) (dto.QuestionDetailResponse, error)
	ProctoringLog(ctx context.Context, submissionID uint) (dto.ProctoringLogResponse, error)
}

type submissionDetailService struct {
	submissions repository.ExamResultRepository
	questions   repository.QuestionRepository
	proctoring  repository.ProctoringRepository
	logger      zerolog.Logger
}

// NewSubmissionDetailService constructs the detail service.
func NewSubmissionDetailService(submissions repository.ExamResultRepository, questions repository.QuestionRepository, proctoring repository.ProctoringRepository, logger zerolog.Logger) SubmissionDetailService {
	return &submissionDetailService{
		submissions: submissions,
		questions:   questions,
		proctoring:  proctoring,
		logger:      logger.With().Str("component", "submission_detail_service").Logger(),
	}
}

func (s *submissionDetailService) lookup(ctx context.Context, submissionID uint) (models.ExamSubmission, error) {
	submission, err := s.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ExamSubmission{}, ErrSubmissionNotFound
		}
		return models.ExamSubmission{}, err
	}
	return submission, nil
}

func (s *submissionDetailService) QuestionDetail(ctx context.Context, submissionID uint) (dto.QuestionDetailResponse, error) {
	requested, err := s.lookup(ctx, submissionID)
	if err != nil {
		return dto.QuestionDetailResponse{}, err
	}

	attempts, err := s.submissions.ListAttempts(ctx, requested.ExamID, requested.StudentID)
	if err != nil {
		return dto.QuestionDetailResponse{}, err
	}

	response := dto.QuestionDetailResponse{
		SubmissionID:  requested.ID,
		AttemptCount:  len(attempts),
		IsBestAttempt: len(attempts) > 1,
	}

	// The drawer always shows the official attempt. When another attempt is
	// official, its answers are shown and the requested one is reported as replaced.
	shown := requested
	if best, ok := grading.BestOf(attempts); ok && len(attempts) > 1 {
		if best.ID != requested.ID {
			shown = best
			replaced := requested.ID
			response.SubmissionID = best.ID
			response.ReplacesSubmissionID = &replaced
		}
	}

	questions, err := s.questions.ListQuestions(ctx, shown.ExamID)
	if err != nil {
		return dto.QuestionDetailResponse{}, err
	}
	answers, err := s.questions.ListAnswers(ctx, shown.ID)
	if err != nil {
		return dto.QuestionDetailResponse{}, err
	}

	response.Questions = make([]dto.QuestionResponse, 0, len(questions))
	response.Options = make([]dto.OptionResponse, 0)
	for _, question := range questions {
		response.Questions = append(response.Questions, dto.QuestionResponse{
			ID:       question.ID,
			Position: question.Position,
			Kind:     question.Kind,
			Prompt:   question.Prompt,
			Points:   question.Points,
		})
		for _, option := range question.Options {
			response.Options = append(response.Options, dto.OptionResponse{
				ID:         option.ID,
				QuestionID: option.QuestionID,
				Label:      option.Label,
				Text:       option.Text,
				IsCorrect:  option.IsCorrect,
			})
		}
	}

	response.Answers = make([]dto.AnswerResponse, 0, len(answers))
	for _, answer := range answers {
		response.Answers = append(response.Answers, dto.AnswerResponse{
			QuestionID: answer.QuestionID,
			OptionID:   answer.OptionID,
			EssayText:  answer.EssayText,
			Score:      answer.Score,
			AIScore:    answer.AIScore,
		})
	}

	return response, nil
}

func (s *submissionDetailService) ProctoringLog(ctx context.Context, submissionID uint) (dto.ProctoringLogResponse, error) {
	if _, err := s.lookup(ctx, submissionID); err != nil {
		return dto.ProctoringLogResponse{}, err
	}

	events, err := s.proctoring.ListEvents(ctx, submissionID)
	if err != nil {
		return dto.ProctoringLogResponse{}, err
	}

	response := dto.ProctoringLogResponse{
		SubmissionID: submissionID,
		Events:       make([]dto.ProctoringEventResponse, 0, len(events)),
		CountsBySeverity: map[string]int{
			models.SeverityLow:    0,
			models.SeverityMedium: 0,
			models.SeverityHigh:   0,
		},
		Total: len(events),
	}

	for _, event := range events {
		response.CountsBySeverity[event.Severity]++
		response.Events = append(response.Events, dto.ProctoringEventResponse{
			EventType:  event.EventType,
			Severity:   event.Severity,
			OccurredAt: event.OccurredAt,
			Details:    event.Details,
		})
	}

	return response, nil
}
