package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-console/internal/dto"
	"github.com/noah-isme/gema-exam-console/internal/grading"
	"github.com/noah-isme/gema-exam-console/internal/service"
	"github.com/noah-isme/gema-exam-console/internal/utils"
)

// ExamResultHandler serves the instructor results view and its grading writes.
type ExamResultHandler struct {
	results service.ExamResultService
	grading service.GradingService
	logger  zerolog.Logger
}

// NewExamResultHandler constructs the handler.
func NewExamResultHandler(results service.ExamResultService, grading service.GradingService, logger zerolog.Logger) *ExamResultHandler {
	return &ExamResultHandler{
		results: results,
		grading: grading,
		logger:  logger.With().Str("component", "exam_result_handler").Logger(),
	}
}

// Register attaches the read endpoints to the exams group. Writes are wrapped
// by the supplied middleware chain.
func (h *ExamResultHandler) Register(router fiber.Router, writeGuards ...fiber.Handler) {
	router.Get("/:examId", h.exam)
	router.Get("/:examId/summary", h.summary)
	router.Get("/:examId/results", h.list)
	router.Get("/:examId/results/changes", h.changes)

	router.Put("/:examId/results/:studentId/score", withGuards(writeGuards, h.updateScore)...)
	router.Post("/:examId/results/approve-all", withGuards(writeGuards, h.approveAll)...)
	router.Delete("/:examId/results/:studentId", withGuards(writeGuards, h.deleteResult)...)
}

func (h *ExamResultHandler) exam(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	exam, err := h.results.Exam(c.UserContext(), examID)
	if err != nil {
		return h.readError(c, err, examID, "failed to load exam")
	}
	return utils.SendSuccess(c, "exam retrieved", exam)
}

func (h *ExamResultHandler) summary(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	summary, err := h.results.Summary(c.UserContext(), examID)
	if err != nil {
		return h.readError(c, err, examID, "failed to load summary")
	}
	return utils.SendSuccess(c, "summary retrieved", summary)
}

func (h *ExamResultHandler) list(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	results, err := h.results.Results(c.UserContext(), examID)
	if err != nil {
		return h.readError(c, err, examID, "failed to load results")
	}
	return utils.OK(c, results, "results retrieved", fiber.Map{"count": len(results)})
}

func (h *ExamResultHandler) changes(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	lastCount, err := parseQueryInt(c, "last_count")
	if err != nil || lastCount < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid last_count")
	}

	changes, err := h.results.Changes(c.UserContext(), examID, int64(lastCount))
	if err != nil {
		return h.readError(c, err, examID, "failed to check changes")
	}
	return utils.SendSuccess(c, "changes checked", changes)
}

func (h *ExamResultHandler) updateScore(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	var payload dto.UpdateScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.grading.UpdateScore(c.UserContext(), examID, studentID, payload, actorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, grading.ErrScoreOutOfRange):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, "scores must be between 0 and 10")
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("exam_id", examID).Uint("student_id", studentID).Msg("failed to update score")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update score")
		}
	}

	return utils.SendSuccess(c, "score updated", result)
}

func (h *ExamResultHandler) approveAll(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	result, err := h.grading.ApproveAll(c.UserContext(), examID, actorFromContext(c))
	if err != nil {
		return h.readError(c, err, examID, "failed to approve scores")
	}
	return utils.SendSuccess(c, "scores approved", result)
}

func (h *ExamResultHandler) deleteResult(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	result, err := h.grading.DeleteResult(c.UserContext(), examID, studentID, actorFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("exam_id", examID).Uint("student_id", studentID).Msg("failed to delete result")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete result")
	}
	return utils.SendSuccess(c, "result deleted", result)
}

func (h *ExamResultHandler) readError(c *fiber.Ctx, err error, examID uint, message string) error {
	if errors.Is(err, service.ErrExamNotFound) {
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	}
	requestLogger(h.logger, c).Error().Err(err).Uint("exam_id", examID).Msg(message)
	return utils.SendError(c, fiber.StatusInternalServerError, message)
}
