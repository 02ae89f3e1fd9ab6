package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-console/internal/middleware"
	"github.com/noah-isme/gema-exam-console/internal/service"
	"github.com/noah-isme/gema-exam-console/internal/utils"
)

// StudentResultHandler serves a student's attempts across exams.
type StudentResultHandler struct {
	results service.ExamResultService
	logger  zerolog.Logger
}

// NewStudentResultHandler constructs the handler.
func NewStudentResultHandler(results service.ExamResultService, logger zerolog.Logger) *StudentResultHandler {
	return &StudentResultHandler{
		results: results,
		logger:  logger.With().Str("component", "student_result_handler").Logger(),
	}
}

// Register attaches the overview endpoint to the students group.
func (h *StudentResultHandler) Register(router fiber.Router) {
	router.Get("/:studentId/results", middleware.WithAuth(h.list, middleware.AuthOptions{
		Role:        middleware.AuthRoleAny,
		RequireUser: true,
		OwnerParam:  "studentId",
	}))
}

func (h *StudentResultHandler) list(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	results, err := h.results.StudentResults(c.UserContext(), studentID)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("student_id", studentID).Msg("failed to load student results")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load student results")
	}
	return utils.OK(c, results, "student results retrieved", fiber.Map{"count": len(results)})
}
