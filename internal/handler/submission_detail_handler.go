package handler

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-console/internal/service"
	"github.com/noah-isme/gema-exam-console/internal/utils"
)

// SubmissionDetailHandler serves the grading drawer's side panels.
type SubmissionDetailHandler struct {
	evidence service.EvidenceService
	detail   service.SubmissionDetailService
	logger   zerolog.Logger
}

// NewSubmissionDetailHandler constructs the handler.
func NewSubmissionDetailHandler(evidence service.EvidenceService, detail service.SubmissionDetailService, logger zerolog.Logger) *SubmissionDetailHandler {
	return &SubmissionDetailHandler{
		evidence: evidence,
		detail:   detail,
		logger:   logger.With().Str("component", "submission_detail_handler").Logger(),
	}
}

// Register attaches submission endpoints to the router group.
func (h *SubmissionDetailHandler) Register(router fiber.Router, writeGuards ...fiber.Handler) {
	router.Get("/:submissionId/evidence/:kind", h.fetchEvidence)
	router.Post("/:submissionId/evidence/:kind", withGuards(writeGuards, h.uploadEvidence)...)
	router.Get("/:submissionId/detail", h.questionDetail)
	router.Get("/:submissionId/proctoring", h.proctoring)
}

func (h *SubmissionDetailHandler) fetchEvidence(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	payload, err := h.evidence.Fetch(c.UserContext(), submissionID, c.Params("kind"))
	if err != nil {
		return h.evidenceError(c, err, submissionID, "failed to load evidence")
	}
	return utils.SendBinary(c, payload.ContentType, payload.Data)
}

func (h *SubmissionDetailHandler) uploadEvidence(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	if file.Size > service.MaxEvidenceBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, service.ErrEvidenceTooLarge.Error())
	}

	handle, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}
	defer handle.Close()

	data, err := io.ReadAll(io.LimitReader(handle, service.MaxEvidenceBytes+1))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}

	stored, err := h.evidence.Upload(c.UserContext(), submissionID, c.Params("kind"), data)
	if err != nil {
		return h.evidenceError(c, err, submissionID, "failed to store evidence")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "evidence stored", stored)
}

func (h *SubmissionDetailHandler) questionDetail(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	detail, err := h.detail.QuestionDetail(c.UserContext(), submissionID)
	if err != nil {
		return h.evidenceError(c, err, submissionID, "failed to load question detail")
	}
	return utils.SendSuccess(c, "question detail retrieved", detail)
}

func (h *SubmissionDetailHandler) proctoring(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	log, err := h.detail.ProctoringLog(c.UserContext(), submissionID)
	if err != nil {
		return h.evidenceError(c, err, submissionID, "failed to load proctoring log")
	}
	return utils.SendSuccess(c, "proctoring log retrieved", log)
}

func (h *SubmissionDetailHandler) evidenceError(c *fiber.Ctx, err error, submissionID uint, message string) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrEvidenceNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evidence not found")
	case errors.Is(err, service.ErrInvalidEvidenceKind), errors.Is(err, service.ErrEvidenceNotImage):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEvidenceTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Uint("submission_id", submissionID).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
