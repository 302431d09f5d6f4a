package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/service"
	"github.com/classroomlabs/peergrade-api/internal/utils"
)

// SubmissionHandler manages submission and grading-queue endpoints, registered
// under the section routes.
type SubmissionHandler struct {
	submissions service.SubmissionService
	sections    service.SectionService
	logger      zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(submissions service.SubmissionService, sections service.SectionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		sections:    sections,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided section router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("/:id/submissions", h.create)
	router.Get("/:id/submissions", h.list)
	router.Delete("/:id/submissions", h.deleteAll)
	router.Get("/:id/submissions/count", h.count)
	router.Get("/:id/submissions/mine", h.mine)
	router.Get("/:id/submissions/next-individual", h.nextIndividual)
	router.Get("/:id/submissions/next-group", h.nextGroup)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.Create(c.UserContext(), sectionID, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, sectionID); err != nil {
		return h.handleError(c, err)
	}

	submissions, err := h.submissions.ListBySection(c.UserContext(), sectionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

// deleteAll clears the section's submissions for the current assignment so
// the teacher can restart the writing phase.
func (h *SubmissionHandler) deleteAll(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, sectionID); err != nil {
		return h.handleError(c, err)
	}

	deleted, err := h.sections.DeleteSubmissions(c.UserContext(), sectionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions deleted", fiber.Map{"deleted": deleted})
}

func (h *SubmissionHandler) count(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, sectionID); err != nil {
		return h.handleError(c, err)
	}

	count, err := h.submissions.CountBySection(c.UserContext(), sectionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission count retrieved", fiber.Map{"count": count})
}

func (h *SubmissionHandler) mine(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	submission, err := h.submissions.Mine(c.UserContext(), sectionID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

// nextIndividual pops the caller's grading queue. An exhausted queue is a
// successful empty response, not an error.
func (h *SubmissionHandler) nextIndividual(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	submission, err := h.submissions.NextForIndividual(c.UserContext(), sectionID, userIDFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrNoneRemaining) {
			return utils.SendSuccess(c, "no submissions remaining", nil)
		}
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) nextGroup(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	submission, err := h.submissions.NextForGroup(c.UserContext(), sectionID, userIDFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrNoneRemaining) {
			return utils.SendSuccess(c, "no submissions remaining", nil)
		}
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) requireManage(c *fiber.Ctx, sectionID uint) error {
	user := currentUser(c)
	if user.Role == models.RoleAdmin {
		return nil
	}

	section, err := h.sections.Get(c.UserContext(), sectionID)
	if err != nil {
		return err
	}
	if section.TeacherID != user.ID {
		return service.ErrAccessDenied
	}
	return nil
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSectionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "section not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrAlreadySubmitted):
		return utils.SendError(c, fiber.StatusConflict, "already submitted for this assignment")
	case errors.Is(err, service.ErrInvalidState):
		return utils.SendError(c, fiber.StatusConflict, "operation not allowed in the current status")
	case errors.Is(err, service.ErrMissingAssignment):
		return utils.SendError(c, fiber.StatusConflict, "section has no assignment selected")
	case errors.Is(err, service.ErrNotGrouped):
		return utils.SendError(c, fiber.StatusConflict, "not assigned to a group")
	case errors.Is(err, service.ErrAccessDenied):
		return utils.SendError(c, fiber.StatusForbidden, "access denied")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
