package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/middleware"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/service"
	"github.com/classroomlabs/peergrade-api/internal/utils"
)

// SectionHandler manages section lifecycle and roster endpoints.
type SectionHandler struct {
	sections service.SectionService
	logger   zerolog.Logger
}

// NewSectionHandler builds a section handler instance.
func NewSectionHandler(sections service.SectionService, logger zerolog.Logger) *SectionHandler {
	return &SectionHandler{
		sections: sections,
		logger:   logger.With().Str("component", "section_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SectionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), h.create)
	router.Post("/join/:code", middleware.WithAuth(h.join, middleware.AuthOptions{RequireUser: true}))
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Patch("/:id/status", h.updateStatus)
	router.Put("/:id/assignment", h.setAssignment)
	router.Post("/:id/end", h.endActivity)
	router.Post("/:id/link", h.toggleLink)
	router.Post("/:id/code", h.regenerateCode)
	router.Get("/:id/members", h.members)
}

func (h *SectionHandler) list(c *fiber.Ctx) error {
	sections, err := h.sections.ListForUser(c.UserContext(), currentUser(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "sections retrieved", sections)
}

func (h *SectionHandler) create(c *fiber.Ctx) error {
	var payload dto.SectionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	section, err := h.sections.Create(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "section created", section)
}

func (h *SectionHandler) join(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "join code required")
	}

	section, err := h.sections.Join(c.UserContext(), code, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "joined section", section)
}

func (h *SectionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireAccess(c, id); err != nil {
		return h.handleError(c, err)
	}

	section, err := h.sections.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "section retrieved", section)
}

func (h *SectionHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, id); err != nil {
		return h.handleError(c, err)
	}

	var payload dto.SectionUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	section, err := h.sections.Update(c.UserContext(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "section updated", section)
}

func (h *SectionHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, id); err != nil {
		return h.handleError(c, err)
	}

	if err := h.sections.Delete(c.UserContext(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "section deleted", nil)
}

func (h *SectionHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, id); err != nil {
		return h.handleError(c, err)
	}

	var payload dto.StatusUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	section, err := h.sections.UpdateStatus(c.UserContext(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "section status updated", section)
}

func (h *SectionHandler) setAssignment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, id); err != nil {
		return h.handleError(c, err)
	}

	var payload dto.SetAssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	section, err := h.sections.SetAssignment(c.UserContext(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "section assignment updated", section)
}

func (h *SectionHandler) endActivity(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, id); err != nil {
		return h.handleError(c, err)
	}

	section, err := h.sections.EndActivity(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "activity ended", section)
}

func (h *SectionHandler) toggleLink(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, id); err != nil {
		return h.handleError(c, err)
	}

	section, err := h.sections.ToggleLink(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "join link toggled", section)
}

func (h *SectionHandler) regenerateCode(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, id); err != nil {
		return h.handleError(c, err)
	}

	section, err := h.sections.RegenerateCode(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "join code regenerated", section)
}

func (h *SectionHandler) members(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireAccess(c, id); err != nil {
		return h.handleError(c, err)
	}

	members, err := h.sections.Members(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "members retrieved", members)
}

// requireAccess admits admins, the owning teacher, and enrolled members.
func (h *SectionHandler) requireAccess(c *fiber.Ctx, sectionID uint) error {
	allowed, err := h.sections.HasAccess(c.UserContext(), sectionID, currentUser(c))
	if err != nil {
		return err
	}
	if !allowed {
		return service.ErrAccessDenied
	}
	return nil
}

// requireManage admits admins and the owning teacher only.
func (h *SectionHandler) requireManage(c *fiber.Ctx, sectionID uint) error {
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

func (h *SectionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSectionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "section not found")
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, "invalid status transition")
	case errors.Is(err, service.ErrMissingAssignment):
		return utils.SendError(c, fiber.StatusConflict, "section has no assignment selected")
	case errors.Is(err, service.ErrInvalidState):
		return utils.SendError(c, fiber.StatusConflict, "operation not allowed in the current status")
	case errors.Is(err, service.ErrUnknownStatus):
		return utils.SendError(c, fiber.StatusBadRequest, "unknown section status")
	case errors.Is(err, service.ErrLinkInactive):
		return utils.SendError(c, fiber.StatusForbidden, "join link is not active")
	case errors.Is(err, service.ErrAlreadyMember):
		return utils.SendError(c, fiber.StatusConflict, "already a member of this section")
	case errors.Is(err, service.ErrAccessDenied):
		return utils.SendError(c, fiber.StatusForbidden, "access denied")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
