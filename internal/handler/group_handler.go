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

// GroupHandler manages grading-group endpoints, registered under the section
// routes.
type GroupHandler struct {
	groups   service.GroupService
	sections service.SectionService
	logger   zerolog.Logger
}

// NewGroupHandler builds a group handler instance.
func NewGroupHandler(groups service.GroupService, sections service.SectionService, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{
		groups:   groups,
		sections: sections,
		logger:   logger.With().Str("component", "group_handler").Logger(),
	}
}

// Register attaches the routes to the provided section router group.
func (h *GroupHandler) Register(router fiber.Router) {
	router.Post("/:id/groups", h.generate)
	router.Get("/:id/groups", h.list)
	router.Delete("/:id/groups", h.delete)
	router.Get("/:id/groups/mine", h.mine)
}

func (h *GroupHandler) generate(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, sectionID); err != nil {
		return h.handleError(c, err)
	}

	var payload dto.GroupGenerateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	groups, err := h.groups.Generate(c.UserContext(), sectionID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "groups generated", groups)
}

func (h *GroupHandler) list(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	allowed, err := h.sections.HasAccess(c.UserContext(), sectionID, currentUser(c))
	if err != nil {
		return h.handleError(c, err)
	}
	if !allowed {
		return utils.SendError(c, fiber.StatusForbidden, "access denied")
	}

	groups, err := h.groups.BySection(c.UserContext(), sectionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "groups retrieved", groups)
}

func (h *GroupHandler) delete(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, sectionID); err != nil {
		return h.handleError(c, err)
	}

	if err := h.groups.DeleteBySection(c.UserContext(), sectionID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "groups deleted", nil)
}

func (h *GroupHandler) mine(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	group, err := h.groups.UserGroup(c.UserContext(), sectionID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "group retrieved", group)
}

func (h *GroupHandler) requireManage(c *fiber.Ctx, sectionID uint) error {
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

func (h *GroupHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSectionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "section not found")
	case errors.Is(err, service.ErrGroupNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "group not found")
	case errors.Is(err, service.ErrNoMembers):
		return utils.SendError(c, fiber.StatusConflict, "section has no members to group")
	case errors.Is(err, service.ErrAccessDenied):
		return utils.SendError(c, fiber.StatusForbidden, "access denied")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
