package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/service"
	"github.com/classroomlabs/peergrade-api/internal/utils"
)

// ReportHandler manages grade-report endpoints, registered under the section
// routes.
type ReportHandler struct {
	reports  service.ReportService
	sections service.SectionService
	logger   zerolog.Logger
}

// NewReportHandler builds a report handler instance.
func NewReportHandler(reports service.ReportService, sections service.SectionService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reports:  reports,
		sections: sections,
		logger:   logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register attaches the routes to the provided section router group.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Post("/:id/report", h.generate)
	router.Get("/:id/report", h.latest)
	router.Get("/:id/report/history", h.history)
	router.Get("/:id/report/mine", h.mine)
}

func (h *ReportHandler) generate(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, sectionID); err != nil {
		return h.handleError(c, err)
	}

	report, err := h.reports.Generate(c.UserContext(), sectionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "report generated", report)
}

func (h *ReportHandler) latest(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, sectionID); err != nil {
		return h.handleError(c, err)
	}

	report, err := h.reports.Latest(c.UserContext(), sectionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "report retrieved", report)
}

func (h *ReportHandler) history(c *fiber.Ctx) error {
	sectionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section id")
	}

	if err := h.requireManage(c, sectionID); err != nil {
		return h.handleError(c, err)
	}

	reports, err := h.reports.History(c.UserContext(), sectionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "reports retrieved", reports)
}

// mine serves a student their own slice of the latest report, only once the
// section is showing results.
func (h *ReportHandler) mine(c *fiber.Ctx) error {
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

	section, err := h.sections.Get(c.UserContext(), sectionID)
	if err != nil {
		return h.handleError(c, err)
	}
	if section.Status != models.StatusViewingResults {
		return utils.SendError(c, fiber.StatusConflict, "results are not published yet")
	}

	result, err := h.reports.StudentResult(c.UserContext(), sectionID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result retrieved", result)
}

func (h *ReportHandler) requireManage(c *fiber.Ctx, sectionID uint) error {
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

func (h *ReportHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSectionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "section not found")
	case errors.Is(err, service.ErrReportNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "report not found")
	case errors.Is(err, service.ErrMissingAssignment):
		return utils.SendError(c, fiber.StatusConflict, "section has no assignment selected")
	case errors.Is(err, service.ErrAccessDenied):
		return utils.SendError(c, fiber.StatusForbidden, "access denied")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
