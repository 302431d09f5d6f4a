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

// ScoreHandler manages grading endpoints: individual scores and the group
// consensus round trip. Successful group edits are pushed to the group's
// realtime room.
type ScoreHandler struct {
	scores      service.ScoreService
	broadcaster service.Broadcaster
	logger      zerolog.Logger
}

// NewScoreHandler builds a score handler instance. broadcaster may be nil.
func NewScoreHandler(scores service.ScoreService, broadcaster service.Broadcaster, logger zerolog.Logger) *ScoreHandler {
	return &ScoreHandler{
		scores:      scores,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "score_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ScoreHandler) Register(router fiber.Router) {
	router.Post("/individual", h.createIndividual)
	router.Post("/group", h.findOrCreateGroup)
	router.Get("/submission/:id", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), h.forSubmission)
	router.Get("/:id", h.get)
	router.Put("/:id/evaluation", h.updateEvaluation)
	router.Post("/:id/sign", h.sign)
}

func (h *ScoreHandler) createIndividual(c *fiber.Ctx) error {
	var payload dto.IndividualScoreCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	score, err := h.scores.CreateIndividual(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "score recorded", score)
}

func (h *ScoreHandler) findOrCreateGroup(c *fiber.Ctx) error {
	var payload dto.GroupScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	score, err := h.scores.FindOrCreateGroupScore(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "group score retrieved", score)
}

func (h *ScoreHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid score id")
	}

	allowed, err := h.scores.HasAccess(c.UserContext(), id, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	if !allowed {
		return utils.SendError(c, fiber.StatusForbidden, "access denied")
	}

	score, err := h.scores.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "score retrieved", score)
}

func (h *ScoreHandler) updateEvaluation(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid score id")
	}

	var payload dto.EvaluationUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	score, err := h.scores.UpdateEvaluation(c.UserContext(), id, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	if h.broadcaster != nil && score.GroupID != nil {
		h.broadcaster.EmitScoreUpdated(*score.GroupID, score, false)
	}

	return utils.SendSuccess(c, "evaluation updated", score)
}

func (h *ScoreHandler) sign(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid score id")
	}

	score, reached, err := h.scores.SignEvaluation(c.UserContext(), id, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	if h.broadcaster != nil && score.GroupID != nil {
		h.broadcaster.EmitScoreUpdated(*score.GroupID, score, reached)
	}

	return utils.SendSuccess(c, "evaluation signed", fiber.Map{
		"score":             score,
		"consensus_reached": reached,
	})
}

func (h *ScoreHandler) forSubmission(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	scores, err := h.scores.ForSubmission(c.UserContext(), submissionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scores retrieved", scores)
}

func (h *ScoreHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrScoreNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "score not found")
	case errors.Is(err, service.ErrRubricNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "rubric not found")
	case errors.Is(err, service.ErrScoreFinalized):
		return utils.SendError(c, fiber.StatusConflict, "score is finalized")
	case errors.Is(err, service.ErrUnknownCriterion):
		return utils.SendError(c, fiber.StatusBadRequest, "evaluation references an unknown criterion")
	case errors.Is(err, service.ErrAccessDenied):
		return utils.SendError(c, fiber.StatusForbidden, "access denied")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
