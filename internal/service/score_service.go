package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/repository"
)

// Sentinel errors surfaced by score operations.
var (
	ErrScoreNotFound    = errors.New("score not found")
	ErrScoreFinalized   = errors.New("score is finalized and can no longer change")
	ErrUnknownCriterion = errors.New("evaluation references a criterion outside the rubric")
	ErrRubricNotFound   = errors.New("rubric not found")
)

// ScoreService runs individual gradings and the group consensus protocol.
//
// A group score converges through rounds: any member may rewrite the shared
// evaluation, which wipes all signatures; members then sign the content they
// agree with. The score finalizes once every *current* group member has
// signed, and finalization is permanent.
type ScoreService interface {
	Get(ctx context.Context, id uint) (dto.ScoreResponse, error)
	CreateIndividual(ctx context.Context, scorerID uint, payload dto.IndividualScoreCreateRequest) (dto.ScoreResponse, error)
	FindOrCreateGroupScore(ctx context.Context, userID uint, payload dto.GroupScoreRequest) (dto.ScoreResponse, error)
	UpdateEvaluation(ctx context.Context, scoreID, userID uint, payload dto.EvaluationUpdateRequest) (dto.ScoreResponse, error)
	SignEvaluation(ctx context.Context, scoreID, userID uint) (dto.ScoreResponse, bool, error)
	HasAccess(ctx context.Context, scoreID, userID uint) (bool, error)
	ForSubmission(ctx context.Context, submissionID uint) ([]dto.ScoreResponse, error)
	ForAssignment(ctx context.Context, assignmentID uint) ([]dto.ScoreResponse, error)
}

type scoreService struct {
	scores      repository.ScoreRepository
	memberships repository.MembershipRepository
	rubrics     repository.RubricRepository
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewScoreService builds a new score service.
func NewScoreService(
	scores repository.ScoreRepository,
	memberships repository.MembershipRepository,
	rubrics repository.RubricRepository,
	validate *validator.Validate,
	logger zerolog.Logger,
) ScoreService {
	return &scoreService{
		scores:      scores,
		memberships: memberships,
		rubrics:     rubrics,
		validator:   validate,
		logger:      logger.With().Str("component", "score_service").Logger(),
	}
}

func (s *scoreService) Get(ctx context.Context, id uint) (dto.ScoreResponse, error) {
	score, err := s.score(ctx, id)
	if err != nil {
		return dto.ScoreResponse{}, err
	}

	return dto.NewScoreResponse(score), nil
}

// CreateIndividual records a finished individual grading. Individual scores
// need no consensus, so they are done on arrival.
func (s *scoreService) CreateIndividual(ctx context.Context, scorerID uint, payload dto.IndividualScoreCreateRequest) (dto.ScoreResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ScoreResponse{}, err
	}

	if err := s.validateEvaluation(ctx, payload.RubricID, payload.Evaluation); err != nil {
		return dto.ScoreResponse{}, err
	}

	score := models.Score{
		SubmissionID: payload.SubmissionID,
		AssignmentID: payload.AssignmentID,
		RubricID:     payload.RubricID,
		ScorerID:     &scorerID,
		Evaluation:   dto.JSONFromBoolMap(payload.Evaluation),
		Signed:       dto.JSONFromBoolMap(nil),
		Done:         true,
	}
	if err := s.scores.Create(ctx, &score); err != nil {
		return dto.ScoreResponse{}, err
	}

	s.logger.Info().
		Uint("score_id", score.ID).
		Uint("scorer_id", scorerID).
		Uint("submission_id", score.SubmissionID).
		Msg("individual score recorded")

	return dto.NewScoreResponse(score), nil
}

// FindOrCreateGroupScore returns the shared score for the group and
// submission pair, creating an empty one on first access. Idempotent, so
// every group member lands on the same row. Only current group members may
// open it.
func (s *scoreService) FindOrCreateGroupScore(ctx context.Context, userID uint, payload dto.GroupScoreRequest) (dto.ScoreResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ScoreResponse{}, err
	}

	members, err := s.memberships.ListByGroup(ctx, payload.GroupID)
	if err != nil {
		return dto.ScoreResponse{}, err
	}
	isMember := false
	for _, member := range members {
		if member.UserID == userID {
			isMember = true
			break
		}
	}
	if !isMember {
		return dto.ScoreResponse{}, ErrAccessDenied
	}

	score, err := s.scores.GetByGroupAndSubmission(ctx, payload.GroupID, payload.SubmissionID)
	if err == nil {
		return dto.NewScoreResponse(score), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ScoreResponse{}, err
	}

	score = models.Score{
		SubmissionID: payload.SubmissionID,
		AssignmentID: payload.AssignmentID,
		RubricID:     payload.RubricID,
		GroupID:      &payload.GroupID,
		Evaluation:   dto.JSONFromBoolMap(nil),
		Signed:       dto.JSONFromBoolMap(nil),
	}
	if err := s.scores.Create(ctx, &score); err != nil {
		return dto.ScoreResponse{}, err
	}

	s.logger.Info().
		Uint("score_id", score.ID).
		Uint("group_id", payload.GroupID).
		Uint("submission_id", payload.SubmissionID).
		Msg("group score opened")

	return dto.NewScoreResponse(score), nil
}

// UpdateEvaluation replaces the evaluation wholesale and wipes every
// signature, including the editor's own: a signature only ever vouches for
// the exact content present when it was given.
func (s *scoreService) UpdateEvaluation(ctx context.Context, scoreID, userID uint, payload dto.EvaluationUpdateRequest) (dto.ScoreResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ScoreResponse{}, err
	}

	score, err := s.score(ctx, scoreID)
	if err != nil {
		return dto.ScoreResponse{}, err
	}

	if score.Done {
		return dto.ScoreResponse{}, ErrScoreFinalized
	}

	allowed, err := s.hasAccess(ctx, score, userID)
	if err != nil {
		return dto.ScoreResponse{}, err
	}
	if !allowed {
		return dto.ScoreResponse{}, ErrAccessDenied
	}

	if err := s.validateEvaluation(ctx, score.RubricID, payload.Evaluation); err != nil {
		return dto.ScoreResponse{}, err
	}

	score.Evaluation = dto.JSONFromBoolMap(payload.Evaluation)
	score.Signed = dto.JSONFromBoolMap(nil)
	if err := s.scores.Update(ctx, &score); err != nil {
		return dto.ScoreResponse{}, err
	}

	return dto.NewScoreResponse(score), nil
}

// SignEvaluation registers the caller's agreement and finalizes the score if
// that completes consensus. Returns whether consensus was reached on this
// call.
func (s *scoreService) SignEvaluation(ctx context.Context, scoreID, userID uint) (dto.ScoreResponse, bool, error) {
	score, err := s.score(ctx, scoreID)
	if err != nil {
		return dto.ScoreResponse{}, false, err
	}

	if score.Done {
		return dto.ScoreResponse{}, false, ErrScoreFinalized
	}

	allowed, err := s.hasAccess(ctx, score, userID)
	if err != nil {
		return dto.ScoreResponse{}, false, err
	}
	if !allowed {
		return dto.ScoreResponse{}, false, ErrAccessDenied
	}

	if score.Signed == nil {
		score.Signed = dto.JSONFromBoolMap(nil)
	}
	score.Signed[strconv.FormatUint(uint64(userID), 10)] = true

	reached, err := s.consensusReached(ctx, score)
	if err != nil {
		return dto.ScoreResponse{}, false, err
	}
	if reached {
		score.Done = true
	}

	if err := s.scores.Update(ctx, &score); err != nil {
		return dto.ScoreResponse{}, false, err
	}

	if reached {
		s.logger.Info().
			Uint("score_id", score.ID).
			Msg("group score finalized by consensus")
	}

	return dto.NewScoreResponse(score), reached, nil
}

func (s *scoreService) HasAccess(ctx context.Context, scoreID, userID uint) (bool, error) {
	score, err := s.score(ctx, scoreID)
	if err != nil {
		return false, err
	}

	return s.hasAccess(ctx, score, userID)
}

func (s *scoreService) ForSubmission(ctx context.Context, submissionID uint) ([]dto.ScoreResponse, error) {
	scores, err := s.scores.ListDoneBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	return dto.NewScoreResponseSlice(scores), nil
}

func (s *scoreService) ForAssignment(ctx context.Context, assignmentID uint) ([]dto.ScoreResponse, error) {
	scores, err := s.scores.ListDoneByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	return dto.NewScoreResponseSlice(scores), nil
}

// consensusReached checks signatures against the group's *current* roster.
// Signatures from users no longer in the group are ignored rather than
// pruned, so a departed member can never block consensus.
func (s *scoreService) consensusReached(ctx context.Context, score models.Score) (bool, error) {
	if !score.IsGroupScore() {
		return false, nil
	}

	members, err := s.memberships.ListByGroup(ctx, *score.GroupID)
	if err != nil {
		return false, err
	}
	if len(members) == 0 {
		return false, nil
	}

	signed := dto.SignedSetFromJSON(score.Signed)
	for _, member := range members {
		if _, ok := signed[member.UserID]; !ok {
			return false, nil
		}
	}

	return true, nil
}

// hasAccess allows the individual scorer, or any current member of the
// owning group.
func (s *scoreService) hasAccess(ctx context.Context, score models.Score, userID uint) (bool, error) {
	if score.ScorerID != nil {
		return *score.ScorerID == userID, nil
	}
	if score.GroupID == nil {
		return false, nil
	}

	members, err := s.memberships.ListByGroup(ctx, *score.GroupID)
	if err != nil {
		return false, err
	}

	for _, member := range members {
		if member.UserID == userID {
			return true, nil
		}
	}

	return false, nil
}

// validateEvaluation rejects criterion keys that do not belong to the rubric.
func (s *scoreService) validateEvaluation(ctx context.Context, rubricID uint, evaluation map[string]bool) error {
	rubric, err := s.rubrics.GetByID(ctx, rubricID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRubricNotFound
		}
		return err
	}

	known := make(map[string]struct{}, len(rubric.Criteria))
	for _, criterion := range rubric.Criteria {
		known[strconv.FormatUint(uint64(criterion.ID), 10)] = struct{}{}
	}

	for key := range evaluation {
		if _, ok := known[key]; !ok {
			return ErrUnknownCriterion
		}
	}

	return nil
}

func (s *scoreService) score(ctx context.Context, id uint) (models.Score, error) {
	score, err := s.scores.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Score{}, ErrScoreNotFound
		}
		return models.Score{}, err
	}

	return score, nil
}
