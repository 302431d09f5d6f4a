package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/repository"
)

// ErrCriterionNotFound indicates the requested criterion does not exist.
var ErrCriterionNotFound = errors.New("criterion not found")

// Tally sums the points of every criterion the evaluation checked. Negative
// criteria subtract.
func Tally(rubric models.Rubric, score models.Score) int {
	total := 0
	for _, criterion := range rubric.Criteria {
		if score.CriterionChecked(criterion.ID) {
			total += criterion.Points
		}
	}

	return total
}

// MaxPoints is the best achievable tally: the sum of positive criterion
// points. Deductions never raise the ceiling.
func MaxPoints(rubric models.Rubric) int {
	total := 0
	for _, criterion := range rubric.Criteria {
		if criterion.Points > 0 {
			total += criterion.Points
		}
	}

	return total
}

// CalculatePercentage converts a tally into a percentage of the achievable
// maximum. A rubric with no positive points yields 0 rather than dividing by
// zero.
func CalculatePercentage(tally, maxPoints int) float64 {
	if maxPoints <= 0 {
		return 0
	}

	return float64(tally) / float64(maxPoints) * 100
}

// RubricService manages rubrics, their criteria, and assignments built on
// them. Free-text fields are sanitized before storage.
type RubricService interface {
	List(ctx context.Context) ([]dto.RubricResponse, error)
	Get(ctx context.Context, id uint) (dto.RubricResponse, error)
	Create(ctx context.Context, payload dto.RubricCreateRequest) (dto.RubricResponse, error)
	Update(ctx context.Context, id uint, payload dto.RubricUpdateRequest) (dto.RubricResponse, error)
	Delete(ctx context.Context, id uint) error
	CreateCriterion(ctx context.Context, rubricID uint, payload dto.CriterionCreateRequest) (dto.CriterionResponse, error)
	UpdateCriterion(ctx context.Context, id uint, payload dto.CriterionUpdateRequest) (dto.CriterionResponse, error)
	DeleteCriterion(ctx context.Context, id uint) error
	ListAssignments(ctx context.Context) ([]dto.AssignmentResponse, error)
	CreateAssignment(ctx context.Context, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	DeleteAssignment(ctx context.Context, id uint) error
}

type rubricService struct {
	rubrics     repository.RubricRepository
	assignments repository.AssignmentRepository
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewRubricService builds a new rubric service.
func NewRubricService(rubrics repository.RubricRepository, assignments repository.AssignmentRepository, validate *validator.Validate, logger zerolog.Logger) RubricService {
	return &rubricService{
		rubrics:     rubrics,
		assignments: assignments,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "rubric_service").Logger(),
	}
}

func (s *rubricService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *rubricService) List(ctx context.Context) ([]dto.RubricResponse, error) {
	rubrics, err := s.rubrics.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewRubricResponseSlice(rubrics), nil
}

func (s *rubricService) Get(ctx context.Context, id uint) (dto.RubricResponse, error) {
	rubric, err := s.rubrics.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RubricResponse{}, ErrRubricNotFound
		}
		return dto.RubricResponse{}, err
	}

	return dto.NewRubricResponse(rubric), nil
}

func (s *rubricService) Create(ctx context.Context, payload dto.RubricCreateRequest) (dto.RubricResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricResponse{}, err
	}

	rubric := models.Rubric{Name: s.clean(payload.Name)}
	if err := s.rubrics.Create(ctx, &rubric); err != nil {
		return dto.RubricResponse{}, err
	}

	s.logger.Info().Uint("rubric_id", rubric.ID).Msg("rubric created")

	return dto.NewRubricResponse(rubric), nil
}

func (s *rubricService) Update(ctx context.Context, id uint, payload dto.RubricUpdateRequest) (dto.RubricResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricResponse{}, err
	}

	rubric, err := s.rubrics.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RubricResponse{}, ErrRubricNotFound
		}
		return dto.RubricResponse{}, err
	}

	if payload.Name != nil {
		rubric.Name = s.clean(*payload.Name)
	}

	if err := s.rubrics.Update(ctx, &rubric); err != nil {
		return dto.RubricResponse{}, err
	}

	return dto.NewRubricResponse(rubric), nil
}

func (s *rubricService) Delete(ctx context.Context, id uint) error {
	if err := s.rubrics.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRubricNotFound
		}
		return err
	}

	s.logger.Info().Uint("rubric_id", id).Msg("rubric deleted")
	return nil
}

func (s *rubricService) CreateCriterion(ctx context.Context, rubricID uint, payload dto.CriterionCreateRequest) (dto.CriterionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CriterionResponse{}, err
	}

	if _, err := s.rubrics.GetByID(ctx, rubricID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CriterionResponse{}, ErrRubricNotFound
		}
		return dto.CriterionResponse{}, err
	}

	criterion := models.Criterion{
		RubricID:    rubricID,
		Name:        s.clean(payload.Name),
		Description: s.clean(payload.Description),
		Points:      payload.Points,
	}
	if err := s.rubrics.CreateCriterion(ctx, &criterion); err != nil {
		return dto.CriterionResponse{}, err
	}

	return dto.NewCriterionResponse(criterion), nil
}

func (s *rubricService) UpdateCriterion(ctx context.Context, id uint, payload dto.CriterionUpdateRequest) (dto.CriterionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CriterionResponse{}, err
	}

	criterion, err := s.rubrics.GetCriterion(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CriterionResponse{}, ErrCriterionNotFound
		}
		return dto.CriterionResponse{}, err
	}

	if payload.Name != nil {
		criterion.Name = s.clean(*payload.Name)
	}
	if payload.Description != nil {
		criterion.Description = s.clean(*payload.Description)
	}
	if payload.Points != nil {
		criterion.Points = *payload.Points
	}

	if err := s.rubrics.UpdateCriterion(ctx, &criterion); err != nil {
		return dto.CriterionResponse{}, err
	}

	return dto.NewCriterionResponse(criterion), nil
}

func (s *rubricService) DeleteCriterion(ctx context.Context, id uint) error {
	if err := s.rubrics.DeleteCriterion(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCriterionNotFound
		}
		return err
	}

	return nil
}

func (s *rubricService) ListAssignments(ctx context.Context) ([]dto.AssignmentResponse, error) {
	assignments, err := s.assignments.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, dto.NewAssignmentResponse(assignment))
	}

	return responses, nil
}

func (s *rubricService) CreateAssignment(ctx context.Context, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if _, err := s.rubrics.GetByID(ctx, payload.RubricID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrRubricNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	assignment := models.Assignment{
		Name:        s.clean(payload.Name),
		Description: s.clean(payload.Description),
		RubricID:    payload.RubricID,
	}
	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *rubricService) DeleteAssignment(ctx context.Context, id uint) error {
	if err := s.assignments.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	return nil
}
