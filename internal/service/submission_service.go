package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/repository"
)

// Sentinel errors surfaced by submission operations.
var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadySubmitted   = errors.New("student already submitted for this assignment")
	ErrNoneRemaining      = errors.New("no submissions remaining to grade")
	ErrNotGrouped         = errors.New("user is not assigned to a group")
)

// SubmissionService handles turned-in work and the grading queues. Both Next
// operations hand out the lowest-ID unfinished submission so repeated calls
// walk the queue in a stable order.
type SubmissionService interface {
	Create(ctx context.Context, sectionID, studentID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Mine(ctx context.Context, sectionID, studentID uint) (dto.SubmissionResponse, error)
	ListBySection(ctx context.Context, sectionID uint) ([]dto.SubmissionResponse, error)
	CountBySection(ctx context.Context, sectionID uint) (int64, error)
	NextForIndividual(ctx context.Context, sectionID, graderID uint) (dto.SubmissionResponse, error)
	NextForGroup(ctx context.Context, sectionID, userID uint) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	sections    repository.SectionRepository
	memberships repository.MembershipRepository
	validator   *validator.Validate
	broadcaster Broadcaster
	logger      zerolog.Logger
}

// NewSubmissionService builds a new submission service. broadcaster may be nil.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	sections repository.SectionRepository,
	memberships repository.MembershipRepository,
	validate *validator.Validate,
	broadcaster Broadcaster,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		submissions: submissions,
		sections:    sections,
		memberships: memberships,
		validator:   validate,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

// Create stores the student's work for the section's active assignment. Only
// allowed during the writing phase, once per student and assignment.
func (s *submissionService) Create(ctx context.Context, sectionID, studentID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	section, err := s.section(ctx, sectionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if section.Status != models.StatusWriting {
		return dto.SubmissionResponse{}, ErrInvalidState
	}
	if section.AssignmentID == nil {
		return dto.SubmissionResponse{}, ErrMissingAssignment
	}

	if _, err := s.memberships.GetByUserAndSection(ctx, studentID, sectionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAccessDenied
		}
		return dto.SubmissionResponse{}, err
	}

	if _, err := s.submissions.GetByStudentAndAssignment(ctx, studentID, *section.AssignmentID); err == nil {
		return dto.SubmissionResponse{}, ErrAlreadySubmitted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		AssignmentID: *section.AssignmentID,
		StudentID:    studentID,
		Value:        payload.Value,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("section_id", sectionID).
		Uint("student_id", studentID).
		Uint("submission_id", submission.ID).
		Msg("submission received")

	if s.broadcaster != nil {
		s.broadcaster.EmitSubmissionReceived(sectionID, submission)
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Mine(ctx context.Context, sectionID, studentID uint) (dto.SubmissionResponse, error) {
	section, err := s.section(ctx, sectionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if section.AssignmentID == nil {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	submission, err := s.submissions.GetByStudentAndAssignment(ctx, studentID, *section.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) ListBySection(ctx context.Context, sectionID uint) ([]dto.SubmissionResponse, error) {
	section, err := s.section(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if section.AssignmentID == nil {
		return []dto.SubmissionResponse{}, nil
	}

	memberIDs, err := s.memberIDs(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByAssignmentAndStudents(ctx, *section.AssignmentID, memberIDs)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) CountBySection(ctx context.Context, sectionID uint) (int64, error) {
	section, err := s.section(ctx, sectionID)
	if err != nil {
		return 0, err
	}
	if section.AssignmentID == nil {
		return 0, nil
	}

	memberIDs, err := s.memberIDs(ctx, sectionID)
	if err != nil {
		return 0, err
	}

	return s.submissions.CountByAssignmentAndStudents(ctx, *section.AssignmentID, memberIDs)
}

// NextForIndividual hands the grader the next submission they have not
// finished, never their own. Exhaustion is reported as ErrNoneRemaining.
func (s *submissionService) NextForIndividual(ctx context.Context, sectionID, graderID uint) (dto.SubmissionResponse, error) {
	section, err := s.section(ctx, sectionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if section.Status != models.StatusGradingIndividual {
		return dto.SubmissionResponse{}, ErrInvalidState
	}
	if section.AssignmentID == nil {
		return dto.SubmissionResponse{}, ErrMissingAssignment
	}

	submission, err := s.submissions.NextForIndividual(ctx, graderID, *section.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrNoneRemaining
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

// NextForGroup hands the caller's group the next submission it has not
// finished. The pool is the section roster minus the group's own members, so
// a group never grades its own work.
func (s *submissionService) NextForGroup(ctx context.Context, sectionID, userID uint) (dto.SubmissionResponse, error) {
	section, err := s.section(ctx, sectionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if section.Status != models.StatusGradingGroups {
		return dto.SubmissionResponse{}, ErrInvalidState
	}
	if section.AssignmentID == nil {
		return dto.SubmissionResponse{}, ErrMissingAssignment
	}

	membership, err := s.memberships.GetByUserAndSection(ctx, userID, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAccessDenied
		}
		return dto.SubmissionResponse{}, err
	}
	if membership.GroupID == nil {
		return dto.SubmissionResponse{}, ErrNotGrouped
	}

	poolIDs, err := s.memberIDs(ctx, sectionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	groupMembers, err := s.memberships.ListByGroup(ctx, *membership.GroupID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	excludeIDs := make([]uint, 0, len(groupMembers))
	for _, member := range groupMembers {
		excludeIDs = append(excludeIDs, member.UserID)
	}

	submission, err := s.submissions.NextForGroup(ctx, *membership.GroupID, *section.AssignmentID, poolIDs, excludeIDs)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrNoneRemaining
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) section(ctx context.Context, sectionID uint) (models.Section, error) {
	section, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Section{}, ErrSectionNotFound
		}
		return models.Section{}, err
	}

	return section, nil
}

func (s *submissionService) memberIDs(ctx context.Context, sectionID uint) ([]uint, error) {
	memberships, err := s.memberships.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(memberships))
	for _, membership := range memberships {
		ids = append(ids, membership.UserID)
	}

	return ids, nil
}
