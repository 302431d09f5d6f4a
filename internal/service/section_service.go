package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/repository"
)

// joinCodeBytes is the entropy of a section join code before encoding.
const joinCodeBytes = 12

// Sentinel errors surfaced by section operations.
var (
	ErrSectionNotFound    = errors.New("section not found")
	ErrInvalidTransition  = errors.New("status transition must move one phase at a time")
	ErrMissingAssignment  = errors.New("section has no assignment selected")
	ErrInvalidState       = errors.New("operation not allowed in the current section status")
	ErrLinkInactive       = errors.New("join link is not active")
	ErrAlreadyMember      = errors.New("user is already a member of the section")
	ErrAccessDenied       = errors.New("access denied")
	ErrUnknownStatus      = errors.New("unknown section status")
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// SectionService exposes section lifecycle and roster use cases.
type SectionService interface {
	ListForUser(ctx context.Context, user models.User) ([]dto.SectionResponse, error)
	Get(ctx context.Context, id uint) (dto.SectionResponse, error)
	Create(ctx context.Context, teacherID uint, payload dto.SectionCreateRequest) (dto.SectionResponse, error)
	Update(ctx context.Context, id uint, payload dto.SectionUpdateRequest) (dto.SectionResponse, error)
	Delete(ctx context.Context, id uint) error
	UpdateStatus(ctx context.Context, id uint, payload dto.StatusUpdateRequest) (dto.SectionResponse, error)
	SetAssignment(ctx context.Context, id uint, payload dto.SetAssignmentRequest) (dto.SectionResponse, error)
	EndActivity(ctx context.Context, id uint) (dto.SectionResponse, error)
	ToggleLink(ctx context.Context, id uint) (dto.SectionResponse, error)
	RegenerateCode(ctx context.Context, id uint) (dto.SectionResponse, error)
	Join(ctx context.Context, code string, userID uint) (dto.SectionResponse, error)
	Members(ctx context.Context, sectionID uint) ([]dto.MemberResponse, error)
	HasAccess(ctx context.Context, sectionID uint, user models.User) (bool, error)
	DeleteSubmissions(ctx context.Context, sectionID uint) (int64, error)
}

type sectionService struct {
	sections    repository.SectionRepository
	memberships repository.MembershipRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	users       repository.UserRepository
	validator   *validator.Validate
	broadcaster Broadcaster
	logger      zerolog.Logger
	now         func() time.Time
	newCode     func() (string, error)
}

// NewSectionService builds a new section service. broadcaster may be nil.
func NewSectionService(
	sections repository.SectionRepository,
	memberships repository.MembershipRepository,
	assignments repository.AssignmentRepository,
	submissions repository.SubmissionRepository,
	users repository.UserRepository,
	validate *validator.Validate,
	broadcaster Broadcaster,
	logger zerolog.Logger,
) SectionService {
	return &sectionService{
		sections:    sections,
		memberships: memberships,
		assignments: assignments,
		submissions: submissions,
		users:       users,
		validator:   validate,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "section_service").Logger(),
		now:         time.Now,
		newCode:     generateJoinCode,
	}
}

func generateJoinCode() (string, error) {
	buf := make([]byte, joinCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate join code: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *sectionService) ListForUser(ctx context.Context, user models.User) ([]dto.SectionResponse, error) {
	var (
		sections []models.Section
		err      error
	)
	if user.IsStaff() {
		sections, err = s.sections.ListByTeacher(ctx, user.ID)
	} else {
		sections, err = s.sections.ListByStudent(ctx, user.ID)
	}
	if err != nil {
		return nil, err
	}

	return dto.NewSectionResponseSlice(sections), nil
}

func (s *sectionService) Get(ctx context.Context, id uint) (dto.SectionResponse, error) {
	section, err := s.getSection(ctx, id)
	if err != nil {
		return dto.SectionResponse{}, err
	}

	return dto.NewSectionResponse(section), nil
}

func (s *sectionService) Create(ctx context.Context, teacherID uint, payload dto.SectionCreateRequest) (dto.SectionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SectionResponse{}, err
	}

	code, err := s.newCode()
	if err != nil {
		return dto.SectionResponse{}, err
	}

	section := models.Section{
		Name:         payload.Name,
		Year:         payload.Year,
		Semester:     payload.Semester,
		Status:       models.StatusWaiting,
		TeacherID:    teacherID,
		JoinableCode: code,
	}

	if err := s.sections.Create(ctx, &section); err != nil {
		return dto.SectionResponse{}, err
	}

	s.logger.Info().Uint("section_id", section.ID).Uint("teacher_id", teacherID).Msg("section created")

	return dto.NewSectionResponse(section), nil
}

func (s *sectionService) Update(ctx context.Context, id uint, payload dto.SectionUpdateRequest) (dto.SectionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SectionResponse{}, err
	}

	section, err := s.getSection(ctx, id)
	if err != nil {
		return dto.SectionResponse{}, err
	}

	if payload.Name != nil {
		section.Name = *payload.Name
	}
	if payload.Year != nil {
		section.Year = *payload.Year
	}
	if payload.Semester != nil {
		section.Semester = *payload.Semester
	}
	if payload.Archived != nil {
		section.Archived = *payload.Archived
	}

	if err := s.sections.Update(ctx, &section); err != nil {
		return dto.SectionResponse{}, err
	}

	return dto.NewSectionResponse(section), nil
}

func (s *sectionService) Delete(ctx context.Context, id uint) error {
	if _, err := s.getSection(ctx, id); err != nil {
		return err
	}

	if err := s.sections.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Uint("section_id", id).Msg("section deleted")
	return nil
}

// UpdateStatus moves the section one phase forward or backward. Leaving
// waiting requires an assignment so every later phase has something to grade.
func (s *sectionService) UpdateStatus(ctx context.Context, id uint, payload dto.StatusUpdateRequest) (dto.SectionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SectionResponse{}, err
	}

	next := models.SectionStatus(payload.Status)
	if !next.Valid() {
		return dto.SectionResponse{}, ErrUnknownStatus
	}

	section, err := s.getSection(ctx, id)
	if err != nil {
		return dto.SectionResponse{}, err
	}

	if !section.Status.CanTransitionTo(next) {
		return dto.SectionResponse{}, ErrInvalidTransition
	}

	if next != models.StatusWaiting && section.AssignmentID == nil {
		return dto.SectionResponse{}, ErrMissingAssignment
	}

	section.Status = next
	if err := s.sections.Update(ctx, &section); err != nil {
		return dto.SectionResponse{}, err
	}

	s.logger.Info().
		Uint("section_id", section.ID).
		Str("status", string(section.Status)).
		Msg("section status updated")

	if s.broadcaster != nil {
		s.broadcaster.EmitSectionUpdated(section)
	}

	return dto.NewSectionResponse(section), nil
}

// SetAssignment binds the activity's assignment. Selecting is only allowed
// while waiting so a running activity never changes subject; clearing is
// always allowed.
func (s *sectionService) SetAssignment(ctx context.Context, id uint, payload dto.SetAssignmentRequest) (dto.SectionResponse, error) {
	section, err := s.getSection(ctx, id)
	if err != nil {
		return dto.SectionResponse{}, err
	}

	if payload.AssignmentID == nil {
		section.AssignmentID = nil
		section.Assignment = nil
	} else {
		if section.Status != models.StatusWaiting {
			return dto.SectionResponse{}, ErrInvalidState
		}

		assignment, err := s.assignments.GetByID(ctx, *payload.AssignmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.SectionResponse{}, ErrAssignmentNotFound
			}
			return dto.SectionResponse{}, err
		}

		section.AssignmentID = &assignment.ID
		section.Assignment = &assignment
	}

	if err := s.sections.Update(ctx, &section); err != nil {
		return dto.SectionResponse{}, err
	}

	if s.broadcaster != nil {
		s.broadcaster.EmitSectionUpdated(section)
	}

	return dto.NewSectionResponse(section), nil
}

// EndActivity aborts the running activity: back to waiting with no assignment,
// regardless of the current phase. This is the single allowed jump in the
// lifecycle.
func (s *sectionService) EndActivity(ctx context.Context, id uint) (dto.SectionResponse, error) {
	section, err := s.getSection(ctx, id)
	if err != nil {
		return dto.SectionResponse{}, err
	}

	section.Status = models.StatusWaiting
	section.AssignmentID = nil
	section.Assignment = nil

	if err := s.sections.Update(ctx, &section); err != nil {
		return dto.SectionResponse{}, err
	}

	s.logger.Info().Uint("section_id", section.ID).Msg("activity ended")

	if s.broadcaster != nil {
		s.broadcaster.EmitSectionUpdated(section)
	}

	return dto.NewSectionResponse(section), nil
}

func (s *sectionService) ToggleLink(ctx context.Context, id uint) (dto.SectionResponse, error) {
	section, err := s.getSection(ctx, id)
	if err != nil {
		return dto.SectionResponse{}, err
	}

	section.LinkActive = !section.LinkActive
	if err := s.sections.Update(ctx, &section); err != nil {
		return dto.SectionResponse{}, err
	}

	if s.broadcaster != nil {
		s.broadcaster.EmitLinkToggled(section)
	}

	return dto.NewSectionResponse(section), nil
}

// RegenerateCode replaces the join code, invalidating every previously shared
// link. The active flag is left untouched.
func (s *sectionService) RegenerateCode(ctx context.Context, id uint) (dto.SectionResponse, error) {
	section, err := s.getSection(ctx, id)
	if err != nil {
		return dto.SectionResponse{}, err
	}

	code, err := s.newCode()
	if err != nil {
		return dto.SectionResponse{}, err
	}

	section.JoinableCode = code
	if err := s.sections.Update(ctx, &section); err != nil {
		return dto.SectionResponse{}, err
	}

	s.logger.Info().Uint("section_id", section.ID).Msg("join code regenerated")

	if s.broadcaster != nil {
		s.broadcaster.EmitLinkToggled(section)
	}

	return dto.NewSectionResponse(section), nil
}

func (s *sectionService) Join(ctx context.Context, code string, userID uint) (dto.SectionResponse, error) {
	section, err := s.sections.GetByJoinableCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SectionResponse{}, ErrSectionNotFound
		}
		return dto.SectionResponse{}, err
	}

	if !section.LinkActive {
		return dto.SectionResponse{}, ErrLinkInactive
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SectionResponse{}, ErrAccessDenied
		}
		return dto.SectionResponse{}, err
	}

	if _, err := s.memberships.GetByUserAndSection(ctx, user.ID, section.ID); err == nil {
		return dto.SectionResponse{}, ErrAlreadyMember
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SectionResponse{}, err
	}

	membership := models.Membership{
		UserID:    user.ID,
		SectionID: section.ID,
	}
	if err := s.memberships.Create(ctx, &membership); err != nil {
		return dto.SectionResponse{}, err
	}

	s.logger.Info().
		Uint("section_id", section.ID).
		Uint("user_id", user.ID).
		Msg("student joined section")

	if s.broadcaster != nil {
		s.broadcaster.EmitStudentJoined(section.ID, user)
	}

	return dto.NewSectionResponse(section), nil
}

func (s *sectionService) Members(ctx context.Context, sectionID uint) ([]dto.MemberResponse, error) {
	if _, err := s.getSection(ctx, sectionID); err != nil {
		return nil, err
	}

	memberships, err := s.memberships.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	return dto.NewMemberResponseSlice(memberships), nil
}

// HasAccess reports whether the user may read the section: admins, the owning
// teacher, and enrolled members.
func (s *sectionService) HasAccess(ctx context.Context, sectionID uint, user models.User) (bool, error) {
	section, err := s.getSection(ctx, sectionID)
	if err != nil {
		return false, err
	}

	if user.Role == models.RoleAdmin || section.TeacherID == user.ID {
		return true, nil
	}

	if _, err := s.memberships.GetByUserAndSection(ctx, user.ID, sectionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// DeleteSubmissions drops every member submission for the current assignment,
// letting the teacher restart the writing phase cleanly.
func (s *sectionService) DeleteSubmissions(ctx context.Context, sectionID uint) (int64, error) {
	section, err := s.getSection(ctx, sectionID)
	if err != nil {
		return 0, err
	}

	if section.AssignmentID == nil {
		return 0, ErrMissingAssignment
	}

	memberships, err := s.memberships.ListBySection(ctx, sectionID)
	if err != nil {
		return 0, err
	}

	userIDs := make([]uint, 0, len(memberships))
	for _, membership := range memberships {
		userIDs = append(userIDs, membership.UserID)
	}

	deleted, err := s.submissions.DeleteByAssignmentAndStudents(ctx, *section.AssignmentID, userIDs)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Uint("section_id", sectionID).
		Int64("deleted", deleted).
		Msg("section submissions deleted")

	return deleted, nil
}

func (s *sectionService) getSection(ctx context.Context, id uint) (models.Section, error) {
	section, err := s.sections.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Section{}, ErrSectionNotFound
		}
		return models.Section{}, err
	}

	return section, nil
}
