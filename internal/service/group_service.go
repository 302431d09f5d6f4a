package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/repository"
)

// defaultGroupSize is used when the teacher does not request a specific size.
const defaultGroupSize = 3

// Sentinel errors surfaced by group operations.
var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNoMembers     = errors.New("section has no members to group")
)

// GroupService manages the grading groups of a section.
type GroupService interface {
	Generate(ctx context.Context, sectionID uint, payload dto.GroupGenerateRequest) ([]dto.GroupResponse, error)
	BySection(ctx context.Context, sectionID uint) ([]dto.GroupResponse, error)
	UserGroup(ctx context.Context, sectionID, userID uint) (dto.GroupResponse, error)
	DeleteBySection(ctx context.Context, sectionID uint) error
}

type groupService struct {
	groups      repository.GroupRepository
	memberships repository.MembershipRepository
	validator   *validator.Validate
	logger      zerolog.Logger
	shuffle     func(n int, swap func(i, j int))
}

// NewGroupService builds a new group service.
func NewGroupService(groups repository.GroupRepository, memberships repository.MembershipRepository, validate *validator.Validate, logger zerolog.Logger) GroupService {
	return &groupService{
		groups:      groups,
		memberships: memberships,
		validator:   validate,
		logger:      logger.With().Str("component", "group_service").Logger(),
		shuffle:     rand.Shuffle,
	}
}

// Generate replaces the section's groups with a fresh random partition of the
// roster. Members are shuffled, then chunked; only the final group may run
// short.
func (s *groupService) Generate(ctx context.Context, sectionID uint, payload dto.GroupGenerateRequest) ([]dto.GroupResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	perGroup := payload.PerGroup
	if perGroup == 0 {
		perGroup = defaultGroupSize
	}

	memberships, err := s.memberships.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, ErrNoMembers
	}

	if err := s.DeleteBySection(ctx, sectionID); err != nil {
		return nil, err
	}

	userIDs := make([]uint, 0, len(memberships))
	for _, membership := range memberships {
		userIDs = append(userIDs, membership.UserID)
	}
	s.shuffle(len(userIDs), func(i, j int) {
		userIDs[i], userIDs[j] = userIDs[j], userIDs[i]
	})

	for start := 0; start < len(userIDs); start += perGroup {
		end := start + perGroup
		if end > len(userIDs) {
			end = len(userIDs)
		}

		group := models.Group{SectionID: sectionID}
		if err := s.groups.Create(ctx, &group); err != nil {
			return nil, err
		}

		if err := s.memberships.AssignGroup(ctx, sectionID, userIDs[start:end], group.ID); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Uint("section_id", sectionID).
		Int("members", len(userIDs)).
		Int("per_group", perGroup).
		Msg("groups generated")

	return s.BySection(ctx, sectionID)
}

func (s *groupService) BySection(ctx context.Context, sectionID uint) ([]dto.GroupResponse, error) {
	groups, err := s.groups.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	return dto.NewGroupResponseSlice(groups), nil
}

func (s *groupService) UserGroup(ctx context.Context, sectionID, userID uint) (dto.GroupResponse, error) {
	membership, err := s.memberships.GetByUserAndSection(ctx, userID, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupResponse{}, ErrGroupNotFound
		}
		return dto.GroupResponse{}, err
	}

	if membership.GroupID == nil {
		return dto.GroupResponse{}, ErrGroupNotFound
	}

	group, err := s.groups.GetByID(ctx, *membership.GroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupResponse{}, ErrGroupNotFound
		}
		return dto.GroupResponse{}, err
	}

	return dto.NewGroupResponse(group), nil
}

// DeleteBySection detaches every member from their group before removing the
// group rows, so no membership ever points at a deleted group.
func (s *groupService) DeleteBySection(ctx context.Context, sectionID uint) error {
	if err := s.memberships.ClearGroups(ctx, sectionID); err != nil {
		return err
	}

	return s.groups.DeleteBySection(ctx, sectionID)
}

// MemberNames renders a group roster as a human list: "Ada", "Ada and Ben",
// "Ada, Ben, and Cleo".
func MemberNames(memberships []models.Membership) string {
	names := make([]string, 0, len(memberships))
	for _, membership := range memberships {
		names = append(names, membership.User.Name)
	}

	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
