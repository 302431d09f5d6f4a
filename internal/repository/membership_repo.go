package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// MembershipRepository defines data operations for section memberships.
type MembershipRepository interface {
	GetByUserAndSection(ctx context.Context, userID, sectionID uint) (models.Membership, error)
	ListBySection(ctx context.Context, sectionID uint) ([]models.Membership, error)
	ListByGroup(ctx context.Context, groupID uint) ([]models.Membership, error)
	Create(ctx context.Context, membership *models.Membership) error
	AssignGroup(ctx context.Context, sectionID uint, userIDs []uint, groupID uint) error
	ClearGroups(ctx context.Context, sectionID uint) error
}

type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository instantiates the repository.
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) GetByUserAndSection(ctx context.Context, userID, sectionID uint) (models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		Where("section_id = ?", sectionID).
		First(&membership).Error
	if err != nil {
		return models.Membership{}, err
	}

	return membership, nil
}

func (r *membershipRepository) ListBySection(ctx context.Context, sectionID uint) ([]models.Membership, error) {
	var memberships []models.Membership
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("section_id = ?", sectionID).
		Order("id ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	return memberships, nil
}

func (r *membershipRepository) ListByGroup(ctx context.Context, groupID uint) ([]models.Membership, error) {
	var memberships []models.Membership
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("id ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	return memberships, nil
}

func (r *membershipRepository) Create(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

func (r *membershipRepository) AssignGroup(ctx context.Context, sectionID uint, userIDs []uint, groupID uint) error {
	if len(userIDs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("section_id = ?", sectionID).
		Where("user_id IN ?", userIDs).
		Update("group_id", groupID).Error
}

func (r *membershipRepository) ClearGroups(ctx context.Context, sectionID uint) error {
	return r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("section_id = ?", sectionID).
		Update("group_id", nil).Error
}
