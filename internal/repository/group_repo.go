package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// GroupRepository defines data operations for grading groups.
type GroupRepository interface {
	GetByID(ctx context.Context, id uint) (models.Group, error)
	ListBySection(ctx context.Context, sectionID uint) ([]models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	DeleteBySection(ctx context.Context, sectionID uint) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository instantiates the repository.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Preload("Memberships").
		Preload("Memberships.User").
		First(&group, id).Error
	if err != nil {
		return models.Group{}, err
	}

	return group, nil
}

func (r *groupRepository) ListBySection(ctx context.Context, sectionID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Preload("Memberships").
		Preload("Memberships.User").
		Where("section_id = ?", sectionID).
		Order("id ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}

	return groups, nil
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepository) DeleteBySection(ctx context.Context, sectionID uint) error {
	return r.db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Delete(&models.Group{}).Error
}
