package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// SectionRepository defines data operations for sections.
type SectionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Section, error)
	GetByJoinableCode(ctx context.Context, code string) (models.Section, error)
	ListByTeacher(ctx context.Context, teacherID uint) ([]models.Section, error)
	ListByStudent(ctx context.Context, userID uint) ([]models.Section, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	Delete(ctx context.Context, id uint) error
}

type sectionRepository struct {
	db *gorm.DB
}

// NewSectionRepository instantiates the repository.
func NewSectionRepository(db *gorm.DB) SectionRepository {
	return &sectionRepository{db: db}
}

func (r *sectionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Section{}).
		Preload("Teacher").
		Preload("Assignment").
		Preload("Assignment.Rubric").
		Preload("Assignment.Rubric.Criteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("criteria.id ASC")
		})
}

func (r *sectionRepository) GetByID(ctx context.Context, id uint) (models.Section, error) {
	var section models.Section
	if err := r.baseQuery(ctx).First(&section, id).Error; err != nil {
		return models.Section{}, err
	}

	return section, nil
}

func (r *sectionRepository) GetByJoinableCode(ctx context.Context, code string) (models.Section, error) {
	var section models.Section
	if err := r.baseQuery(ctx).Where("joinable_code = ?", code).First(&section).Error; err != nil {
		return models.Section{}, err
	}

	return section, nil
}

func (r *sectionRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]models.Section, error) {
	var sections []models.Section
	err := r.baseQuery(ctx).
		Where("teacher_id = ?", teacherID).
		Where("archived = ?", false).
		Order("created_at DESC").
		Find(&sections).Error
	if err != nil {
		return nil, err
	}

	return sections, nil
}

func (r *sectionRepository) ListByStudent(ctx context.Context, userID uint) ([]models.Section, error) {
	var sections []models.Section
	err := r.baseQuery(ctx).
		Where("archived = ?", false).
		Where("EXISTS (SELECT 1 FROM memberships WHERE memberships.section_id = sections.id AND memberships.user_id = ?)", userID).
		Order("created_at DESC").
		Find(&sections).Error
	if err != nil {
		return nil, err
	}

	return sections, nil
}

func (r *sectionRepository) Create(ctx context.Context, section *models.Section) error {
	return r.db.WithContext(ctx).Create(section).Error
}

func (r *sectionRepository) Update(ctx context.Context, section *models.Section) error {
	return r.db.WithContext(ctx).Save(section).Error
}

func (r *sectionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Section{}, id).Error
}
