package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// RubricRepository defines data operations for rubrics and their criteria.
type RubricRepository interface {
	GetByID(ctx context.Context, id uint) (models.Rubric, error)
	List(ctx context.Context) ([]models.Rubric, error)
	Create(ctx context.Context, rubric *models.Rubric) error
	Update(ctx context.Context, rubric *models.Rubric) error
	Delete(ctx context.Context, id uint) error
	GetCriterion(ctx context.Context, id uint) (models.Criterion, error)
	CreateCriterion(ctx context.Context, criterion *models.Criterion) error
	UpdateCriterion(ctx context.Context, criterion *models.Criterion) error
	DeleteCriterion(ctx context.Context, id uint) error
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository instantiates the repository.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func (r *rubricRepository) GetByID(ctx context.Context, id uint) (models.Rubric, error) {
	var rubric models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("criteria.id ASC")
		}).
		First(&rubric, id).Error
	if err != nil {
		return models.Rubric{}, err
	}

	return rubric, nil
}

func (r *rubricRepository) List(ctx context.Context) ([]models.Rubric, error) {
	var rubrics []models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("criteria.id ASC")
		}).
		Order("created_at DESC").
		Find(&rubrics).Error
	if err != nil {
		return nil, err
	}

	return rubrics, nil
}

func (r *rubricRepository) Create(ctx context.Context, rubric *models.Rubric) error {
	return r.db.WithContext(ctx).Create(rubric).Error
}

func (r *rubricRepository) Update(ctx context.Context, rubric *models.Rubric) error {
	return r.db.WithContext(ctx).Save(rubric).Error
}

func (r *rubricRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Rubric{}, id).Error
}

func (r *rubricRepository) GetCriterion(ctx context.Context, id uint) (models.Criterion, error) {
	var criterion models.Criterion
	if err := r.db.WithContext(ctx).First(&criterion, id).Error; err != nil {
		return models.Criterion{}, err
	}

	return criterion, nil
}

func (r *rubricRepository) CreateCriterion(ctx context.Context, criterion *models.Criterion) error {
	return r.db.WithContext(ctx).Create(criterion).Error
}

func (r *rubricRepository) UpdateCriterion(ctx context.Context, criterion *models.Criterion) error {
	return r.db.WithContext(ctx).Save(criterion).Error
}

func (r *rubricRepository) DeleteCriterion(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Criterion{}, id).Error
}
