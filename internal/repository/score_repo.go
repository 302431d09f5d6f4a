package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// ScoreRepository defines data operations for scores.
type ScoreRepository interface {
	GetByID(ctx context.Context, id uint) (models.Score, error)
	GetByGroupAndSubmission(ctx context.Context, groupID, submissionID uint) (models.Score, error)
	Create(ctx context.Context, score *models.Score) error
	Update(ctx context.Context, score *models.Score) error
	ListDoneBySubmission(ctx context.Context, submissionID uint) ([]models.Score, error)
	ListDoneByAssignment(ctx context.Context, assignmentID uint) ([]models.Score, error)
}

type scoreRepository struct {
	db *gorm.DB
}

// NewScoreRepository instantiates the repository.
func NewScoreRepository(db *gorm.DB) ScoreRepository {
	return &scoreRepository{db: db}
}

func (r *scoreRepository) GetByID(ctx context.Context, id uint) (models.Score, error) {
	var score models.Score
	if err := r.db.WithContext(ctx).First(&score, id).Error; err != nil {
		return models.Score{}, err
	}

	return score, nil
}

func (r *scoreRepository) GetByGroupAndSubmission(ctx context.Context, groupID, submissionID uint) (models.Score, error) {
	var score models.Score
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Where("submission_id = ?", submissionID).
		First(&score).Error
	if err != nil {
		return models.Score{}, err
	}

	return score, nil
}

func (r *scoreRepository) Create(ctx context.Context, score *models.Score) error {
	return r.db.WithContext(ctx).Create(score).Error
}

func (r *scoreRepository) Update(ctx context.Context, score *models.Score) error {
	return r.db.WithContext(ctx).Save(score).Error
}

func (r *scoreRepository) ListDoneBySubmission(ctx context.Context, submissionID uint) ([]models.Score, error) {
	var scores []models.Score
	err := r.db.WithContext(ctx).
		Preload("Scorer").
		Preload("Group").
		Where("submission_id = ?", submissionID).
		Where("done = ?", true).
		Order("id ASC").
		Find(&scores).Error
	if err != nil {
		return nil, err
	}

	return scores, nil
}

func (r *scoreRepository) ListDoneByAssignment(ctx context.Context, assignmentID uint) ([]models.Score, error) {
	var scores []models.Score
	err := r.db.WithContext(ctx).
		Preload("Scorer").
		Preload("Group").
		Preload("Submission").
		Where("assignment_id = ?", assignmentID).
		Where("done = ?", true).
		Order("id ASC").
		Find(&scores).Error
	if err != nil {
		return nil, err
	}

	return scores, nil
}
