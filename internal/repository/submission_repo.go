package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// SubmissionRepository defines data operations for submissions, including the
// grading-queue queries. Both Next queries resolve ties by submission ID
// ascending so that repeated calls walk the queue in a stable order.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (models.Submission, error)
	ListByAssignmentAndStudents(ctx context.Context, assignmentID uint, studentIDs []uint) ([]models.Submission, error)
	CountByAssignmentAndStudents(ctx context.Context, assignmentID uint, studentIDs []uint) (int64, error)
	Create(ctx context.Context, submission *models.Submission) error
	DeleteByAssignmentAndStudents(ctx context.Context, assignmentID uint, studentIDs []uint) (int64, error)
	NextForIndividual(ctx context.Context, graderID, assignmentID uint) (models.Submission, error)
	NextForGroup(ctx context.Context, groupID, assignmentID uint, poolIDs, excludeIDs []uint) (models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Student")
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (models.Submission, error) {
	var submission models.Submission
	err := r.baseQuery(ctx).
		Where("student_id = ?", studentID).
		Where("assignment_id = ?", assignmentID).
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByAssignmentAndStudents(ctx context.Context, assignmentID uint, studentIDs []uint) ([]models.Submission, error) {
	if len(studentIDs) == 0 {
		return []models.Submission{}, nil
	}

	var submissions []models.Submission
	err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id IN ?", studentIDs).
		Order("id ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) CountByAssignmentAndStudents(ctx context.Context, assignmentID uint, studentIDs []uint) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("assignment_id = ?", assignmentID).
		Where("student_id IN ?", studentIDs).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) DeleteByAssignmentAndStudents(ctx context.Context, assignmentID uint, studentIDs []uint) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id IN ?", studentIDs).
		Delete(&models.Submission{})

	return result.RowsAffected, result.Error
}

// NextForIndividual returns the first submission the grader has not finished
// grading, excluding the grader's own submission.
func (r *submissionRepository) NextForIndividual(ctx context.Context, graderID, assignmentID uint) (models.Submission, error) {
	var submission models.Submission
	err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id <> ?", graderID).
		Where("NOT EXISTS (SELECT 1 FROM scores WHERE scores.submission_id = submissions.id AND scores.scorer_id = ? AND scores.done = ?)", graderID, true).
		Order("id ASC").
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// NextForGroup returns the first submission from the eligible pool the group
// has not finished grading. poolIDs holds all section member IDs; excludeIDs
// holds the group's own member IDs, so a group never grades its own work.
func (r *submissionRepository) NextForGroup(ctx context.Context, groupID, assignmentID uint, poolIDs, excludeIDs []uint) (models.Submission, error) {
	if len(poolIDs) == 0 {
		return models.Submission{}, gorm.ErrRecordNotFound
	}

	query := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id IN ?", poolIDs).
		Where("NOT EXISTS (SELECT 1 FROM scores WHERE scores.submission_id = submissions.id AND scores.group_id = ? AND scores.done = ?)", groupID, true)

	if len(excludeIDs) > 0 {
		query = query.Where("student_id NOT IN ?", excludeIDs)
	}

	var submission models.Submission
	if err := query.Order("id ASC").First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}
