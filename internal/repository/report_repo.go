package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// ReportRepository defines append-only data operations for grade reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	LatestVersion(ctx context.Context, sectionID, assignmentID uint) (int, error)
	Latest(ctx context.Context, sectionID, assignmentID uint) (models.Report, error)
	ListBySection(ctx context.Context, sectionID uint) ([]models.Report, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository instantiates the repository.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// LatestVersion returns the highest report version recorded for the section
// and assignment pair, or 0 when none exists yet.
func (r *reportRepository) LatestVersion(ctx context.Context, sectionID, assignmentID uint) (int, error) {
	var report models.Report
	err := r.db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Where("assignment_id = ?", assignmentID).
		Order("report_version DESC").
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}

	return report.ReportVersion, nil
}

func (r *reportRepository) Latest(ctx context.Context, sectionID, assignmentID uint) (models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Where("assignment_id = ?", assignmentID).
		Order("report_version DESC").
		First(&report).Error
	if err != nil {
		return models.Report{}, err
	}

	return report, nil
}

func (r *reportRepository) ListBySection(ctx context.Context, sectionID uint) ([]models.Report, error) {
	var reports []models.Report
	err := r.db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}

	return reports, nil
}
