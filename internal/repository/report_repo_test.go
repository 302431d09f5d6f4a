package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

func setupReportTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Report{}))
	return db
}

func TestReportRepositoryLatestVersionStartsAtZero(t *testing.T) {
	db := setupReportTestDB(t)
	repo := NewReportRepository(db)

	version, err := repo.LatestVersion(context.Background(), 201, 1)
	require.NoError(t, err)
	require.Equal(t, 0, version)
}

func TestReportRepositoryVersionsAccumulate(t *testing.T) {
	db := setupReportTestDB(t)
	repo := NewReportRepository(db)

	for version := 1; version <= 3; version++ {
		require.NoError(t, repo.Create(context.Background(), &models.Report{
			SectionID:     202,
			AssignmentID:  1,
			RubricID:      1,
			ReportVersion: version,
			Report:        datatypes.JSON([]byte(`{}`)),
		}))
	}

	latest, err := repo.LatestVersion(context.Background(), 202, 1)
	require.NoError(t, err)
	require.Equal(t, 3, latest)

	report, err := repo.Latest(context.Background(), 202, 1)
	require.NoError(t, err)
	require.Equal(t, 3, report.ReportVersion)

	history, err := repo.ListBySection(context.Background(), 202)
	require.NoError(t, err)
	require.Len(t, history, 3)
}

func TestReportRepositoryVersionsScopedToAssignment(t *testing.T) {
	db := setupReportTestDB(t)
	repo := NewReportRepository(db)

	require.NoError(t, repo.Create(context.Background(), &models.Report{
		SectionID:     203,
		AssignmentID:  1,
		RubricID:      1,
		ReportVersion: 5,
		Report:        datatypes.JSON([]byte(`{}`)),
	}))

	version, err := repo.LatestVersion(context.Background(), 203, 2)
	require.NoError(t, err)
	require.Equal(t, 0, version, "a new assignment restarts the version counter")
}
