package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
)

func TestCalculateStudentGradesAllSources(t *testing.T) {
	grades := CalculateStudentGrades(GradeSources{
		Teacher:  []float64{80},
		Students: []float64{70, 90},
		Groups:   []float64{60, 100},
	})

	require.InDelta(t, 80, *grades.TeacherOnly, 1e-9)
	require.InDelta(t, 80, *grades.StudentsOnly, 1e-9)
	require.InDelta(t, 80, *grades.GroupsOnly, 1e-9)
	// 0.4*80 + 0.3*80 + 0.3*80
	require.InDelta(t, 80, *grades.WeightedAverage, 1e-9)
	require.InDelta(t, 80, *grades.TotalAverage, 1e-9)
	require.InDelta(t, 100, *grades.Highest, 1e-9)
	require.InDelta(t, 60, *grades.Lowest, 1e-9)
	require.InDelta(t, 80, *grades.Median, 1e-9)
}

func TestCalculateStudentGradesSingleSourcePassesThrough(t *testing.T) {
	grades := CalculateStudentGrades(GradeSources{Teacher: []float64{80}})

	require.InDelta(t, 80, *grades.WeightedAverage, 1e-9)
	require.Nil(t, grades.StudentsOnly)
	require.Nil(t, grades.GroupsOnly)
	require.InDelta(t, 80, *grades.TotalAverage, 1e-9)
}

func TestCalculateStudentGradesTotalWeighsSourcesEqually(t *testing.T) {
	grades := CalculateStudentGrades(GradeSources{
		Teacher:  []float64{80},
		Students: []float64{100, 100, 100},
	})

	// mean(80, 100), not the pooled mean(80, 100, 100, 100) = 95.
	require.InDelta(t, 90, *grades.TotalAverage, 1e-9)
	// The spread statistics still pool every raw grade.
	require.InDelta(t, 100, *grades.Highest, 1e-9)
	require.InDelta(t, 80, *grades.Lowest, 1e-9)
	require.InDelta(t, 100, *grades.Median, 1e-9)
}

func TestCalculateStudentGradesPairSplitsEvenly(t *testing.T) {
	grades := CalculateStudentGrades(GradeSources{
		Students: []float64{60},
		Groups:   []float64{100},
	})

	require.Nil(t, grades.TeacherOnly)
	require.InDelta(t, 80, *grades.WeightedAverage, 1e-9)
}

func TestCalculateStudentGradesEmpty(t *testing.T) {
	grades := CalculateStudentGrades(GradeSources{})

	require.Nil(t, grades.TeacherOnly)
	require.Nil(t, grades.WeightedAverage)
	require.Nil(t, grades.TotalAverage)
	require.Nil(t, grades.Highest)
	require.Nil(t, grades.Lowest)
	require.Nil(t, grades.Median)
}

func TestCalculateStudentGradesRoundsAverages(t *testing.T) {
	grades := CalculateStudentGrades(GradeSources{
		Students: []float64{33.333333, 66.666666},
	})

	require.InDelta(t, 50.0, *grades.WeightedAverage, 1e-9)
	require.InDelta(t, 50.0, *grades.TotalAverage, 1e-9)
	// Spread statistics report the raw pooled values.
	require.InDelta(t, 66.666666, *grades.Highest, 1e-9)
	require.InDelta(t, 33.333333, *grades.Lowest, 1e-9)
}

func TestMedianEvenCountAveragesMiddlePair(t *testing.T) {
	values := []float64{90, 10, 30, 70}
	median := Median(values)
	require.InDelta(t, 50, *median, 1e-9)
	require.Equal(t, []float64{90, 10, 30, 70}, values, "input must not be reordered")
}

func TestRoundGrade(t *testing.T) {
	require.InDelta(t, 66.67, RoundGrade(66.666666), 1e-9)
	require.InDelta(t, 66.66, RoundGrade(66.664), 1e-9)
}

func TestCalculateClassStatistics(t *testing.T) {
	stats := CalculateClassStatistics([]float64{55.55, 88.88, 77.77})

	require.InDelta(t, 77.77, *stats.Median, 1e-9)
	require.InDelta(t, 88.88, *stats.Highest, 1e-9)
	require.InDelta(t, 55.55, *stats.Lowest, 1e-9)

	// An even count averages the middle pair without re-rounding.
	even := CalculateClassStatistics([]float64{81.12, 81.13})
	require.InDelta(t, 81.125, *even.Median, 1e-9)

	empty := CalculateClassStatistics(nil)
	require.Nil(t, empty.Median)
	require.Nil(t, empty.Highest)
	require.Nil(t, empty.Lowest)
}

func TestTallyCountsDeductions(t *testing.T) {
	rubric := testRubric()
	score := models.Score{Evaluation: dto.JSONFromBoolMap(map[string]bool{
		"10": true,
		"11": false,
		"12": true,
	})}

	require.Equal(t, 30, Tally(rubric, score))
}

func TestMaxPointsIgnoresNegativeCriteria(t *testing.T) {
	require.Equal(t, 80, MaxPoints(testRubric()))
}

func TestCalculatePercentage(t *testing.T) {
	require.InDelta(t, 50, CalculatePercentage(40, 80), 1e-9)
	require.InDelta(t, 0, CalculatePercentage(40, 0), 1e-9)
	require.InDelta(t, 0, CalculatePercentage(40, -10), 1e-9)
	require.InDelta(t, -12.5, CalculatePercentage(-10, 80), 1e-9)
}
