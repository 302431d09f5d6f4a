package service

import (
	"math"
	"sort"

	"github.com/classroomlabs/peergrade-api/internal/dto"
)

// Source weights when all three grade sources are present. Any pair splits
// evenly, a single source passes through unweighted.
const (
	weightTeacher  = 0.4
	weightStudents = 0.3
	weightGroups   = 0.3
)

// GradeSources groups one student's percentages by who produced them.
type GradeSources struct {
	Teacher  []float64
	Students []float64
	Groups   []float64
}

// Mean returns the arithmetic mean, or nil for an empty slice.
func Mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}

	sum := 0.0
	for _, value := range values {
		sum += value
	}
	mean := sum / float64(len(values))

	return &mean
}

// MinValue returns the smallest value, or nil for an empty slice.
func MinValue(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}

	min := values[0]
	for _, value := range values[1:] {
		if value < min {
			min = value
		}
	}

	return &min
}

// MaxValue returns the largest value, or nil for an empty slice.
func MaxValue(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}

	max := values[0]
	for _, value := range values[1:] {
		if value > max {
			max = value
		}
	}

	return &max
}

// Median returns the middle value (mean of the middle pair for even counts),
// or nil for an empty slice. The input is not modified.
func Median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	var median float64
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	return &median
}

// RoundGrade rounds to two decimal places.
func RoundGrade(value float64) float64 {
	return math.Round(value*100) / 100
}

func roundPtr(value *float64) *float64 {
	if value == nil {
		return nil
	}
	rounded := RoundGrade(*value)

	return &rounded
}

// CalculateStudentGrades aggregates one student's grade sources. The weighted
// average prefers the teacher's judgement when all sources exist and degrades
// gracefully as sources go missing; pooled raw values feed the spread
// statistics.
func CalculateStudentGrades(sources GradeSources) dto.StudentGrades {
	teacher := Mean(sources.Teacher)
	students := Mean(sources.Students)
	groups := Mean(sources.Groups)

	pooled := make([]float64, 0, len(sources.Teacher)+len(sources.Students)+len(sources.Groups))
	pooled = append(pooled, sources.Teacher...)
	pooled = append(pooled, sources.Students...)
	pooled = append(pooled, sources.Groups...)

	// The total average weighs each source equally regardless of how many
	// raw grades it holds, so a flood of peer reviews cannot drown out the
	// teacher's single grade.
	sourceMeans := make([]float64, 0, 3)
	for _, value := range []*float64{teacher, students, groups} {
		if value != nil {
			sourceMeans = append(sourceMeans, *value)
		}
	}

	return dto.StudentGrades{
		TeacherOnly:     teacher,
		StudentsOnly:    students,
		GroupsOnly:      groups,
		TotalAverage:    roundPtr(Mean(sourceMeans)),
		WeightedAverage: roundPtr(weightedAverage(teacher, students, groups)),
		Highest:         MaxValue(pooled),
		Lowest:          MinValue(pooled),
		Median:          Median(pooled),
	}
}

func weightedAverage(teacher, students, groups *float64) *float64 {
	present := 0
	for _, value := range []*float64{teacher, students, groups} {
		if value != nil {
			present++
		}
	}

	switch present {
	case 0:
		return nil
	case 1:
		for _, value := range []*float64{teacher, students, groups} {
			if value != nil {
				result := *value
				return &result
			}
		}
		return nil
	case 2:
		sum := 0.0
		for _, value := range []*float64{teacher, students, groups} {
			if value != nil {
				sum += 0.5 * *value
			}
		}
		return &sum
	default:
		result := weightTeacher**teacher + weightStudents**students + weightGroups**groups
		return &result
	}
}

// CalculateClassStatistics summarizes the class spread over the students'
// weighted averages.
func CalculateClassStatistics(weightedAverages []float64) dto.ClassStatistics {
	return dto.ClassStatistics{
		Median:  Median(weightedAverages),
		Highest: MaxValue(weightedAverages),
		Lowest:  MinValue(weightedAverages),
	}
}
