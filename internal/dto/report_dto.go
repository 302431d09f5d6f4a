package dto

import (
	"encoding/json"
	"time"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// StudentGrades holds every aggregate computed for one student. Nil means the
// grade source produced no values for this student.
type StudentGrades struct {
	TeacherOnly     *float64 `json:"teacher_only"`
	StudentsOnly    *float64 `json:"students_only"`
	GroupsOnly      *float64 `json:"groups_only"`
	TotalAverage    *float64 `json:"total_average"`
	WeightedAverage *float64 `json:"weighted_average"`
	Highest         *float64 `json:"highest"`
	Lowest          *float64 `json:"lowest"`
	Median          *float64 `json:"median"`
}

// ClassStatistics summarizes the weighted averages across the whole class.
type ClassStatistics struct {
	Median  *float64 `json:"median"`
	Highest *float64 `json:"highest"`
	Lowest  *float64 `json:"lowest"`
}

// ReportData is the computed report blob: per-student grades keyed by
// stringified student ID at the top level, plus "class" statistics and a
// "version" counter alongside them.
type ReportData struct {
	Students map[string]StudentGrades
	Class    ClassStatistics
	Version  int
}

// MarshalJSON flattens the student map into the top-level object so consumers
// can index the blob directly by student ID.
func (r ReportData) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Students)+2)
	for studentID, grades := range r.Students {
		flat[studentID] = grades
	}
	flat["class"] = r.Class
	flat["version"] = r.Version

	return json.Marshal(flat)
}

// UnmarshalJSON restores the flattened blob layout.
func (r *ReportData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Students = make(map[string]StudentGrades, len(raw))
	for key, value := range raw {
		switch key {
		case "class":
			if err := json.Unmarshal(value, &r.Class); err != nil {
				return err
			}
		case "version":
			if err := json.Unmarshal(value, &r.Version); err != nil {
				return err
			}
		default:
			var grades StudentGrades
			if err := json.Unmarshal(value, &grades); err != nil {
				return err
			}
			r.Students[key] = grades
		}
	}

	return nil
}

// ReportResponse is returned to API clients when viewing reports.
type ReportResponse struct {
	ID            uint            `json:"id"`
	SectionID     uint            `json:"section_id"`
	AssignmentID  uint            `json:"assignment_id"`
	RubricID      uint            `json:"rubric_id"`
	ReportVersion int             `json:"report_version"`
	Report        json.RawMessage `json:"report"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StudentResultResponse carries one student's slice of the latest report.
type StudentResultResponse struct {
	Grades      StudentGrades   `json:"grades"`
	ClassStats  ClassStatistics `json:"class_stats"`
	Version     int             `json:"version"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// NewReportResponse converts a Report model into a DTO.
func NewReportResponse(model models.Report) ReportResponse {
	return ReportResponse{
		ID:            model.ID,
		SectionID:     model.SectionID,
		AssignmentID:  model.AssignmentID,
		RubricID:      model.RubricID,
		ReportVersion: model.ReportVersion,
		Report:        json.RawMessage(model.Report),
		CreatedAt:     model.CreatedAt,
	}
}

// NewReportResponseSlice converts report models into DTOs.
func NewReportResponseSlice(models []models.Report) []ReportResponse {
	responses := make([]ReportResponse, 0, len(models))
	for _, report := range models {
		responses = append(responses, NewReportResponse(report))
	}

	return responses
}
