package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportDataMarshalFlattensStudents(t *testing.T) {
	weighted := 81.25
	data := ReportData{
		Students: map[string]StudentGrades{
			"3": {WeightedAverage: &weighted},
		},
		Class:   ClassStatistics{Median: &weighted},
		Version: 2,
	}

	blob, err := json.Marshal(data)
	require.NoError(t, err)

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(blob, &flat))
	require.Contains(t, flat, "3", "students are keyed at the top level")
	require.Contains(t, flat, "class")
	require.Contains(t, flat, "version")
	require.NotContains(t, flat, "Students")

	var restored ReportData
	require.NoError(t, json.Unmarshal(blob, &restored))
	require.Equal(t, 2, restored.Version)
	require.InDelta(t, 81.25, *restored.Students["3"].WeightedAverage, 1e-9)
	require.InDelta(t, 81.25, *restored.Class.Median, 1e-9)
}
