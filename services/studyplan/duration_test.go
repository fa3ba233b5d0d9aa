package studyplan_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/uniportal-api/services/studyplan"
)

func TestParseStudyDuration(t *testing.T) {
	tests := []struct {
		in     string
		years  int
		parsed bool
	}{
		{"4 سنوات", 4, true},
		{"غير محدد", 0, false},
		{"", 0, false},
		{"٥ سنوات", 5, true},
		{"6 years (12 semesters)", 6, true},
	}
	for _, tt := range tests {
		years, ok := studyplan.ParseStudyDuration(tt.in)
		assert.Equal(t, tt.parsed, ok, tt.in)
		assert.Equal(t, tt.years, years, tt.in)
	}
}

func TestYearsJSON(t *testing.T) {
	out, err := json.Marshal(studyplan.DurationOf("غير محدد"))
	require.NoError(t, err)
	assert.Equal(t, `"unspecified"`, string(out))

	out, err = json.Marshal(studyplan.DurationOf("4 سنوات"))
	require.NoError(t, err)
	assert.Equal(t, `4`, string(out))

	var back studyplan.Years
	require.NoError(t, json.Unmarshal([]byte(`"unspecified"`), &back))
	assert.False(t, back.Known)
	require.NoError(t, json.Unmarshal([]byte(`4.5`), &back))
	assert.Equal(t, studyplan.KnownYears(4.5), back)
}

func TestAverageYears(t *testing.T) {
	assert.False(t, studyplan.AverageYears(nil).Known)
	assert.False(t, studyplan.AverageYears([]studyplan.Years{{}}).Known)

	avg := studyplan.AverageYears([]studyplan.Years{
		studyplan.KnownYears(4), studyplan.KnownYears(5), {},
	})
	assert.Equal(t, studyplan.KnownYears(4.5), avg)
}
