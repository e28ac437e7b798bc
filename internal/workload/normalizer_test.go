package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lecturer-contract-api/internal/models"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeCurrentSchema(t *testing.T) {
	tests := []struct {
		name   string
		fields models.TeachingFields
		want   Load
	}{
		{
			name:   "theory and lab",
			fields: models.TeachingFields{TheoryHours: strPtr("15h"), TheoryGroups: intPtr(2), LabGroups: intPtr(1)},
			want:   Load{TheoryGroups: 2, TheorySize: HourSize15, LabGroups: 1},
		},
		{
			name:   "combined honoured with several groups",
			fields: models.TeachingFields{TheoryHours: strPtr("30h"), TheoryGroups: intPtr(3), TheoryCombined: true},
			want:   Load{TheoryGroups: 3, TheorySize: HourSize30, Combined: true},
		},
		{
			name:   "combined dropped for a single group",
			fields: models.TeachingFields{TheoryHours: strPtr("30h"), TheoryGroups: intPtr(1), TheoryCombined: true},
			want:   Load{TheoryGroups: 1, TheorySize: HourSize30},
		},
		{
			name:   "combined dropped without hour size",
			fields: models.TeachingFields{TheoryGroups: intPtr(3), TheoryCombined: true},
			want:   Load{TheoryGroups: 3},
		},
		{
			name:   "lab only ignores legacy columns",
			fields: models.TeachingFields{LabGroups: intPtr(2), TypeHours: strPtr("Theory 15h"), GroupCount: intPtr(4)},
			want:   Load{LabGroups: 2},
		},
		{
			name:   "negative counts clamp to zero",
			fields: models.TeachingFields{TheoryHours: strPtr("15h"), TheoryGroups: intPtr(-2), LabGroups: intPtr(-1)},
			want:   Load{TheorySize: HourSize15},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.fields))
		})
	}
}

func TestNormalizeLegacySchema(t *testing.T) {
	tests := []struct {
		name   string
		fields models.TeachingFields
		want   Load
	}{
		{
			name:   "theory text with size",
			fields: models.TeachingFields{TypeHours: strPtr("Theory 30h"), GroupCount: intPtr(2)},
			want:   Load{TheoryGroups: 2, TheorySize: HourSize30},
		},
		{
			name:   "size token alone is theory",
			fields: models.TeachingFields{TypeHours: strPtr("15H"), GroupCount: intPtr(3)},
			want:   Load{TheoryGroups: 3, TheorySize: HourSize15},
		},
		{
			name:   "lab text",
			fields: models.TeachingFields{TypeHours: strPtr("LAB 30h"), GroupCount: intPtr(2)},
			want:   Load{LabGroups: 2},
		},
		{
			name:   "theory hours column used as text",
			fields: models.TeachingFields{TheoryHours: strPtr("lab"), GroupCount: intPtr(1)},
			want:   Load{LabGroups: 1},
		},
		{
			name:   "both words resolve to theory",
			fields: models.TeachingFields{TypeHours: strPtr("Theory/Lab 15h"), GroupCount: intPtr(2)},
			want:   Load{TheoryGroups: 2, TheorySize: HourSize15},
		},
		{
			name:   "unrecognised text",
			fields: models.TeachingFields{TypeHours: strPtr("seminar"), GroupCount: intPtr(2)},
			want:   Load{},
		},
		{
			name:   "default hours carried",
			fields: models.TeachingFields{DefaultHours: intPtr(30)},
			want:   Load{DefaultHours: 30},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.fields))
		})
	}
}

func TestNormalizeEmpty(t *testing.T) {
	assert.Equal(t, Load{}, Normalize(models.TeachingFields{}))
}
