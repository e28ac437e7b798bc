package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lecturer-contract-api/internal/models"
)

func TestHoursCombinePolicy(t *testing.T) {
	assert.Equal(t, 15, Hours(Load{TheorySize: HourSize15, TheoryGroups: 3, Combined: true}))
	assert.Equal(t, 45, Hours(Load{TheorySize: HourSize15, TheoryGroups: 3}))
}

func TestHoursLabNeverCombines(t *testing.T) {
	assert.Equal(t, 60, Hours(Load{LabGroups: 2}))
	assert.Equal(t, 60, Hours(Load{LabGroups: 2, Combined: true}))

	fields := models.TeachingFields{LabGroups: intPtr(2), TheoryCombined: true}
	assert.Equal(t, 60, RecordHours(fields))
}

func TestHoursTheoryAndLab(t *testing.T) {
	assert.Equal(t, 90, Hours(Load{TheorySize: HourSize30, TheoryGroups: 2, LabGroups: 1}))
	assert.Equal(t, 60, Hours(Load{TheorySize: HourSize30, TheoryGroups: 4, Combined: true, LabGroups: 1}))
}

func TestHoursWithoutSizeIgnoresTheory(t *testing.T) {
	assert.Equal(t, 0, Hours(Load{TheoryGroups: 4}))
	assert.Equal(t, 30, Hours(Load{TheoryGroups: 4, LabGroups: 1}))
}

func TestHoursFallbackIdempotence(t *testing.T) {
	empty := models.TeachingFields{}
	require.Equal(t, 0, RecordHours(empty))
	require.Equal(t, 0, RecordHours(empty))

	withDefault := models.TeachingFields{DefaultHours: intPtr(30)}
	require.Equal(t, 30, RecordHours(withDefault))
	require.Equal(t, 30, RecordHours(withDefault))
}

func TestHoursDefaultIgnoredWhenGroupsResolve(t *testing.T) {
	fields := models.TeachingFields{TheoryHours: strPtr("15h"), TheoryGroups: intPtr(1), DefaultHours: intPtr(99)}
	assert.Equal(t, 15, RecordHours(fields))
}

func TestSalary(t *testing.T) {
	salary := Salary(60, floatPtr(10))
	require.NotNil(t, salary)
	assert.Equal(t, 600.0, *salary)

	unrounded := Salary(3, floatPtr(12.345))
	require.NotNil(t, unrounded)
	assert.InDelta(t, 37.035, *unrounded, 1e-9)

	assert.Nil(t, Salary(60, nil))
}
