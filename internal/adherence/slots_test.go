package adherence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medminder/internal/models"
)

func testPlan(times ...string) *models.MedicationPlan {
	return &models.MedicationPlan{
		ID:             "plan-1",
		MedicationName: "Lisinopril",
		DosageText:     "10mg",
		TimesOfDay:     times,
		Status:         models.PlanActive,
	}
}

// clock returns a fixed calendar day at the given wall-clock time.
func clock(hour, min int) time.Time {
	return time.Date(2026, time.March, 14, hour, min, 0, 0, time.UTC)
}

func yesterdayAt(hour, min int) time.Time {
	return clock(hour, min).AddDate(0, 0, -1)
}

func TestCurrentSlotEmptySchedule(t *testing.T) {
	p := testPlan()
	assert.Nil(t, CurrentSlot(p, clock(8, 0)))
}

func TestCurrentSlotBeforeFirstTime(t *testing.T) {
	p := testPlan("08:00", "20:00")
	slot := CurrentSlot(p, clock(7, 0))
	require.NotNil(t, slot)
	assert.Equal(t, 0, slot.Index)
	assert.Equal(t, "08:00", slot.Time)
	assert.False(t, slot.IsOverdue)
	assert.True(t, slot.IsCurrent)
}

func TestCurrentSlotWithinGrace(t *testing.T) {
	p := testPlan("08:00", "20:00")
	slot := CurrentSlot(p, clock(8, 10))
	require.NotNil(t, slot)
	assert.Equal(t, 0, slot.Index)
	assert.True(t, slot.IsOverdue)
	assert.True(t, slot.IsCurrent)
}

func TestCurrentSlotPastGraceMovesOn(t *testing.T) {
	p := testPlan("08:00", "20:00")
	slot := CurrentSlot(p, clock(8, 25))
	require.NotNil(t, slot)
	assert.Equal(t, 1, slot.Index)
	assert.Equal(t, "20:00", slot.Time)
	assert.False(t, slot.IsOverdue)
}

func TestCurrentSlotAllPastGraceFallsBackToFirst(t *testing.T) {
	p := testPlan("08:00", "12:00")
	slot := CurrentSlot(p, clock(23, 0))
	require.NotNil(t, slot)
	assert.Equal(t, 0, slot.Index)
	assert.True(t, slot.IsOverdue)
}

func TestCurrentSlotCachedPointerIsAuthoritative(t *testing.T) {
	p := testPlan("08:00", "20:00")
	p.CurrentSlot = &models.TimeSlot{Time: "20:00", Index: 1, IsCurrent: true}

	// The clock says slot 0, the cache says slot 1; the cache wins.
	slot := CurrentSlot(p, clock(7, 0))
	require.NotNil(t, slot)
	assert.Equal(t, 1, slot.Index)
}

func TestCurrentSlotSkipsMalformedEntries(t *testing.T) {
	p := testPlan("nonsense", "20:00")
	slot := CurrentSlot(p, clock(7, 0))
	require.NotNil(t, slot)
	assert.Equal(t, 1, slot.Index)
	assert.Equal(t, "20:00", slot.Time)
}

func TestNextSlot(t *testing.T) {
	p := testPlan("08:00", "14:00", "20:00")

	first := NextSlot(p, nil)
	require.NotNil(t, first)
	assert.Equal(t, 0, first.Index)

	mid := NextSlot(p, &models.TimeSlot{Time: "08:00", Index: 0})
	require.NotNil(t, mid)
	assert.Equal(t, 1, mid.Index)
	assert.True(t, mid.IsCurrent)
	assert.False(t, mid.IsOverdue)

	assert.Nil(t, NextSlot(p, &models.TimeSlot{Time: "20:00", Index: 2}))
}

func TestNextSlotEmptySchedule(t *testing.T) {
	assert.Nil(t, NextSlot(testPlan(), nil))
}
