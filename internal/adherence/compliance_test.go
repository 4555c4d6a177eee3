package adherence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplianceEmptySchedule(t *testing.T) {
	assert.Equal(t, 0, Compliance(testPlan(), clock(12, 0)))
}

func TestComplianceNothingTakenToday(t *testing.T) {
	p := testPlan("08:00", "20:00")
	assert.Equal(t, 0, Compliance(p, clock(12, 0)))
}

func TestComplianceStaleCountersIgnored(t *testing.T) {
	// Leftover counters from yesterday must not leak into today.
	p := testPlan("08:00", "20:00")
	taken := yesterdayAt(20, 5)
	p.LastTakenAt = &taken
	p.TakenCountToday = 2
	assert.Equal(t, 0, Compliance(p, clock(12, 0)))
}

func TestComplianceRounding(t *testing.T) {
	cases := []struct {
		name  string
		times []string
		taken int
		want  int
	}{
		{"one of three", []string{"08:00", "14:00", "20:00"}, 1, 33},
		{"two of three", []string{"08:00", "14:00", "20:00"}, 2, 67},
		{"all taken", []string{"08:00", "14:00", "20:00"}, 3, 100},
		{"one of one", []string{"08:00"}, 1, 100},
		{"half", []string{"08:00", "20:00"}, 1, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := testPlan(tc.times...)
			taken := clock(8, 5)
			p.LastTakenAt = &taken
			p.TakenCountToday = tc.taken
			assert.Equal(t, tc.want, Compliance(p, clock(12, 0)))
		})
	}
}

func TestComplianceClampedAt100(t *testing.T) {
	p := testPlan("08:00")
	taken := clock(8, 5)
	p.LastTakenAt = &taken
	p.TakenCountToday = 4 // more recorded than scheduled
	assert.Equal(t, 100, Compliance(p, clock(12, 0)))
}

func TestComplianceSkipsNotPenalized(t *testing.T) {
	p := testPlan("08:00", "14:00", "20:00")
	taken := clock(8, 5)
	p.LastTakenAt = &taken
	p.TakenCountToday = 1
	p.SkippedCountToday = 2
	assert.Equal(t, 33, Compliance(p, clock(21, 0)))
}

func TestComplianceBounds(t *testing.T) {
	for taken := 0; taken <= 5; taken++ {
		for skipped := 0; skipped <= 5; skipped++ {
			p := testPlan("08:00", "20:00")
			at := clock(8, 5)
			p.LastTakenAt = &at
			p.TakenCountToday = taken
			p.SkippedCountToday = skipped
			got := Compliance(p, clock(12, 0))
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		}
	}
}
