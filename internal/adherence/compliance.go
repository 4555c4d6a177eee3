package adherence

import (
	"math"
	"time"

	"medminder/internal/models"
)

// Compliance returns the day-scoped adherence percentage: doses taken
// today over doses scheduled per day, rounded, clamped to [0,100].
// Skipped doses are not penalized beyond their absence from the
// numerator. A plan with no dose taken today reports 0 regardless of any
// leftover counter values from a previous day.
func Compliance(p *models.MedicationPlan, now time.Time) int {
	total := len(p.TimesOfDay)
	if total == 0 {
		return 0
	}
	if p.LastTakenAt == nil || !sameDay(*p.LastTakenAt, now) {
		return 0
	}
	pct := int(math.Round(float64(p.TakenCountToday) / float64(total) * 100))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
