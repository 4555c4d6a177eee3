package adherence

import (
	"time"

	"medminder/internal/models"
)

// ResetIfNewDay zeroes the per-day counters and the resolution ledger
// when the most recent recorded action belongs to a previous calendar
// day, then re-establishes the slot pointer for the new day. On the same
// day it only refreshes the pointer's overdue flag. Idempotent: a second
// call on the same day is a no-op beyond the metadata refresh.
func ResetIfNewDay(p *models.MedicationPlan, now time.Time) {
	stale := false
	if p.LastTakenAt != nil && !sameDay(*p.LastTakenAt, now) {
		stale = true
	}
	if p.LastSkippedAt != nil && !sameDay(*p.LastSkippedAt, now) {
		stale = true
	}
	if !stale {
		refreshOverdue(p, now)
		return
	}
	p.TakenCountToday = 0
	p.SkippedCountToday = 0
	p.ResolvedToday = nil
	p.CurrentSlot = nil
	CurrentSlot(p, now)
}
