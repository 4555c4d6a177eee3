// Package adherence implements the per-plan daily dose state machine:
// slot resolution, day rollover, the auto-skip sweep and the compliance
// figure derived from the per-day counters.
package adherence

import (
	"time"

	"medminder/internal/models"
)

// GraceWindow is how long after a scheduled time a dose may still be
// acknowledged before it counts as overdue.
const GraceWindow = 20 * time.Minute

const dayLayout = "2006-01-02"

// slotAt anchors an "HH:MM" entry to now's calendar date and location.
func slotAt(hm string, now time.Time) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", hm, now.Location())
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(),
		t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// CurrentSlot returns the plan's current time slot, establishing the
// pointer if it is not already set. Once set, the pointer is
// authoritative: it only moves through NextSlot or a day reset, never by
// re-deriving from the clock.
//
// When the pointer is unset, the first entry not yet past the grace
// window becomes current. If every entry is past the grace window the
// resolver falls back to index 0, marked overdue; the resolution ledger
// keeps that fallback from ever double-counting anything.
func CurrentSlot(p *models.MedicationPlan, now time.Time) *models.TimeSlot {
	if p.CurrentSlot != nil {
		return p.CurrentSlot
	}
	if len(p.TimesOfDay) == 0 {
		return nil
	}
	for i, hm := range p.TimesOfDay {
		at, err := slotAt(hm, now)
		if err != nil {
			continue // malformed entry, skip rather than fail
		}
		if now.Sub(at) <= GraceWindow {
			p.CurrentSlot = &models.TimeSlot{
				Time:      hm,
				Index:     i,
				IsOverdue: now.After(at),
				IsCurrent: true,
			}
			return p.CurrentSlot
		}
	}
	p.CurrentSlot = &models.TimeSlot{
		Time:      p.TimesOfDay[0],
		Index:     0,
		IsOverdue: true,
	}
	return p.CurrentSlot
}

// NextSlot returns the slot after current, or nil when today's schedule
// is exhausted. Advancement is linear regardless of the wall clock: a
// dose taken early or late still moves to the next prescribed slot.
func NextSlot(p *models.MedicationPlan, current *models.TimeSlot) *models.TimeSlot {
	if len(p.TimesOfDay) == 0 {
		return nil
	}
	if current == nil {
		return &models.TimeSlot{Time: p.TimesOfDay[0], Index: 0, IsCurrent: true}
	}
	next := current.Index + 1
	if next >= len(p.TimesOfDay) {
		return nil
	}
	return &models.TimeSlot{Time: p.TimesOfDay[next], Index: next, IsCurrent: true}
}

// advancePointer moves the plan's pointer to the first slot after the
// one just acted on that has no recorded action today, or nil when none
// remain. Skipping resolved slots keeps the pointer off doses the
// sweeper already settled, and keeps an exhausted day's nil pointer nil
// when the sweeper later settles a slot the resolver had walked past.
func advancePointer(p *models.MedicationPlan, from *models.TimeSlot) {
	next := NextSlot(p, from)
	for next != nil && p.Resolved(next.Index) {
		next = NextSlot(p, next)
	}
	p.CurrentSlot = next
}

// refreshOverdue updates the cached pointer's display metadata against
// the clock without moving it.
func refreshOverdue(p *models.MedicationPlan, now time.Time) {
	if p.CurrentSlot == nil {
		return
	}
	at, err := slotAt(p.CurrentSlot.Time, now)
	if err != nil {
		return
	}
	p.CurrentSlot.IsOverdue = now.After(at)
}
