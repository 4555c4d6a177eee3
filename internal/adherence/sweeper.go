package adherence

import (
	"time"

	"go.uber.org/zap"

	"medminder/internal/models"
)

// SweepInterval is how often the sweeper scans while the process runs.
const SweepInterval = 5 * time.Minute

// Sweep auto-resolves every overdue, unacknowledged slot of every active
// plan as skipped. Idempotent: the per-day resolution ledger records each
// auto-skip, so a second pass over the same slot changes nothing. The
// sweeper never marks a slot taken. Returns the number of slots it
// resolved.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	swept := 0
	for _, p := range e.plans {
		if !p.IsActive() {
			continue
		}
		ResetIfNewDay(p, now)
		for i, hm := range p.TimesOfDay {
			if p.Resolved(i) {
				continue
			}
			at, err := slotAt(hm, now)
			if err != nil {
				continue
			}
			if now.Sub(at) <= GraceWindow {
				continue // still pending or in grace
			}
			slot := &models.TimeSlot{Time: hm, Index: i, IsOverdue: true}
			advance(p, models.ActionTimeout, slot, now)
			e.persist(p, i, models.ActionSkipped, now)
			e.emit(p.ID, models.ActionSkipped, now)
			swept++
			e.log.Info("slot auto-skipped",
				zap.String("plan", p.ID),
				zap.String("medication", p.MedicationName),
				zap.Int("slot", i),
				zap.String("time", hm))
		}
	}
	return swept
}
