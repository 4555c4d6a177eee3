package models

import (
	"encoding/json"
	"time"
)

// PlanStatus mirrors the care API's plan lifecycle. Only active plans
// participate in scheduling, sweeping and reminders.
type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanPaused    PlanStatus = "paused"
	PlanStopped   PlanStatus = "stopped"
	PlanCompleted PlanStatus = "completed"
)

// DoseAction is what happened to a single time slot.
type DoseAction string

const (
	ActionTaken   DoseAction = "taken"
	ActionSkipped DoseAction = "skipped"
	// ActionTimeout is a slot the sweeper auto-resolved. It is recorded
	// as a skip everywhere outside the transition itself.
	ActionTimeout DoseAction = "timeout"
)

// TimeSlot points into a plan's ordered time-of-day list. Derived state,
// never persisted by the care API.
type TimeSlot struct {
	Time      string `json:"time"` // "HH:MM"
	Index     int    `json:"index"`
	IsOverdue bool   `json:"is_overdue"`
	IsCurrent bool   `json:"is_current"`
}

// MedicationPlan is one prescribed medication as mirrored from the care
// API, plus the client-local daily tracking state.
type MedicationPlan struct {
	ID             string     `json:"id"`
	MedicationName string     `json:"medicationName"`
	DosageText     string     `json:"dosageText"`
	Category       string     `json:"category"`
	TimesOfDay     FlexTimes  `json:"timesOfDay"` // order defines slot indices
	Status         PlanStatus `json:"status"`
	StartDate      string     `json:"startDate,omitempty"` // YYYY-MM-DD
	EndDate        string     `json:"endDate,omitempty"`

	// Daily tracking, client-local. Reset on day rollover.
	LastTakenAt       *time.Time `json:"-"`
	LastSkippedAt     *time.Time `json:"-"`
	TakenCountToday   int        `json:"-"`
	SkippedCountToday int        `json:"-"`

	// CurrentSlot is authoritative once set; nil after all of today's
	// doses are resolved, or before the resolver has run.
	CurrentSlot *TimeSlot `json:"-"`

	// ResolvedToday maps slot index -> recorded action for today. The
	// sweeper consults it so an overdue slot is auto-skipped at most once.
	ResolvedToday map[int]DoseAction `json:"-"`
}

// IsActive reports whether the plan participates in scheduling.
func (p *MedicationPlan) IsActive() bool { return p.Status == PlanActive }

// Resolved reports whether a taken/skipped event was already recorded for
// the slot index today.
func (p *MedicationPlan) Resolved(index int) bool {
	_, ok := p.ResolvedToday[index]
	return ok
}

// MarkResolved records today's action for a slot index.
func (p *MedicationPlan) MarkResolved(index int, action DoseAction) {
	if p.ResolvedToday == nil {
		p.ResolvedToday = make(map[int]DoseAction)
	}
	if action == ActionTimeout {
		action = ActionSkipped
	}
	p.ResolvedToday[index] = action
}

// FlexTimes is an ordered list of "HH:MM" strings. The care API sends
// either a single string or a list, so both decode.
type FlexTimes []string

func (t *FlexTimes) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single == "" {
		*t = nil
		return nil
	}
	*t = []string{single}
	return nil
}

// DoseEvent is the outbound record of a taken/skipped dose.
type DoseEvent struct {
	ID        string     `json:"id"`
	PlanID    string     `json:"planId"`
	Action    DoseAction `json:"action"` // taken | skipped
	Timestamp time.Time  `json:"timestamp"`
}
