package adherence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medminder/internal/models"
)

// sinkTimeout bounds a single outbound dose-event delivery attempt.
const sinkTimeout = 10 * time.Second

var (
	ErrPlanNotFound  = errors.New("adherence: plan not found")
	ErrPlanNotActive = errors.New("adherence: plan is not active")
)

// Store persists the client-local day state so counters, the resolution
// ledger and undelivered dose events survive a restart.
type Store interface {
	SavePlanDay(p *models.MedicationPlan, day string) error
	MarkSlotResolved(planID, day string, index int, action models.DoseAction) error
	EnqueueDoseEvent(ev models.DoseEvent) error
	ListDoseOutbox(limit int) ([]models.DoseEvent, error)
	DeleteDoseEvent(id string) error
	TouchDoseEvent(id string) error
}

// EventSink delivers dose events to the care API.
type EventSink interface {
	RecordDoseEvent(ctx context.Context, ev models.DoseEvent) error
}

// Engine owns the in-memory plan set and is the only writer of its daily
// state. All entry points serialize on one mutex, so a sweep tick and a
// patient tap cannot interleave mid-mutation.
type Engine struct {
	mu    sync.Mutex
	plans map[string]*models.MedicationPlan
	store Store
	sink  EventSink
	log   *zap.Logger

	onSyncFail func(models.DoseEvent)
}

func NewEngine(store Store, sink EventSink, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		plans: make(map[string]*models.MedicationPlan),
		store: store,
		sink:  sink,
		log:   log,
	}
}

// OnSyncFailure registers a callback invoked whenever a dose event
// could not be delivered and was queued for retry, so the patient can be
// told the action was kept locally. Set once during wiring, before any
// recording starts.
func (e *Engine) OnSyncFailure(fn func(models.DoseEvent)) {
	e.onSyncFail = fn
}

// SetPlans replaces the plan set, typically after a fetch from the care
// API. Each active plan gets its day state normalized and its slot
// pointer established.
func (e *Engine) SetPlans(plans []*models.MedicationPlan, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.plans = make(map[string]*models.MedicationPlan, len(plans))
	for _, p := range plans {
		e.plans[p.ID] = p
		if p.IsActive() {
			ResetIfNewDay(p, now)
			CurrentSlot(p, now)
		}
	}
}

// Plans returns a snapshot of all plans, sorted by medication name.
// Callers get copies; rendering never touches engine-owned state.
func (e *Engine) Plans() []*models.MedicationPlan {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.MedicationPlan, 0, len(e.plans))
	for _, p := range e.plans {
		out = append(out, snapshot(p))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MedicationName < out[j].MedicationName
	})
	return out
}

// Plan returns a snapshot of one plan, or nil.
func (e *Engine) Plan(id string) *models.MedicationPlan {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.plans[id]
	if !ok {
		return nil
	}
	return snapshot(p)
}

// RecordTaken records a taken dose for the plan's current slot and
// advances the pointer. The local mutation is synchronous; delivery to
// the care API happens in the background and never rolls it back.
func (e *Engine) RecordTaken(planID string, at time.Time) (*models.MedicationPlan, error) {
	return e.record(planID, models.ActionTaken, at)
}

// RecordSkipped is the symmetric skip entry point.
func (e *Engine) RecordSkipped(planID string, at time.Time) (*models.MedicationPlan, error) {
	return e.record(planID, models.ActionSkipped, at)
}

func (e *Engine) record(planID string, action models.DoseAction, at time.Time) (*models.MedicationPlan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.plans[planID]
	if !ok {
		return nil, ErrPlanNotFound
	}
	if !p.IsActive() {
		e.log.Info("dose action on inactive plan ignored",
			zap.String("plan", planID), zap.String("status", string(p.Status)))
		return snapshot(p), ErrPlanNotActive
	}

	ResetIfNewDay(p, at)
	slot := CurrentSlot(p, at)
	if slot == nil {
		// empty schedule, nothing to record
		return snapshot(p), nil
	}

	advance(p, action, slot, at)
	e.persist(p, slot.Index, action, at)
	e.emit(planID, action, at)
	return snapshot(p), nil
}

// advance is the single authoritative transition for every dose
// resolution, whether the patient acted or the sweeper timed the slot
// out. It records the slot in today's ledger, bumps the matching
// counter (restarting it when the last action was on an earlier day) and
// moves the pointer to the next unresolved slot, nil when none remain.
func advance(p *models.MedicationPlan, action models.DoseAction, slot *models.TimeSlot, at time.Time) {
	p.MarkResolved(slot.Index, action)
	switch action {
	case models.ActionTaken:
		if p.LastTakenAt == nil || !sameDay(*p.LastTakenAt, at) {
			p.TakenCountToday = 1
		} else {
			p.TakenCountToday++
		}
		t := at
		p.LastTakenAt = &t
	case models.ActionSkipped, models.ActionTimeout:
		if p.LastSkippedAt == nil || !sameDay(*p.LastSkippedAt, at) {
			p.SkippedCountToday = 1
		} else {
			p.SkippedCountToday++
		}
		t := at
		p.LastSkippedAt = &t
	}
	advancePointer(p, slot)
}

// persist writes the resolution and day counters through to sqlite.
// Failures are logged, never surfaced: the in-memory state already
// changed and stays changed.
func (e *Engine) persist(p *models.MedicationPlan, index int, action models.DoseAction, at time.Time) {
	if e.store == nil {
		return
	}
	day := at.Format(dayLayout)
	if action == models.ActionTimeout {
		action = models.ActionSkipped
	}
	if err := e.store.MarkSlotResolved(p.ID, day, index, action); err != nil {
		e.log.Warn("slot resolution not persisted", zap.String("plan", p.ID), zap.Error(err))
	}
	if err := e.store.SavePlanDay(p, day); err != nil {
		e.log.Warn("plan day state not persisted", zap.String("plan", p.ID), zap.Error(err))
	}
}

// emit hands the dose event to the care API in the background. On
// failure the event lands in the outbox and the sweep tick retries it;
// the patient only ever sees "saved locally, will sync later".
func (e *Engine) emit(planID string, action models.DoseAction, at time.Time) {
	if e.sink == nil {
		return
	}
	if action == models.ActionTimeout {
		action = models.ActionSkipped
	}
	ev := models.DoseEvent{
		ID:        uuid.NewString(),
		PlanID:    planID,
		Action:    action,
		Timestamp: at,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		err := e.sink.RecordDoseEvent(ctx, ev)
		if err == nil {
			return
		}
		e.log.Warn("dose event not delivered, queued for retry",
			zap.String("plan", ev.PlanID), zap.String("action", string(ev.Action)), zap.Error(err))
		if e.store != nil {
			if err := e.store.EnqueueDoseEvent(ev); err != nil {
				e.log.Error("dose event lost: outbox write failed",
					zap.String("plan", ev.PlanID), zap.Error(err))
			}
		}
		if e.onSyncFail != nil {
			e.onSyncFail(ev)
		}
	}()
}

// FlushOutbox retries undelivered dose events. Called from the sweep
// tick; safe to run concurrently with everything else since it only
// touches the store and the sink.
func (e *Engine) FlushOutbox(ctx context.Context) {
	if e.store == nil || e.sink == nil {
		return
	}
	pending, err := e.store.ListDoseOutbox(50)
	if err != nil {
		e.log.Warn("outbox read failed", zap.Error(err))
		return
	}
	for _, ev := range pending {
		if err := e.sink.RecordDoseEvent(ctx, ev); err != nil {
			e.log.Debug("outbox retry failed", zap.String("event", ev.ID), zap.Error(err))
			_ = e.store.TouchDoseEvent(ev.ID)
			continue
		}
		if err := e.store.DeleteDoseEvent(ev.ID); err != nil {
			e.log.Warn("outbox delete failed", zap.String("event", ev.ID), zap.Error(err))
		}
	}
}

func snapshot(p *models.MedicationPlan) *models.MedicationPlan {
	cp := *p
	if p.CurrentSlot != nil {
		slot := *p.CurrentSlot
		cp.CurrentSlot = &slot
	}
	if p.ResolvedToday != nil {
		cp.ResolvedToday = make(map[int]models.DoseAction, len(p.ResolvedToday))
		for k, v := range p.ResolvedToday {
			cp.ResolvedToday[k] = v
		}
	}
	return &cp
}
