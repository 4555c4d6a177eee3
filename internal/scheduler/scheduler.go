// Package scheduler wires the adherence engine to gocron: the periodic
// auto-skip sweep plus one daily-repeating reminder job per scheduled
// time of day of every active plan.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"medminder/internal/adherence"
	"medminder/internal/models"
)

// Notifier delivers a single dose reminder. Firing is independent of the
// engine: a reminder never records a dose or moves the slot pointer.
type Notifier interface {
	Remind(plan *models.MedicationPlan, ordinal, total int)
}

type Scheduler struct {
	cron     gocron.Scheduler
	engine   *adherence.Engine
	notifier Notifier
	log      *zap.Logger
	loc      *time.Location

	reminderJobs []uuid.UUID
}

// New builds the scheduler and registers the sweep job. Reminder jobs
// are registered by Reschedule once plans are known.
func New(engine *adherence.Engine, notifier Notifier, loc *time.Location, log *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	cron, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cron:     cron,
		engine:   engine,
		notifier: notifier,
		log:      log,
		loc:      loc,
	}

	_, err = cron.NewJob(
		gocron.DurationJob(adherence.SweepInterval),
		gocron.NewTask(s.tick),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Stop() error { return s.cron.Shutdown() }

// tick runs the sweep and then retries any dose events the care API
// rejected earlier.
func (s *Scheduler) tick() {
	now := time.Now().In(s.loc)
	if n := s.engine.Sweep(now); n > 0 {
		s.log.Info("sweep resolved overdue slots", zap.Int("count", n))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.engine.FlushOutbox(ctx)
}

// Reschedule clears every previously registered reminder and registers
// one daily-repeating job per time entry of each active plan. Each job
// carries its ordinal so the notification is self-describing; the jobs
// are otherwise unaware of each other.
func (s *Scheduler) Reschedule(plans []*models.MedicationPlan) {
	for _, id := range s.reminderJobs {
		if err := s.cron.RemoveJob(id); err != nil {
			s.log.Debug("stale reminder job not removed", zap.Error(err))
		}
	}
	s.reminderJobs = s.reminderJobs[:0]

	for _, p := range plans {
		if !p.IsActive() {
			continue
		}
		total := len(p.TimesOfDay)
		for i, hm := range p.TimesOfDay {
			at, err := time.Parse("15:04", hm)
			if err != nil {
				s.log.Warn("unparseable time of day, reminder skipped",
					zap.String("plan", p.ID), zap.String("time", hm))
				continue
			}
			plan, ordinal := p, i+1
			job, err := s.cron.NewJob(
				gocron.DailyJob(1, gocron.NewAtTimes(
					gocron.NewAtTime(uint(at.Hour()), uint(at.Minute()), 0),
				)),
				gocron.NewTask(func() {
					s.notifier.Remind(plan, ordinal, total)
				}),
			)
			if err != nil {
				s.log.Warn("reminder job not registered",
					zap.String("plan", p.ID), zap.String("time", hm), zap.Error(err))
				continue
			}
			s.reminderJobs = append(s.reminderJobs, job.ID())
		}
	}
	s.log.Info("reminders rescheduled", zap.Int("jobs", len(s.reminderJobs)))
}

// ReminderJobs reports how many reminder registrations are live.
func (s *Scheduler) ReminderJobs() int { return len(s.reminderJobs) }
