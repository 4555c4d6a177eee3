// Package handlers routes Telegram commands and button taps into the
// adherence engine.
package handlers

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"medminder/internal/adherence"
	"medminder/internal/models"
	"medminder/internal/plansource"
	"medminder/internal/scheduler"
	"medminder/internal/storage"
)

type Handler struct {
	Bot    *tgbotapi.BotAPI
	Engine *adherence.Engine
	Source *plansource.Client
	Sched  *scheduler.Scheduler
	DB     *storage.DB
	ChatID int64
	Loc    *time.Location
	Log    *zap.Logger
}

func (h *Handler) now() time.Time {
	if h.Loc != nil {
		return time.Now().In(h.Loc)
	}
	return time.Now()
}

func (h *Handler) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.Bot.Send(msg); err != nil {
		h.Log.Warn("message not sent", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// allowed restricts the bot to the configured patient chat.
func (h *Handler) allowed(chatID int64) bool {
	return h.ChatID == 0 || chatID == h.ChatID
}

// NotifySavedLocally tells the patient a dose action was kept on the
// device after the care API rejected it. Informational only; the
// recorded state is never rolled back.
func (h *Handler) NotifySavedLocally(ev models.DoseEvent) {
	if h.ChatID == 0 {
		return
	}
	h.send(h.ChatID, textSavedLocally)
}

// SyncPlans refetches the plan list from the care API, restores the
// locally tracked day state for each plan, hands the set to the engine
// and re-registers all reminders. Called on startup and on /sync.
func (h *Handler) SyncPlans(ctx context.Context) error {
	plans, err := h.Source.ListPlans(ctx)
	if err != nil {
		return err
	}

	now := h.now()
	day := now.Format("2006-01-02")
	keep := make([]string, 0, len(plans))
	for _, p := range plans {
		keep = append(keep, p.ID)
		if err := h.DB.LoadDayState(p, day); err != nil {
			h.Log.Warn("day state not restored", zap.String("plan", p.ID), zap.Error(err))
		}
		if err := h.DB.UpsertPlan(p); err != nil {
			h.Log.Warn("plan mirror not saved", zap.String("plan", p.ID), zap.Error(err))
		}
	}
	if err := h.DB.PrunePlans(keep); err != nil {
		h.Log.Warn("stale plans not pruned", zap.Error(err))
	}

	h.Engine.SetPlans(plans, now)
	h.Sched.Reschedule(h.Engine.Plans())
	h.Log.Info("plans synced", zap.Int("count", len(plans)))
	return nil
}

// LoadLocalPlans boots the engine from the sqlite mirror when the care
// API is unreachable at startup. Reminders still get registered so the
// patient keeps getting nudged offline.
func (h *Handler) LoadLocalPlans() error {
	plans, err := h.DB.ListPlans()
	if err != nil {
		return err
	}
	now := h.now()
	day := now.Format("2006-01-02")
	for _, p := range plans {
		if err := h.DB.LoadDayState(p, day); err != nil {
			h.Log.Warn("day state not restored", zap.String("plan", p.ID), zap.Error(err))
		}
	}
	h.Engine.SetPlans(plans, now)
	h.Sched.Reschedule(h.Engine.Plans())
	h.Log.Info("plans loaded from local mirror", zap.Int("count", len(plans)))
	return nil
}

func statusLabel(p *models.MedicationPlan) string {
	switch p.Status {
	case models.PlanActive:
		return "active"
	case models.PlanPaused:
		return "paused"
	case models.PlanCompleted:
		return "completed"
	default:
		return string(p.Status)
	}
}
