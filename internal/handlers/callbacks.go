package handlers

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"medminder/internal/adherence"
	"medminder/internal/models"
	"medminder/internal/notify"
)

func (h *Handler) HandleCallback(cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	if !h.allowed(chatID) {
		return
	}

	// always answer the callback so the client stops its spinner
	if _, err := h.Bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		h.Log.Debug("callback not answered", zap.Error(err))
	}

	switch {
	case strings.HasPrefix(cq.Data, notify.CallbackTaken):
		h.handleDose(cq, strings.TrimPrefix(cq.Data, notify.CallbackTaken), models.ActionTaken)
	case strings.HasPrefix(cq.Data, notify.CallbackSkip):
		h.handleDose(cq, strings.TrimPrefix(cq.Data, notify.CallbackSkip), models.ActionSkipped)
	}
}

func (h *Handler) handleDose(cq *tgbotapi.CallbackQuery, planID string, action models.DoseAction) {
	chatID := cq.Message.Chat.ID
	now := h.now()

	var (
		plan *models.MedicationPlan
		err  error
	)
	if action == models.ActionTaken {
		plan, err = h.Engine.RecordTaken(planID, now)
	} else {
		plan, err = h.Engine.RecordSkipped(planID, now)
	}

	switch {
	case errors.Is(err, adherence.ErrPlanNotFound):
		h.send(chatID, textPlanGone)
		return
	case errors.Is(err, adherence.ErrPlanNotActive):
		h.send(chatID, textPlanInactive)
		return
	case err != nil:
		h.Log.Warn("dose action failed", zap.String("plan", planID), zap.Error(err))
		return
	}

	// Replace the reminder's keyboard with a confirmation so a second
	// tap on the same message has nothing to press.
	confirm := h.confirmText(plan, action)
	edit := tgbotapi.NewEditMessageText(chatID, cq.Message.MessageID, confirm)
	if _, err := h.Bot.Send(edit); err != nil {
		h.Log.Debug("reminder message not edited", zap.Error(err))
		h.send(chatID, confirm)
	}
}

func (h *Handler) confirmText(plan *models.MedicationPlan, action models.DoseAction) string {
	var b strings.Builder
	if action == models.ActionTaken {
		fmt.Fprintf(&b, "✅ %s recorded as taken", plan.MedicationName)
	} else {
		fmt.Fprintf(&b, "⏭ %s recorded as skipped", plan.MedicationName)
	}

	if slot := plan.CurrentSlot; slot != nil {
		fmt.Fprintf(&b, "\nNext dose today: %s", slot.Time)
	} else if len(plan.TimesOfDay) > 0 {
		b.WriteString("\nThat was the last dose for today")
	}
	return b.String()
}
