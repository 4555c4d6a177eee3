package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"medminder/internal/adherence"
	"medminder/internal/notify"
)

func (h *Handler) HandleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !h.allowed(chatID) {
		return
	}

	// Opening any listing counts as a focus event: catch up on a day
	// rollover the process may have slept through, and auto-resolve any
	// slot that went overdue since the last tick.
	h.Engine.Sweep(h.now())

	switch msg.Command() {
	case "start":
		h.send(chatID, textWelcome)
	case "meds":
		h.handleMeds(chatID)
	case "status":
		h.handleStatus(chatID)
	case "sync":
		h.handleSync(chatID)
	default:
		h.send(chatID, textUnknownCommand)
	}
}

func (h *Handler) handleMeds(chatID int64) {
	plans := h.Engine.Plans()
	if len(plans) == 0 {
		h.send(chatID, textNoPlans)
		return
	}

	for _, p := range plans {
		var b strings.Builder
		fmt.Fprintf(&b, "💊 %s", p.MedicationName)
		if p.DosageText != "" {
			fmt.Fprintf(&b, " — %s", p.DosageText)
		}
		fmt.Fprintf(&b, "\nSchedule: %s (%s)", strings.Join(p.TimesOfDay, ", "), statusLabel(p))

		if !p.IsActive() {
			h.send(chatID, b.String())
			continue
		}

		slot := p.CurrentSlot
		if slot == nil {
			b.WriteString("\nAll of today's doses are resolved ✅")
			h.send(chatID, b.String())
			continue
		}

		fmt.Fprintf(&b, "\nNext dose: %s (dose %d of %d)", slot.Time, slot.Index+1, len(p.TimesOfDay))
		if slot.IsOverdue {
			b.WriteString(" — overdue")
		}

		out := tgbotapi.NewMessage(chatID, b.String())
		out.ReplyMarkup = notify.Keyboard(p.ID)
		if _, err := h.Bot.Send(out); err != nil {
			h.Log.Warn("meds listing not sent", zap.Error(err))
		}
	}
}

func (h *Handler) handleStatus(chatID int64) {
	plans := h.Engine.Plans()
	if len(plans) == 0 {
		h.send(chatID, textNoPlans)
		return
	}

	now := h.now()
	var b strings.Builder
	b.WriteString("Today's adherence:\n")
	for _, p := range plans {
		if !p.IsActive() {
			continue
		}
		pct := adherence.Compliance(p, now)
		fmt.Fprintf(&b, "\n%s %s — %d%% (%d taken, %d skipped of %d)",
			complianceEmoji(pct), p.MedicationName, pct,
			p.TakenCountToday, p.SkippedCountToday, len(p.TimesOfDay))
	}
	h.send(chatID, b.String())
}

func (h *Handler) handleSync(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.SyncPlans(ctx); err != nil {
		h.Log.Warn("manual sync failed", zap.Error(err))
		h.send(chatID, textSyncFailed)
		return
	}
	h.send(chatID, fmt.Sprintf(textSynced, len(h.Engine.Plans())))
}

func complianceEmoji(pct int) string {
	switch {
	case pct >= 80:
		return "🟢"
	case pct >= 50:
		return "🟡"
	default:
		return "🔴"
	}
}
