// Package notify delivers dose reminders to the patient's Telegram chat.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"medminder/internal/models"
)

// Callback data prefixes shared with the handlers package.
const (
	CallbackTaken = "taken:"
	CallbackSkip  = "skip:"
)

// Keyboard returns the taken/skip inline keyboard for a plan.
func Keyboard(planID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Taken", CallbackTaken+planID),
			tgbotapi.NewInlineKeyboardButtonData("⏭ Skip", CallbackSkip+planID),
		),
	)
}

type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.Logger
}

func New(bot *tgbotapi.BotAPI, chatID int64, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{bot: bot, chatID: chatID, log: log}
}

// Remind sends one dose reminder. Single-dose plans get a plain
// reminder; multi-dose plans carry the ordinal so the message is
// self-describing.
func (n *Notifier) Remind(plan *models.MedicationPlan, ordinal, total int) {
	text := fmt.Sprintf("💊 Time for %s", plan.MedicationName)
	if plan.DosageText != "" {
		text += " (" + plan.DosageText + ")"
	}
	if total > 1 {
		text += fmt.Sprintf(" — dose %d of %d today", ordinal, total)
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ReplyMarkup = Keyboard(plan.ID)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn("reminder not delivered",
			zap.String("plan", plan.ID), zap.Error(err))
	}
}
