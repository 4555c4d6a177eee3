package main

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"medminder/internal/adherence"
	"medminder/internal/config"
	"medminder/internal/handlers"
	"medminder/internal/notify"
	"medminder/internal/plansource"
	"medminder/internal/scheduler"
	"medminder/internal/storage"
)

func main() {
	_ = godotenv.Load() // TELEGRAM_BOT_TOKEN, CARE_API_URL etc.

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal("telegram", zap.Error(err))
	}
	log.Info("authorized", zap.String("bot", bot.Self.UserName))

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatal("storage", zap.Error(err))
	}
	defer db.Close()

	source := plansource.New(cfg.APIBaseURL, cfg.APIToken, 0)
	engine := adherence.NewEngine(db, source, log)
	notifier := notify.New(bot, cfg.PatientChatID, log)

	sched, err := scheduler.New(engine, notifier, cfg.Timezone, log)
	if err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}

	h := &handlers.Handler{
		Bot:    bot,
		Engine: engine,
		Source: source,
		Sched:  sched,
		DB:     db,
		ChatID: cfg.PatientChatID,
		Loc:    cfg.Timezone,
		Log:    log,
	}

	engine.OnSyncFailure(h.NotifySavedLocally)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := h.SyncPlans(ctx); err != nil {
		// Start anyway: mirrored plans and the outbox still work offline.
		log.Warn("initial plan sync failed, using local mirror", zap.Error(err))
		if err := h.LoadLocalPlans(); err != nil {
			log.Warn("local mirror unavailable", zap.Error(err))
		}
	}
	cancel()

	sched.Start()
	defer sched.Stop()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := bot.GetUpdatesChan(updateConfig)

	for upd := range updates {
		if upd.Message != nil && upd.Message.IsCommand() {
			h.HandleCommand(upd.Message)
			continue
		}
		if upd.CallbackQuery != nil {
			h.HandleCallback(upd.CallbackQuery)
		}
	}
}
