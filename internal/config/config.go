package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TelegramToken string
	PatientChatID int64
	APIBaseURL    string
	APIToken      string
	DBPath        string
	Timezone      *time.Location
}

func Load() (Config, error) {
	cfg := Config{
		TelegramToken: botToken(),
		APIBaseURL:    strings.TrimSpace(os.Getenv("CARE_API_URL")),
		APIToken:      strings.TrimSpace(os.Getenv("CARE_API_TOKEN")),
		DBPath:        envOr("DB_PATH", "medminder.db"),
	}
	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("config: telegram token missing (secret file or TELEGRAM_BOT_TOKEN)")
	}
	if cfg.APIBaseURL == "" {
		return cfg, fmt.Errorf("config: CARE_API_URL missing")
	}

	if raw := strings.TrimSpace(os.Getenv("PATIENT_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("config: bad PATIENT_CHAT_ID %q: %w", raw, err)
		}
		cfg.PatientChatID = id
	}

	tz := envOr("TZ_NAME", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return cfg, fmt.Errorf("config: bad TZ_NAME %q: %w", tz, err)
	}
	cfg.Timezone = loc

	return cfg, nil
}

// botToken prefers the Docker secret, falling back to the env var.
func botToken() string {
	if data, err := os.ReadFile("/run/secrets/telegram_bot_token"); err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token
		}
	}
	return strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
