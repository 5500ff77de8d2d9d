package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string
	LogLevel        string
	Environment     string
	ShutdownTimeout int // seconds

	// Inbox the coaching program runs on
	CoachAddress string
	CoachName    string
	IMAPHost     string
	IMAPPort     int
	SMTPHost     string
	SMTPPort     int
	MailPassword string

	// AI providers
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Cron specs per workflow
	CronProcessInbound string
	CronSendApproved   string
	CronCheckIn        string
	CronReEngagement   string
	CronCleanup        string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	coachAddress := strings.ToLower(os.Getenv("COACH_EMAIL_ADDRESS"))
	if coachAddress == "" {
		return nil, fmt.Errorf("COACH_EMAIL_ADDRESS is required")
	}

	mailPassword := os.Getenv("MAIL_APP_PASSWORD")
	if mailPassword == "" {
		return nil, fmt.Errorf("MAIL_APP_PASSWORD is required")
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		fmt.Println("Warning: OPENAI_API_KEY not set, response evaluation will not work")
	}
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")

	cfg := &Config{
		DatabaseURL:     dbURL,
		LogLevel:        envOr("LOG_LEVEL", "info"),
		Environment:     envOr("ENVIRONMENT", "development"),
		ShutdownTimeout: envIntOr("SHUTDOWN_TIMEOUT_SECONDS", 30),

		CoachAddress: coachAddress,
		CoachName:    envOr("COACH_NAME", "Wes"),
		IMAPHost:     envOr("IMAP_HOST", "imap.gmail.com"),
		IMAPPort:     envIntOr("IMAP_PORT", 993),
		SMTPHost:     envOr("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     envIntOr("SMTP_PORT", 587),
		MailPassword: mailPassword,

		OpenAIAPIKey:    openAIKey,
		AnthropicAPIKey: anthropicKey,

		CronProcessInbound: envOr("CRON_PROCESS_INBOUND", "0 8-18 * * *"),
		CronSendApproved:   envOr("CRON_SEND_APPROVED", "30 9,13,16 * * *"),
		CronCheckIn:        envOr("CRON_CHECK_IN", "0 9 * * *"),
		CronReEngagement:   envOr("CRON_RE_ENGAGEMENT", "15 10 * * *"),
		CronCleanup:        envOr("CRON_CLEANUP", "0 7 * * *"),
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
