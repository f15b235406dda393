package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config carries every runtime setting the service needs. Secrets are held
// here and injected into the components that use them; nothing reads the
// environment after startup.
type Config struct {
	Port        string
	DatabaseURL string
	BaseURL     string // external base URL used when building pick links

	SecretKey      string // root secret for signed pick-link tokens
	WorkerAPIToken string // bearer token for the delivery agent
	AdminAPIToken  string // bearer token for admin endpoints

	AllowedOrigins string

	// football-data.org; empty token disables fixture ingestion and the
	// results scheduler.
	FootballDataToken   string
	ResultsPollInterval time.Duration

	// WhatsApp Cloud API credentials for the embedded delivery worker.
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string

	// Run the delivery worker in-process (hybrid deployment). When false the
	// worker is expected to run elsewhere and poll over HTTP.
	WorkerEnabled      bool
	WorkerPollInterval time.Duration

	UnreachableThreshold int
	FailureWindow        int
}

// Load reads .env (when present) and the environment into a Config.
// Hard-required settings are fatal when missing.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file found, reading environment variables directly")
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "5001"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		BaseURL:               getEnv("BASE_URL", "http://localhost:5001"),
		SecretKey:             os.Getenv("SECRET_KEY"),
		WorkerAPIToken:        os.Getenv("WORKER_API_TOKEN"),
		AdminAPIToken:         os.Getenv("ADMIN_API_TOKEN"),
		AllowedOrigins:        getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		FootballDataToken:     os.Getenv("FOOTBALL_DATA_API_TOKEN"),
		ResultsPollInterval:   getDuration("RESULTS_POLL_INTERVAL", 15*time.Minute),
		WhatsAppAccessToken:   os.Getenv("WA_ACCESS_TOKEN"),
		WhatsAppPhoneNumberID: os.Getenv("WA_PHONE_NUMBER_ID"),
		WorkerEnabled:         getBool("WORKER_ENABLED", false),
		WorkerPollInterval:    getDuration("WORKER_POLL_INTERVAL", 30*time.Second),
		UnreachableThreshold:  getInt("UNREACHABLE_THRESHOLD", 5),
		FailureWindow:         getInt("FAILURE_WINDOW", 10),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	if cfg.SecretKey == "" {
		log.Fatal("SECRET_KEY environment variable not set")
	}
	if cfg.WorkerAPIToken == "" {
		log.Fatal("WORKER_API_TOKEN environment variable not set")
	}
	if cfg.AdminAPIToken == "" {
		log.Fatal("ADMIN_API_TOKEN environment variable not set")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warnf("invalid %s=%q, using default %d", key, os.Getenv(key), fallback)
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Warnf("invalid %s=%q, using default %s", key, os.Getenv(key), fallback)
	}
	return fallback
}
