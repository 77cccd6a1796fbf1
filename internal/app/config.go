package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string // optional; without it session events are not stored
	AutoMigrate bool   // apply embedded migrations at startup
	LogLevel    string

	// Error monitoring
	SentryDSN   string
	Environment string

	// Speech service
	VoiceAPIURL    string
	HealthInterval time.Duration
	HealthTimeout  time.Duration
	SpeechTimeout  time.Duration
	CaptureMax     time.Duration // terminal driver recording limit

	// Practice sessions
	JWTSecret      string
	SessionTTL     time.Duration
	SweepInterval  time.Duration
	HintDelay      time.Duration
	EventRetention time.Duration // 0 keeps events forever

	// Desktop notifications (terminal driver)
	Notify bool
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		AutoMigrate: getenvBool("AUTO_MIGRATE", false),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		SentryDSN:   getenv("SENTRY_DSN", ""),
		Environment: getenv("ENVIRONMENT", "development"),

		VoiceAPIURL:    getenv("VOICE_API_URL", "http://localhost:5000"),
		HealthInterval: getenvDuration("VOICE_HEALTH_INTERVAL", 10*time.Second),
		HealthTimeout:  getenvDuration("VOICE_HEALTH_TIMEOUT", 3*time.Second),
		SpeechTimeout:  getenvDuration("VOICE_REQUEST_TIMEOUT", 15*time.Second),
		CaptureMax:     time.Duration(getenvIntClamped("CAPTURE_MAX_MS", 4000, 1000, 30000)) * time.Millisecond,

		JWTSecret:      os.Getenv("JWT_SECRET"), // empty means an ephemeral per-process secret
		SessionTTL:     getenvDuration("SESSION_TTL", 30*time.Minute),
		SweepInterval:  getenvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		HintDelay:      getenvDuration("HINT_DELAY", 800*time.Millisecond),
		EventRetention: getenvDuration("EVENT_RETENTION", 0),

		Notify: getenvBool("NOTIFY", true),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvIntClamped reads an integer env var and clamps it to [min, max].
func getenvIntClamped(k string, def, min, max int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// getenvDuration reads a Go duration string ("30s", "15m"). Invalid values
// fall back to def. Negative values pass through: HINT_DELAY=-1s turns
// automatic hints off.
func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}

func getenvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
