package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the client needs to reach the backend and run
// its local facade.
type Config struct {
	BackendBaseURL string
	HubURL         string
	SessionFile    string
	ListenAddr     string
	Environment    string
	Debug          bool

	AMQPURL      string
	AMQPExchange string
	OTLPEndpoint string

	HistoryPageSize int
	UploadLimit     int64
	PendingTTL      time.Duration
}

// Load reads the environment (after a best-effort .env load) into a Config.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		BackendBaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:8080"),
		HubURL:         getEnv("CHAT_HUB_URL", "ws://localhost:8080/chatHub"),
		SessionFile:    getEnv("SESSION_FILE", "session.json"),
		ListenAddr:     getEnv("LISTEN_ADDR", ":8090"),
		Environment:    getEnv("ENVIRONMENT", "dev"),
		Debug:          getEnvBool("DEBUG", false),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "chat_client_events"),
		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		HistoryPageSize: getEnvInt("HISTORY_PAGE_SIZE", 50),
		UploadLimit:     int64(getEnvInt("UPLOAD_LIMIT_BYTES", 5<<20)),
		PendingTTL:      getEnvDuration("PENDING_TTL", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
