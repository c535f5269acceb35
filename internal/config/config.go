package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	QueueFile         string
	QueueFallbackFile string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	DedupTTL          time.Duration
	DedupMax          int

	EmailProvider        string
	EmailWebhookURL      string
	EmailWebhookToken    string
	WhatsAppProvider     string
	WhatsAppWebhookURL   string
	WhatsAppWebhookToken string
	AdminEmails          []string
	AdminWhatsApp        []string
	NotifyLang           string

	SMTPAddr     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	KafkaBrokers []string
	KafkaTopic   string

	RateLimitPerMinute       int
	RateLimitBurst           int
	DeviceRateLimitPerMinute int
	DeviceRateLimitBurst     int
}

type ClientConfig struct {
	ServerURL    string
	DeviceID     string
	DataDir      string
	Debounce     time.Duration
	PollInterval time.Duration
	HTTPTimeout  time.Duration
}

func Load() Config {
	_ = godotenv.Load(".env")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:              port,
		QueueFile:         readString("QUEUE_FILE", filepath.Join("data", "queue.json")),
		QueueFallbackFile: readString("QUEUE_FALLBACK_FILE", filepath.Join(os.TempDir(), "counter-queue.json")),
		DatabaseURL:       os.Getenv("DB_DSN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		DedupTTL:          readDurationSeconds("NOTIF_DEDUP_TTL_SECONDS", 86400),
		DedupMax:          readInt("NOTIF_DEDUP_MAX", 10000),

		EmailProvider:        os.Getenv("NOTIF_EMAIL_PROVIDER"),
		EmailWebhookURL:      os.Getenv("NOTIF_EMAIL_WEBHOOK_URL"),
		EmailWebhookToken:    os.Getenv("NOTIF_EMAIL_WEBHOOK_TOKEN"),
		WhatsAppProvider:     os.Getenv("NOTIF_WA_PROVIDER"),
		WhatsAppWebhookURL:   os.Getenv("NOTIF_WHATSAPP_WEBHOOK_URL"),
		WhatsAppWebhookToken: os.Getenv("NOTIF_WHATSAPP_WEBHOOK_TOKEN"),
		AdminEmails:          readList("NOTIF_ADMIN_EMAILS"),
		AdminWhatsApp:        readList("NOTIF_ADMIN_WHATSAPP"),
		NotifyLang:           readString("NOTIF_LANG", "en"),

		SMTPAddr:     os.Getenv("SMTP_ADDR"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		KafkaBrokers: readList("KAFKA_BROKERS"),
		KafkaTopic:   readString("KAFKA_TOPIC", "order-events"),

		RateLimitPerMinute:       readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:           readInt("RATE_LIMIT_BURST", 30),
		DeviceRateLimitPerMinute: readInt("DEVICE_RATE_LIMIT_PER_MIN", 600),
		DeviceRateLimitBurst:     readInt("DEVICE_RATE_LIMIT_BURST", 120),
	}
}

func LoadClient() ClientConfig {
	_ = godotenv.Load(".env")

	return ClientConfig{
		ServerURL:    strings.TrimRight(readString("COUNTER_SERVER_URL", "http://localhost:8080"), "/"),
		DeviceID:     readString("COUNTER_DEVICE_ID", hostname()),
		DataDir:      readString("COUNTER_DATA_DIR", ".counter"),
		Debounce:     time.Duration(readInt("COUNTER_SYNC_DEBOUNCE_MS", 500)) * time.Millisecond,
		PollInterval: readDurationSeconds("COUNTER_POLL_SECONDS", 5),
		HTTPTimeout:  readDurationSeconds("COUNTER_HTTP_TIMEOUT_SECONDS", 10),
	}
}

func readString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func readList(key string) []string {
	var items []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "counter"
	}
	return name
}
