package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	StoreDriver string
	BadgerPath  string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ChromeBin      string
	Headless       bool
	UserAgent      string
	AcceptLanguage string

	FetchTimeout     time.Duration
	FetchRetries     int
	MaxPages         int
	PageBudget       time.Duration
	AggregateTimeout time.Duration
	RateLimit        time.Duration

	TrackInterval time.Duration

	TelegramToken   string
	TelegramAPIBase string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	ListenAddr    string
	LogLevel      string
	SelectorsFile string
	CSVOutputPath string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "badger")),
		BadgerPath:  getEnv("BADGER_PATH", "./data/badger"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "pricehound"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "pricehound"),
		PostgresDB:       getEnv("POSTGRES_DB", "pricehound"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ChromeBin:      getEnv("CHROME_BIN", ""),
		Headless:       getEnvBool("HEADLESS", true),
		UserAgent:      getEnv("USER_AGENT", DefaultUserAgent),
		AcceptLanguage: getEnv("ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en;q=0.8"),

		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchRetries:     getEnvInt("FETCH_RETRIES", 3),
		MaxPages:         getEnvInt("MAX_PAGES", 5),
		PageBudget:       getEnvDuration("PAGE_BUDGET", 60*time.Second),
		AggregateTimeout: getEnvDuration("AGGREGATE_TIMEOUT", 0),
		RateLimit:        getEnvDuration("RATE_LIMIT", 0),

		TrackInterval: getEnvDuration("TRACK_INTERVAL", time.Hour),

		TelegramToken:   getEnv("TELEGRAM_TOKEN", ""),
		TelegramAPIBase: getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 465),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),

		ListenAddr:    getEnv("LISTEN_ADDR", ":8000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		SelectorsFile: getEnv("SELECTORS_FILE", ""),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),
	}
}

// DefaultUserAgent is sent by both the HTTP fetcher and the browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// EmailEnabled reports whether SMTP credentials are configured.
func (c *Config) EmailEnabled() bool {
	return c.SMTPUser != "" && c.SMTPPassword != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "1h") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
