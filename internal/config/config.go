package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string
	GeminiAPIKey  string

	LogLevel  string
	LogFormat string
	Debug     bool

	PreferIPv4 bool

	HTTPTimeout      time.Duration
	GeminiBaseURL    string
	GeminiAPIVersion string

	GenerateTimeout time.Duration
	AnalyzeTimeout  time.Duration
	VideoTimeout    time.Duration
	VideoPoll       time.Duration

	Variations  int
	OutputWidth int

	WebAddr     string
	CORSOrigins []string
	MaxUploadMB int

	SettingsBackend string
	SettingsPath    string
	SettingsKey     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	StorageType    string
	DataSourceName string

	MediaGroupDebounce time.Duration
	MaxConcurrent      int
	SessionIdle        time.Duration
	LibraryMaxItems    int
}

// Load reads the bot configuration.
func Load() (Config, error) {
	cfg := load()
	switch {
	case cfg.TelegramToken == "":
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN is required")
	case cfg.GeminiAPIKey == "":
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}
	return cfg, nil
}

// LoadWeb reads the web API configuration.
func LoadWeb() (Config, error) {
	cfg := load()
	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}
	return cfg, nil
}

// LoadCLI reads the CLI configuration. The API key is only needed by the
// generate command, which checks for it itself.
func LoadCLI() Config {
	return load()
}

func load() Config {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		GeminiAPIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		Debug:     getEnvBool("DEBUG", false),

		PreferIPv4: getEnvBool("PREFER_IPV4", true),

		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT_SECONDS", 180, time.Second),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIVersion: getEnv("GEMINI_API_VERSION", "v1beta"),

		GenerateTimeout: getEnvDuration("GENERATE_TIMEOUT_SECONDS", 180, time.Second),
		AnalyzeTimeout:  getEnvDuration("ANALYZE_TIMEOUT_SECONDS", 60, time.Second),
		VideoTimeout:    getEnvDuration("VIDEO_TIMEOUT_SECONDS", 600, time.Second),
		VideoPoll:       getEnvDuration("VIDEO_POLL_SECONDS", 10, time.Second),

		Variations:  getEnvInt("VARIATIONS", 3),
		OutputWidth: getEnvInt("OUTPUT_WIDTH", 1024),

		WebAddr:     getEnv("WEB_ADDR", ":8080"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "*")),
		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 25),

		SettingsBackend: strings.ToLower(getEnv("SETTINGS_BACKEND", "file")),
		SettingsPath:    getEnv("SETTINGS_PATH", "data/settings.json"),
		SettingsKey:     getEnv("SETTINGS_KEY", "poster-studio:settings"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getEnvInt("REDIS_DB", 0),

		StorageType:    strings.ToLower(getEnv("STORAGE_TYPE", "memory")),
		DataSourceName: getEnv("DATA_SOURCE_NAME", "posters.db"),

		MediaGroupDebounce: getEnvDuration("MEDIA_GROUP_DEBOUNCE_MS", 1200, time.Millisecond),
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
		SessionIdle:        getEnvDuration("SESSION_IDLE_MINUTES", 60, time.Minute),
		LibraryMaxItems:    getEnvInt("LIBRARY_MAX_ITEMS", 200),
	}

	if cfg.Variations < 1 {
		cfg.Variations = 1
	}
	if cfg.Variations > 4 {
		cfg.Variations = 4
	}
	if cfg.OutputWidth <= 0 {
		cfg.OutputWidth = 1024
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 25
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.LibraryMaxItems < 0 {
		cfg.LibraryMaxItems = 0
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration reads an integer count of unit. Non-positive values fall
// back to the default.
func getEnvDuration(key string, fallback int, unit time.Duration) time.Duration {
	n := getEnvInt(key, fallback)
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * unit
}

func splitCSV(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
