package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EditProviderGemini    = "gemini"
	EditProviderSynthetic = "synthetic"
)

// Config represents application configuration loaded from environment variables.
// The Gemini API key is intentionally absent: the editor resolves it from the
// environment on every call.
type Config struct {
	AppEnv             string
	Port               string
	EditProvider       string
	GeminiModel        string
	GeminiBaseURL      string
	GeminiTimeout      time.Duration
	AspectRatio        string
	MaxUploadBytes     int64
	StoragePath        string
	LogFile            string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		EditProvider:       strings.ToLower(getEnv("EDIT_PROVIDER", EditProviderGemini)),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTimeout:      time.Second * time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 120)),
		AspectRatio:        getEnv("ASPECT_RATIO", "9:16"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,
		StoragePath:        getEnv("STORAGE_PATH", "./results"),
		LogFile:            os.Getenv("LOG_FILE"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	switch cfg.EditProvider {
	case EditProviderGemini, EditProviderSynthetic:
	default:
		return nil, fmt.Errorf("EDIT_PROVIDER %q is not supported", cfg.EditProvider)
	}

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
