package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// UploadConfig holds validation limits for submitted images.
type UploadConfig struct {
	MaxFileSize       int
	AllowedExtensions []string
}

// JobsConfig controls job retention and the background worker pool.
type JobsConfig struct {
	ExpirationMinutes int
	// CleanupInterval enables a periodic sweep when greater than zero.
	CleanupInterval time.Duration
	Workers         int
	QueueSize       int
}

// Retention returns the configured retention window.
func (j JobsConfig) Retention() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// FireworksConfig holds settings for the chat/completions extraction backend.
type FireworksConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost     string
	Port        string
	LogLevel    string
	CORSOrigins []string
	// SwaggerEnabled serves the generated API docs under /swagger.
	SwaggerEnabled bool
	Upload         UploadConfig
	Jobs           JobsConfig
	Fireworks      FireworksConfig
}

var defaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:3000",
}

var defaultExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff"}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CORSOrigins:    getEnvList("CORS_ORIGINS", defaultCORSOrigins),
		SwaggerEnabled: getEnvBool("SWAGGER_ENABLED", true),
		Upload: UploadConfig{
			MaxFileSize:       getEnvInt("MAX_FILE_SIZE", 10*1024*1024),
			AllowedExtensions: normalizeExtensions(getEnvList("ALLOWED_EXTENSIONS", defaultExtensions)),
		},
		Jobs: JobsConfig{
			ExpirationMinutes: getEnvInt("JOB_EXPIRATION_MINUTES", 10),
			CleanupInterval:   getEnvDuration("JOB_CLEANUP_INTERVAL", 0),
			Workers:           getEnvInt("JOB_WORKERS", 4),
			QueueSize:         getEnvInt("JOB_QUEUE_SIZE", 256),
		},
		Fireworks: FireworksConfig{
			APIKey:      getEnv("FIREWORKS_API_KEY", ""),
			Model:       getEnv("FIREWORKS_MODEL", ""),
			BaseURL:     getEnv("FIREWORKS_BASE_URL", "https://api.fireworks.ai/inference/v1"),
			Timeout:     getEnvDuration("EXTRACTION_TIMEOUT", 60*time.Second),
			MaxTokens:   getEnvInt("FIREWORKS_MAX_TOKENS", 2048),
			Temperature: getEnvFloat("FIREWORKS_TEMPERATURE", 0.1),
		},
	}
}

// Validate reports settings the service cannot start without.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Fireworks.APIKey == "" {
		errs = append(errs, errors.New("FIREWORKS_API_KEY is required"))
	}
	if c.Fireworks.Model == "" {
		errs = append(errs, errors.New("FIREWORKS_MODEL is required"))
	}
	if c.Jobs.ExpirationMinutes <= 0 {
		errs = append(errs, errors.New("JOB_EXPIRATION_MINUTES must be positive"))
	}
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}
