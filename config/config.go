package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "skinalyzer-bot"
	EnvFileName = "config.env"

	DefaultAPIBaseURL    = "http://localhost:5000"
	DefaultAPITimeout    = 60 * time.Second
	DefaultMaxImageBytes = 10 * 1024 * 1024
	DefaultPreviewTTL    = 2 * time.Hour
)

// requiredEnvVars lists the environment variables the bot cannot start without.
var requiredEnvVars = []string{"BOT_TOKEN"}

// Config holds runtime settings read from the environment.
type Config struct {
	BotToken string

	// APIBaseURL is the base of the remote analysis service. The /analyze
	// and /chat endpoints are resolved against it.
	APIBaseURL string
	APITimeout time.Duration
	// APIRateLimit is the allowed outbound requests per second per endpoint.
	// Zero disables limiting.
	APIRateLimit float64

	MaxImageBytes int64
	PreviewTTL    time.Duration

	// MetricsAddr enables the /metrics and /healthz listener when set.
	MetricsAddr string
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// CheckRequired returns the names of required variables that are not set.
func CheckRequired() []string {
	var missing []string
	for _, v := range requiredEnvVars {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// Load reads the configuration from the environment, applying defaults for
// anything unset. It does not check required variables; see CheckRequired.
func Load() (*Config, error) {
	cfg := &Config{
		BotToken:      os.Getenv("BOT_TOKEN"),
		APIBaseURL:    envOr("SKIN_API_BASE_URL", DefaultAPIBaseURL),
		APITimeout:    DefaultAPITimeout,
		MaxImageBytes: DefaultMaxImageBytes,
		PreviewTTL:    DefaultPreviewTTL,
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
	}

	if v := os.Getenv("SKIN_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("SKIN_API_TIMEOUT must be a positive duration: %q", v)
		}
		cfg.APITimeout = d
	}

	if v := os.Getenv("API_RATE_LIMIT"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 {
			return nil, fmt.Errorf("API_RATE_LIMIT must be a non-negative number: %q", v)
		}
		cfg.APIRateLimit = r
	}

	if v := os.Getenv("MAX_IMAGE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_IMAGE_BYTES must be a positive integer: %q", v)
		}
		cfg.MaxImageBytes = n
	}

	if v := os.Getenv("PREVIEW_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("PREVIEW_TTL must be a positive duration: %q", v)
		}
		cfg.PreviewTTL = d
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
