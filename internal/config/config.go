package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML, .env and the environment.
type Config struct {
	ServerPort string
	LogLevel   string

	RecordsAPIKey     string
	RecordsAPIURL     string
	RecordsAPITimeout time.Duration
	RecordsProjectID  string

	RequestTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerTimeout          time.Duration

	ForecastTTL             time.Duration
	ForecastCoalesceEnabled bool
	ForecastCoalesceTimeout time.Duration
	ForecastWarmOnStart     bool
	ForecastRefreshInterval time.Duration // 0 disables scheduled refresh

	ShutdownTimeout time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	OverloadWindow       time.Duration
	OverloadThresholdPct int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	RecordsAPI struct {
		URL       string `yaml:"url"`
		Timeout   string `yaml:"timeout"`
		ProjectID string `yaml:"project_id"`
	} `yaml:"records_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	CircuitBreaker struct {
		Enabled          *bool  `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Forecast struct {
		TTL             string `yaml:"ttl"`
		CoalesceEnabled bool   `yaml:"coalesce_enabled"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
		WarmOnStart     bool   `yaml:"warm_on_start"`
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"forecast"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
	} `yaml:"health"`
}

type secretsFile struct {
	RecordsAPIKey string `yaml:"records_api_key"`
}

// DefaultRecordsAPIURL is used when neither RECORDS_API_URL nor records_api.url is set.
const DefaultRecordsAPIURL = "http://localhost:9000/api"

// Load reads configuration relative to the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadDir(cwd)
}

// LoadDir loads {dir}/.env (optional) into the environment, then reads
// {dir}/config/{ENV_NAME}.yaml (default dev) and {dir}/config/secrets.yaml.
// The API key comes from RECORDS_API_KEY or the secrets file.
func LoadDir(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = fc.Log.Level
	}

	cfg.RecordsAPIKey = os.Getenv("RECORDS_API_KEY")
	if cfg.RecordsAPIKey == "" {
		key, err := readSecretsKey(filepath.Join(dir, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		cfg.RecordsAPIKey = key
	}
	if cfg.RecordsAPIKey == "" {
		return nil, fmt.Errorf("RECORDS_API_KEY required (set env, .env or config/secrets.yaml records_api_key)")
	}

	cfg.RecordsAPIURL = strings.TrimSpace(os.Getenv("RECORDS_API_URL"))
	if cfg.RecordsAPIURL == "" {
		cfg.RecordsAPIURL = strings.TrimSpace(fc.RecordsAPI.URL)
	}
	if cfg.RecordsAPIURL == "" {
		cfg.RecordsAPIURL = DefaultRecordsAPIURL
	}
	cfg.RecordsAPITimeout = parseDurationOrZero(fc.RecordsAPI.Timeout, 5*time.Second)
	cfg.RecordsProjectID = strings.TrimSpace(os.Getenv("RECORDS_PROJECT_ID"))
	if cfg.RecordsProjectID == "" {
		cfg.RecordsProjectID = strings.TrimSpace(fc.RecordsAPI.ProjectID)
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.CircuitBreakerEnabled = true
	if fc.CircuitBreaker.Enabled != nil {
		cfg.CircuitBreakerEnabled = *fc.CircuitBreaker.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.ForecastTTL = parseDuration(fc.Forecast.TTL, 30*time.Minute)
	cfg.ForecastCoalesceEnabled = fc.Forecast.CoalesceEnabled
	cfg.ForecastCoalesceTimeout = parseDuration(fc.Forecast.CoalesceTimeout, 5*time.Second)
	cfg.ForecastWarmOnStart = fc.Forecast.WarmOnStart
	cfg.ForecastRefreshInterval = parseDurationOrZero(fc.Forecast.RefreshInterval, 0)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}
	cfg.OverloadWindow = parseDuration(fc.Health.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Health.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readSecretsKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return sec.RecordsAPIKey, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout is raised above
// RecordsAPITimeout so a handler never times out before its backend call.
func validate(cfg *Config) error {
	if cfg.RecordsAPITimeout <= 0 {
		return fmt.Errorf("records_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.RecordsAPITimeout {
		cfg.RequestTimeout = cfg.RecordsAPITimeout + time.Second
	}
	if !strings.HasPrefix(cfg.RecordsAPIURL, "http://") && !strings.HasPrefix(cfg.RecordsAPIURL, "https://") {
		return fmt.Errorf("records_api.url must be an http(s) URL, got %q", cfg.RecordsAPIURL)
	}
	if cfg.ForecastRefreshInterval < 0 {
		return fmt.Errorf("forecast.refresh_interval must not be negative")
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	if cfg.OverloadThresholdPct > 100 {
		return fmt.Errorf("health.overload_threshold_pct must be at most 100, got %d", cfg.OverloadThresholdPct)
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	return nil
}
