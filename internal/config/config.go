package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/bicarb-prep/internal/calculator"
)

const (
	defaultPort               = "8080"
	defaultLanguage           = "es"
	defaultCacheName          = "bicarb-calculator-v1"
	defaultLogLevel           = "info"
	defaultEnvFile            = ".env"
	defaultRateLimitRPS       = 25.0
	defaultRateLimitBurst     = 50
	defaultClientRateLimit    = 5.0
	defaultClientRateCapacity = 100
)

var defaultPrecachePaths = []string{
	"/",
	"/index.html",
	"/static/style.css",
	"/static/manifest.webmanifest",
	"/static/icons/icon.svg",
}

var supportedLanguages = map[string]struct{}{"es": {}, "en": {}}

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	LitersPerPatient     decimal.Decimal
	LitersPerBag         decimal.Decimal
	DefaultLanguage      string
	CacheName            string
	PrecachePaths        []string
	AssetRefreshInterval time.Duration
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	EnableMetrics        bool
	LogLevel             string
	RateLimitRPS         float64
	RateLimitBurst       int
	ClientRateLimit      float64
	ClientRateCapacity   int64
	NoticeHTML           string
}

// Rates returns the configured default rates for the calculator.
func (c Config) Rates() calculator.Rates {
	return calculator.Rates{
		LitersPerPatient: c.LitersPerPatient,
		LitersPerBag:     c.LitersPerBag,
	}
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	LitersPerPatient     string        `yaml:"liters_per_patient"`
	LitersPerBag         string        `yaml:"liters_per_bag"`
	DefaultLanguage      string        `yaml:"default_language"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	EnableMetrics        *bool         `yaml:"enable_metrics"`
	LogLevel             string        `yaml:"log_level"`
	NoticeHTML           string        `yaml:"notice_html"`
	AssetCache           yamlCache     `yaml:"asset_cache"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlCache represents the asset_cache section in YAML.
type yamlCache struct {
	Name            string   `yaml:"name"`
	Precache        []string `yaml:"precache"`
	RefreshInterval string   `yaml:"refresh_interval"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS            *float64 `yaml:"rps"`
	Burst          *int     `yaml:"burst"`
	ClientRate     *float64 `yaml:"client_rate"`
	ClientCapacity *int64   `yaml:"client_capacity"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile       string
	EnvFile          string
	Port             *string
	LitersPerPatient *string
	LitersPerBag     *string
	DefaultLanguage  *string
	CacheName        *string
	LogLevel         *string
	RateLimitRPS     *float64
	RateLimitBurst   *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
// Variables from a .env file only fill in what the process environment leaves unset.
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	envFile := defaultEnvFile
	if overrides != nil && overrides.EnvFile != "" {
		envFile = overrides.EnvFile
	}
	if err := loadEnvFile(envFile, overrides != nil && overrides.EnvFile != ""); err != nil {
		return Config{}, err
	}

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	rates := calculator.DefaultRates()
	return Config{
		Port:                 defaultPort,
		LitersPerPatient:     rates.LitersPerPatient,
		LitersPerBag:         rates.LitersPerBag,
		DefaultLanguage:      defaultLanguage,
		CacheName:            defaultCacheName,
		PrecachePaths:        DefaultPrecachePaths(),
		AssetRefreshInterval: 6 * time.Hour,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		EnableMetrics:        true,
		LogLevel:             defaultLogLevel,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		ClientRateLimit:      defaultClientRateLimit,
		ClientRateCapacity:   defaultClientRateCapacity,
	}
}

// DefaultPrecachePaths returns a copy of the asset paths cached on install.
func DefaultPrecachePaths() []string {
	out := make([]string, len(defaultPrecachePaths))
	copy(out, defaultPrecachePaths)
	return out
}

// loadEnvFile seeds the environment from a dotenv file. A missing default file is
// ignored; a missing file that was asked for explicitly is an error.
func loadEnvFile(path string, required bool) error {
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	if yamlCfg.LitersPerPatient != "" {
		value, err := parseLiters(yamlCfg.LitersPerPatient)
		if err != nil {
			return fmt.Errorf("liters_per_patient: %w", err)
		}
		cfg.LitersPerPatient = value
	}

	if yamlCfg.LitersPerBag != "" {
		value, err := parseLiters(yamlCfg.LitersPerBag)
		if err != nil {
			return fmt.Errorf("liters_per_bag: %w", err)
		}
		cfg.LitersPerBag = value
	}

	if yamlCfg.DefaultLanguage != "" {
		cfg.DefaultLanguage = strings.ToLower(yamlCfg.DefaultLanguage)
	}

	durations := []struct {
		raw    string
		target *time.Duration
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout},
		{yamlCfg.AssetCache.RefreshInterval, &cfg.AssetRefreshInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		if parsed, err := time.ParseDuration(d.raw); err == nil {
			*d.target = parsed
		}
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.EnableMetrics != nil {
		cfg.EnableMetrics = *yamlCfg.EnableMetrics
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if yamlCfg.NoticeHTML != "" {
		cfg.NoticeHTML = yamlCfg.NoticeHTML
	}

	if yamlCfg.AssetCache.Name != "" {
		cfg.CacheName = yamlCfg.AssetCache.Name
	}
	if len(yamlCfg.AssetCache.Precache) > 0 {
		cfg.PrecachePaths = yamlCfg.AssetCache.Precache
	}

	if rl := yamlCfg.RateLimit; rl.RPS != nil && *rl.RPS >= 0 {
		cfg.RateLimitRPS = *rl.RPS
	}
	if rl := yamlCfg.RateLimit; rl.Burst != nil && *rl.Burst >= 0 {
		cfg.RateLimitBurst = *rl.Burst
	}
	if rl := yamlCfg.RateLimit; rl.ClientRate != nil && *rl.ClientRate >= 0 {
		cfg.ClientRateLimit = *rl.ClientRate
	}
	if rl := yamlCfg.RateLimit; rl.ClientCapacity != nil && *rl.ClientCapacity >= 0 {
		cfg.ClientRateCapacity = *rl.ClientCapacity
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := env("PORT"); port != "" {
		cfg.Port = port
	}

	if raw := env("LITERS_PER_PATIENT"); raw != "" {
		value, err := parseLiters(raw)
		if err != nil {
			return fmt.Errorf("LITERS_PER_PATIENT: %w", err)
		}
		cfg.LitersPerPatient = value
	}

	if raw := env("LITERS_PER_BAG"); raw != "" {
		value, err := parseLiters(raw)
		if err != nil {
			return fmt.Errorf("LITERS_PER_BAG: %w", err)
		}
		cfg.LitersPerBag = value
	}

	if lang := env("DEFAULT_LANGUAGE"); lang != "" {
		cfg.DefaultLanguage = strings.ToLower(lang)
	}

	if name := env("CACHE_NAME"); name != "" {
		cfg.CacheName = name
	}

	if raw := env("PRECACHE_PATHS"); raw != "" {
		if paths := parseList(raw); len(paths) > 0 {
			cfg.PrecachePaths = paths
		}
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SHUTDOWN_GRACE_PERIOD", &cfg.ShutdownGracePeriod},
		{"READ_HEADER_TIMEOUT", &cfg.ReadHeaderTimeout},
		{"WRITE_TIMEOUT", &cfg.WriteTimeout},
		{"IDLE_TIMEOUT", &cfg.IdleTimeout},
		{"ASSET_REFRESH_INTERVAL", &cfg.AssetRefreshInterval},
	}
	for _, d := range durations {
		raw := env(d.key)
		if raw == "" {
			continue
		}
		if parsed, err := time.ParseDuration(raw); err == nil {
			*d.target = parsed
		}
	}

	if raw := env("ENABLE_REQUEST_LOGGING"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.EnableRequestLogging = value
		}
	}

	if level := env("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if raw := env("ENABLE_METRICS"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.EnableMetrics = value
		}
	}

	if notice := env("NOTICE_HTML"); notice != "" {
		cfg.NoticeHTML = notice
	}

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if rate := env("CLIENT_RATE_LIMIT"); rate != "" {
		if value, err := strconv.ParseFloat(rate, 64); err == nil && value >= 0 {
			cfg.ClientRateLimit = value
		}
	}

	if capacity := env("CLIENT_RATE_CAPACITY"); capacity != "" {
		if value, err := strconv.ParseInt(capacity, 10, 64); err == nil && value >= 0 {
			cfg.ClientRateCapacity = value
		}
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.LitersPerPatient != nil && *overrides.LitersPerPatient != "" {
		value, err := parseLiters(*overrides.LitersPerPatient)
		if err != nil {
			return fmt.Errorf("parse liters per patient: %w", err)
		}
		cfg.LitersPerPatient = value
	}

	if overrides.LitersPerBag != nil && *overrides.LitersPerBag != "" {
		value, err := parseLiters(*overrides.LitersPerBag)
		if err != nil {
			return fmt.Errorf("parse liters per bag: %w", err)
		}
		cfg.LitersPerBag = value
	}

	if overrides.DefaultLanguage != nil && *overrides.DefaultLanguage != "" {
		cfg.DefaultLanguage = strings.ToLower(*overrides.DefaultLanguage)
	}

	if overrides.CacheName != nil && *overrides.CacheName != "" {
		cfg.CacheName = *overrides.CacheName
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if err := cfg.Rates().Validate(); err != nil {
		return fmt.Errorf("invalid rates: %w", err)
	}
	if _, ok := supportedLanguages[cfg.DefaultLanguage]; !ok {
		return fmt.Errorf("unsupported default language %q", cfg.DefaultLanguage)
	}
	if strings.TrimSpace(cfg.CacheName) == "" {
		return fmt.Errorf("cache name cannot be empty")
	}
	if len(cfg.PrecachePaths) == 0 {
		return fmt.Errorf("precache paths cannot be empty")
	}
	for _, path := range cfg.PrecachePaths {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("precache path %q must start with /", path)
		}
	}
	if cfg.AssetRefreshInterval < 0 {
		return fmt.Errorf("asset refresh interval must be >= 0")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.ClientRateLimit < 0 || cfg.ClientRateCapacity < 0 {
		return fmt.Errorf("client rate limit must be >= 0")
	}
	return nil
}

// parseLiters parses a positive decimal amount of liters within the calculator's rate bounds.
func parseLiters(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid number %q", raw)
	}
	if !calculator.ValidRate(value) {
		return decimal.Decimal{}, fmt.Errorf("liters must be positive, at most %s, with up to %d decimal places, got %q",
			calculator.MaxRate, calculator.MaxRateScale, strings.TrimSpace(raw))
	}
	return value, nil
}

// parseList splits a comma-separated list, dropping empty items.
func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
