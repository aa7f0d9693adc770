package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LITERS_PER_PATIENT", "LITERS_PER_BAG", "DEFAULT_LANGUAGE", "CACHE_NAME",
		"PRECACHE_PATHS", "ASSET_REFRESH_INTERVAL", "LOG_LEVEL", "ENABLE_METRICS", "NOTICE_HTML",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CLIENT_RATE_LIMIT", "CLIENT_RATE_CAPACITY",
		"SHUTDOWN_GRACE_PERIOD", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"ENABLE_REQUEST_LOGGING",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if !cfg.LitersPerPatient.Equal(decimal.NewFromInt(6)) || !cfg.LitersPerBag.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("unexpected default rates %s/%s", cfg.LitersPerPatient, cfg.LitersPerBag)
	}
	if cfg.CacheName != "bicarb-calculator-v1" {
		t.Fatalf("unexpected cache name %s", cfg.CacheName)
	}
	if !slices.Equal(cfg.PrecachePaths, DefaultPrecachePaths()) {
		t.Fatalf("unexpected precache paths %v", cfg.PrecachePaths)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
	if cfg.DefaultLanguage != "es" {
		t.Fatalf("unexpected default language %s", cfg.DefaultLanguage)
	}
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("LITERS_PER_PATIENT", "6.5")
	t.Setenv("PRECACHE_PATHS", "/, /static/style.css , ")
	t.Setenv("ASSET_REFRESH_INTERVAL", "30m")
	t.Setenv("ENABLE_METRICS", "false")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9000" {
		t.Fatalf("expected overridden port, got %s", cfg.Port)
	}
	if !cfg.LitersPerPatient.Equal(decimal.RequireFromString("6.5")) {
		t.Fatalf("unexpected liters per patient %s", cfg.LitersPerPatient)
	}
	if want := []string{"/", "/static/style.css"}; !slices.Equal(cfg.PrecachePaths, want) {
		t.Fatalf("unexpected precache paths %v", cfg.PrecachePaths)
	}
	if cfg.AssetRefreshInterval != 30*time.Minute {
		t.Fatalf("unexpected refresh interval %s", cfg.AssetRefreshInterval)
	}
	if cfg.EnableMetrics {
		t.Fatalf("expected metrics to be disabled")
	}
}

func TestLoadRejectsInvalidEnvironmentRates(t *testing.T) {
	clearEnv(t)
	t.Setenv("LITERS_PER_BAG", "-8")

	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error for negative liters per bag")
	}
}

func TestLoadRejectsUnboundedRates(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "exponent too small", key: "LITERS_PER_BAG", value: "1e-50000000"},
		{name: "too many decimals", key: "LITERS_PER_BAG", value: "0.0000000001"},
		{name: "above maximum", key: "LITERS_PER_PATIENT", value: "1000001"},
		{name: "huge exponent", key: "LITERS_PER_PATIENT", value: "1e50000000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			if _, err := Load(nil); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoadEnvironmentServerSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENABLE_REQUEST_LOGGING", "false")
	t.Setenv("SHUTDOWN_GRACE_PERIOD", "3s")
	t.Setenv("READ_HEADER_TIMEOUT", "2s")
	t.Setenv("WRITE_TIMEOUT", "20s")
	t.Setenv("IDLE_TIMEOUT", "90s")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.EnableRequestLogging {
		t.Fatalf("expected request logging to be disabled")
	}
	if cfg.ShutdownGracePeriod != 3*time.Second || cfg.ReadHeaderTimeout != 2*time.Second {
		t.Fatalf("unexpected grace/read header %s/%s", cfg.ShutdownGracePeriod, cfg.ReadHeaderTimeout)
	}
	if cfg.WriteTimeout != 20*time.Second || cfg.IdleTimeout != 90*time.Second {
		t.Fatalf("unexpected write/idle %s/%s", cfg.WriteTimeout, cfg.IdleTimeout)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("CACHE_NAME", "from-env")
	t.Setenv("LOG_LEVEL", "warn")

	yamlPath := writeFile(t, "config.yaml", `
port: "7100"
liters_per_bag: "10"
enable_request_logging: false
asset_cache:
  name: from-yaml
  refresh_interval: 1h
rate_limit:
  rps: 0
`)

	port := "7200"
	cfg, err := Load(&CLIOverrides{ConfigFile: yamlPath, Port: &port})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "7200" {
		t.Fatalf("expected CLI port to win, got %s", cfg.Port)
	}
	if cfg.CacheName != "from-yaml" {
		t.Fatalf("expected YAML cache name to win over env, got %s", cfg.CacheName)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env log level, got %s", cfg.LogLevel)
	}
	if !cfg.LitersPerBag.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected YAML liters per bag, got %s", cfg.LitersPerBag)
	}
	if cfg.EnableRequestLogging {
		t.Fatalf("expected request logging disabled by YAML")
	}
	if cfg.RateLimitRPS != 0 {
		t.Fatalf("expected YAML to disable rate limit, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != defaultRateLimitBurst {
		t.Fatalf("expected untouched burst, got %d", cfg.RateLimitBurst)
	}
	if cfg.AssetRefreshInterval != time.Hour {
		t.Fatalf("unexpected refresh interval %s", cfg.AssetRefreshInterval)
	}
}

func TestLoadYAMLOmittedLoggingKeepsDefault(t *testing.T) {
	clearEnv(t)
	yamlPath := writeFile(t, "config.yaml", "port: \"8181\"\n")

	cfg, err := Load(&CLIOverrides{ConfigFile: yamlPath})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.EnableRequestLogging {
		t.Fatalf("expected request logging to stay enabled")
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is present, even when empty
	_ = os.Unsetenv("DEFAULT_LANGUAGE")
	_ = os.Unsetenv("CLIENT_RATE_CAPACITY")
	envPath := writeFile(t, "test.env", "DEFAULT_LANGUAGE=en\nCLIENT_RATE_CAPACITY=42\n")

	cfg, err := Load(&CLIOverrides{EnvFile: envPath})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DefaultLanguage != "en" {
		t.Fatalf("expected language from env file, got %s", cfg.DefaultLanguage)
	}
	if cfg.ClientRateCapacity != 42 {
		t.Fatalf("expected client capacity from env file, got %d", cfg.ClientRateCapacity)
	}
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(&CLIOverrides{EnvFile: filepath.Join(t.TempDir(), "missing.env")}); err == nil {
		t.Fatalf("expected error for missing explicit env file")
	}
}

func TestLoadCLIRates(t *testing.T) {
	clearEnv(t)

	t.Run("valid", func(t *testing.T) {
		lpp, lpb := "7.5", "12"
		cfg, err := Load(&CLIOverrides{LitersPerPatient: &lpp, LitersPerBag: &lpb})
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if !cfg.Rates().LitersPerPatient.Equal(decimal.RequireFromString("7.5")) {
			t.Fatalf("unexpected rates %+v", cfg.Rates())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		bad := "zero"
		if _, err := Load(&CLIOverrides{LitersPerBag: &bad}); err == nil {
			t.Fatalf("expected error for invalid liters per bag")
		}
	})
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty port", mutate: func(c *Config) { c.Port = " " }},
		{name: "unsupported language", mutate: func(c *Config) { c.DefaultLanguage = "fr" }},
		{name: "empty cache name", mutate: func(c *Config) { c.CacheName = "" }},
		{name: "no precache", mutate: func(c *Config) { c.PrecachePaths = nil }},
		{name: "relative precache", mutate: func(c *Config) { c.PrecachePaths = []string{"style.css"} }},
		{name: "negative refresh", mutate: func(c *Config) { c.AssetRefreshInterval = -time.Second }},
		{name: "negative burst", mutate: func(c *Config) { c.RateLimitBurst = -1 }},
		{name: "zero rates", mutate: func(c *Config) { c.LitersPerBag = decimal.Zero }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tc.mutate(&cfg)
			if err := validateConfig(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseList(t *testing.T) {
	t.Parallel()

	if got := parseList(" a, ,b ,"); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("unexpected list %v", got)
	}
	if got := parseList(" , "); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}
