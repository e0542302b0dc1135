package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadUsesSummaryDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SUMMARY_MODEL", "")
	t.Setenv("SUMMARY_TIMEOUT_MS", "")
	t.Setenv("SUMMARY_MAX_RETRIES", "")
	t.Setenv("SUMMARY_RETRY_DELAY_MS", "")
	t.Setenv("CORS_ALLOWED_ORIGIN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SummaryModel != "llama-3.1-sonar-large-128k-online" {
		t.Fatalf("unexpected default model %q", cfg.SummaryModel)
	}
	if cfg.SummaryTimeoutMS != 30000 || cfg.SummaryMaxRetries != 3 || cfg.SummaryRetryDelayMS != 2000 {
		t.Fatalf("unexpected retry defaults %+v", cfg)
	}
	if cfg.CORSAllowedOrigin != "https://app.yfetch.com" {
		t.Fatalf("unexpected default origin %q", cfg.CORSAllowedOrigin)
	}
	if cfg.NATSSubject != "summaries.requested" {
		t.Fatalf("unexpected default subject %q", cfg.NATSSubject)
	}
}

func TestLoadParsesEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SUMMARY_MAX_RETRIES", "5")
	t.Setenv("SUMMARY_RETRY_DELAY_MS", "250")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("SUMMARY_TIMEOUT_MS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SummaryMaxRetries != 5 || cfg.SummaryRetryDelayMS != 250 {
		t.Fatalf("expected retry overrides, got %+v", cfg)
	}
	if cfg.APIRateLimitRPS != 2.5 || cfg.BreakerEnabled {
		t.Fatalf("expected traffic overrides, got rps=%v breaker=%v", cfg.APIRateLimitRPS, cfg.BreakerEnabled)
	}
	if cfg.SummaryTimeoutMS != 30000 {
		t.Fatalf("expected invalid int to fall back, got %d", cfg.SummaryTimeoutMS)
	}
}

func TestLoadOverlaysYAMLBeneathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "summary_model: sonar-small\nsummary_max_length: 120\napi_port: \"9000\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SUMMARY_MODEL", "")
	t.Setenv("SUMMARY_MAX_LENGTH", "")
	t.Setenv("API_PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SummaryModel != "sonar-small" || cfg.SummaryMaxLength != 120 {
		t.Fatalf("expected yaml values, got model=%q length=%d", cfg.SummaryModel, cfg.SummaryMaxLength)
	}
	if cfg.APIPort != "7000" {
		t.Fatalf("expected env to win over yaml, got %q", cfg.APIPort)
	}
}

func TestLoadFailsOnMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateRejectsBadSummarySettings(t *testing.T) {
	cfg := Defaults()
	cfg.SummaryMaxRetries = 0
	cfg.SummaryStyle = "poetic"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "SUMMARY_MAX_RETRIES") || !strings.Contains(err.Error(), "SUMMARY_STYLE") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}
