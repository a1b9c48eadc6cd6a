package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{}
	cfg.HTTP.Port = 8080
	cfg.Embedding.APIKey = "sk-embed"
	cfg.Generation.APIKey = "sk-gen"
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("ReadTimeoutSec = %d, want 10", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.MaxBodyBytes != 10240 {
		t.Errorf("MaxBodyBytes = %d, want 10240", cfg.HTTP.MaxBodyBytes)
	}
	if cfg.Content.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.Content.DataDir)
	}
	if cfg.Content.Dimensions != 1536 {
		t.Errorf("Dimensions = %d, want 1536", cfg.Content.Dimensions)
	}
	if cfg.Content.Cache.Key != "foliochat:corpus" {
		t.Errorf("Cache.Key = %q", cfg.Content.Cache.Key)
	}
	if cfg.Embedding.Model != "text-embedding-ada-002" {
		t.Errorf("Embedding.Model = %q", cfg.Embedding.Model)
	}
	if cfg.Generation.Model != "gpt-4o-mini" {
		t.Errorf("Generation.Model = %q", cfg.Generation.Model)
	}
	if cfg.Generation.MaxTokens != 300 {
		t.Errorf("Generation.MaxTokens = %d, want 300", cfg.Generation.MaxTokens)
	}
	if cfg.RateLimit.PerMinute != 5 || cfg.RateLimit.PerDay != 20 {
		t.Errorf("rate limits = %d/%d, want 5/20", cfg.RateLimit.PerMinute, cfg.RateLimit.PerDay)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.HTTP.MaxBodyBytes = 2048
	cfg.Generation.MaxTokens = 100
	cfg.ApplyDefaults()

	if cfg.HTTP.MaxBodyBytes != 2048 {
		t.Errorf("MaxBodyBytes = %d, want 2048", cfg.HTTP.MaxBodyBytes)
	}
	if cfg.Generation.MaxTokens != 100 {
		t.Errorf("MaxTokens = %d, want 100", cfg.Generation.MaxTokens)
	}
}

func TestValidate(t *testing.T) {
	if err := func() error { cfg := validConfig(); return cfg.Validate() }(); err != nil {
		t.Errorf("Validate(valid) = %v, want nil", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"missing embedding key", func(c *Config) { c.Embedding.APIKey = "" }, "embedding.api_key"},
		{"missing generation key", func(c *Config) { c.Generation.APIKey = "" }, "generation.api_key"},
		{"minute exceeds day", func(c *Config) { c.RateLimit.PerMinute = 50 }, "per_minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestCacheConfig_Enabled(t *testing.T) {
	var cfg CacheConfig
	if cfg.Enabled() {
		t.Error("empty cache config reported enabled")
	}
	cfg.Addrs = []string{"localhost:6379"}
	if !cfg.Enabled() {
		t.Error("configured cache reported disabled")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOLIO_TEST_KEY", "secret-value")
	t.Setenv("FOLIO_TEST_EMPTY", "")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "api_key: ${FOLIO_TEST_KEY}", "api_key: secret-value"},
		{"unset variable", "api_key: ${FOLIO_TEST_MISSING}", "api_key: "},
		{"default used", "port: ${FOLIO_TEST_MISSING:-8080}", "port: 8080"},
		{"default ignored when set", "key: ${FOLIO_TEST_KEY:-fallback}", "key: secret-value"},
		{"empty uses default", "key: ${FOLIO_TEST_EMPTY:-fallback}", "key: fallback"},
		{"no variables", "plain: value", "plain: value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(expandEnvVars([]byte(tt.in))); got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}

	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
