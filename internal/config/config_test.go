package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestNewManagerWritesDefaults(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.json")

	m, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	cfg := m.GetConfig()
	wantModels := []string{"gemini-1.5-pro", "gemini-1.5-flash", "gemini-1.5-flash-8b"}
	if len(cfg.CandidateModels) != len(wantModels) {
		t.Fatalf("candidateModels = %v, want %v", cfg.CandidateModels, wantModels)
	}
	for i := range wantModels {
		if cfg.CandidateModels[i] != wantModels[i] {
			t.Fatalf("candidateModels[%d] = %q, want %q", i, cfg.CandidateModels[i], wantModels[i])
		}
	}
	if cfg.Generation.Temperature != 0.2 || cfg.Generation.TopK != 32 ||
		cfg.Generation.TopP != 0.95 || cfg.Generation.MaxOutputTokens != 4096 {
		t.Fatalf("generation = %+v", cfg.Generation)
	}
	if cfg.Usage.Limit != 5 || cfg.Usage.Policy != UsagePolicyStrict || cfg.Usage.Store != UsageStoreCookie {
		t.Fatalf("usage = %+v", cfg.Usage)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RequestsPerMinute != 60 {
		t.Fatalf("rateLimit = %+v", cfg.RateLimit)
	}

	// 默认配置被写回文件
	if _, err := os.Stat(configFile); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}
}

func TestNewManagerLoadsExistingFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.json")

	custom := DefaultConfig()
	custom.CandidateModels = []string{"gemini-2.0-flash"}
	custom.Usage.Limit = 10
	custom.Usage.Policy = UsagePolicyLenient
	data, _ := json.Marshal(custom)
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	m, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	cfg := m.GetConfig()
	if len(cfg.CandidateModels) != 1 || cfg.CandidateModels[0] != "gemini-2.0-flash" {
		t.Fatalf("candidateModels = %v", cfg.CandidateModels)
	}
	if cfg.Usage.Limit != 10 || cfg.Usage.Policy != UsagePolicyLenient {
		t.Fatalf("usage = %+v", cfg.Usage)
	}
}

func TestGetConfigReturnsCopy(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	cfg := m.GetConfig()
	cfg.CandidateModels[0] = "mutated"

	if m.GetConfig().CandidateModels[0] == "mutated" {
		t.Fatal("GetConfig must return a defensive copy")
	}
}

func TestCandidateModelsReturnsCopy(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	models := m.CandidateModels()
	if len(models) != 3 || models[0] != "gemini-1.5-pro" {
		t.Fatalf("candidateModels = %v", models)
	}

	models[0] = "mutated"
	if m.CandidateModels()[0] == "mutated" {
		t.Fatal("CandidateModels must return a defensive copy")
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.json")

	m, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	// 文件监听 goroutine 也可能触发回调，加锁避免竞争
	var mu sync.Mutex
	var callbackLimit int
	m.SetOnChangeCallback(func(cfg AppConfig) {
		mu.Lock()
		callbackLimit = cfg.Usage.Limit
		mu.Unlock()
	})

	updated := DefaultConfig()
	updated.Usage.Limit = 99
	data, _ := json.Marshal(updated)
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	if err := m.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := m.GetConfig().Usage.Limit; got != 99 {
		t.Fatalf("limit after reload = %d, want 99", got)
	}
	mu.Lock()
	gotLimit := callbackLimit
	mu.Unlock()
	if gotLimit != 99 {
		t.Fatal("onChange callback not invoked with new config")
	}
}

func TestReloadRejectsInvalidConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.json")

	m, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	bad := DefaultConfig()
	bad.CandidateModels = nil
	data, _ := json.Marshal(bad)
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	if err := m.Reload(); err == nil {
		t.Fatal("Reload must reject config with empty candidateModels")
	}
	// 旧配置保持不变
	if got := m.GetConfig().Usage.Limit; got != 5 {
		t.Fatalf("limit = %d, want previous value 5", got)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{name: "default is valid", mutate: func(c *AppConfig) {}, wantErr: false},
		{name: "empty models", mutate: func(c *AppConfig) { c.CandidateModels = nil }, wantErr: true},
		{name: "blank model name", mutate: func(c *AppConfig) { c.CandidateModels = []string{""} }, wantErr: true},
		{name: "negative limit", mutate: func(c *AppConfig) { c.Usage.Limit = -1 }, wantErr: true},
		{name: "zero limit allowed", mutate: func(c *AppConfig) { c.Usage.Limit = 0 }, wantErr: false},
		{name: "unknown policy", mutate: func(c *AppConfig) { c.Usage.Policy = "soft" }, wantErr: true},
		{name: "unknown store", mutate: func(c *AppConfig) { c.Usage.Store = "redis" }, wantErr: true},
		{name: "zero max tokens", mutate: func(c *AppConfig) { c.Generation.MaxOutputTokens = 0 }, wantErr: true},
		{name: "negative rpm", mutate: func(c *AppConfig) { c.RateLimit.RequestsPerMinute = -1 }, wantErr: true},
		{name: "zero rpm allowed", mutate: func(c *AppConfig) { c.RateLimit.RequestsPerMinute = 0 }, wantErr: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := validateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateConfig = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvConfigDefaults(t *testing.T) {
	cfg := NewEnvConfig()

	if cfg.Port != 3000 {
		t.Fatalf("port = %d, want 3000", cfg.Port)
	}
	if cfg.RequestTimeout != 120000 {
		t.Fatalf("requestTimeout = %d, want 120000", cfg.RequestTimeout)
	}
	if !cfg.EnableWebUI || !cfg.EnableCORS || !cfg.EnableRequestLogs {
		t.Fatalf("feature toggles = %+v", cfg)
	}
	if cfg.HealthCheckPath != "/health" {
		t.Fatalf("healthCheckPath = %q", cfg.HealthCheckPath)
	}
}

func TestEnvConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ENV", "production")
	t.Setenv("ENABLE_WEB_UI", "false")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")

	cfg := NewEnvConfig()
	if cfg.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production mode")
	}
	if cfg.EnableWebUI {
		t.Fatal("web UI must be disabled")
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.1" {
		t.Fatalf("trustedProxies = %v", cfg.TrustedProxies)
	}
}

func TestShouldLog(t *testing.T) {
	t.Parallel()

	cfg := &EnvConfig{LogLevel: "info"}
	if !cfg.ShouldLog("error") || !cfg.ShouldLog("info") {
		t.Fatal("info level must log error and info")
	}
	if cfg.ShouldLog("debug") {
		t.Fatal("info level must not log debug")
	}
}
