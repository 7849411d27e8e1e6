package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/lens/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestSyncConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SyncConfig)
		wantErr bool
	}{
		{"defaults", func(*SyncConfig) {}, false},
		{"exclude globs", func(c *SyncConfig) { c.Exclude = []string{"archive/**", "*.draft.md"} }, false},
		{"bad glob", func(c *SyncConfig) { c.Exclude = []string{"[unclosed"} }, true},
		{"debounce too short", func(c *SyncConfig) { c.Debounce = time.Millisecond }, true},
		{"relative base url", func(c *SyncConfig) { c.GitHub.BaseURL = "api.github.com" }, true},
		{"empty base url", func(c *SyncConfig) { c.GitHub.BaseURL = "" }, true},
		{"zero timeout", func(c *SyncConfig) { c.GitHub.Timeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Sync
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSyncConfig_Sources(t *testing.T) {
	cfg := NewDefaultConfig().Sync
	cfg.Exclude = []string{"drafts/**"}
	src := cfg.Sources()
	if src.GitHubBaseURL != "https://api.github.com" || src.GitHubClient.Timeout != 30*time.Second {
		t.Errorf("sources = %+v", src)
	}
	if len(src.Exclude) != 1 || src.Exclude[0] != "drafts/**" {
		t.Errorf("exclude = %v", src.Exclude)
	}
}

func TestSSEConfig_NegativeThrottle(t *testing.T) {
	cfg := SSEConfig{Throttle: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("negative throttle should fail")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("LENS_TEST_TOKEN", "from-env")
	data := `app:
  log_level: debug
  http:
    port: 9090
sqlite:
  path: ` + filepath.Join(dir, "lens.db") + `
auth:
  mode: token
  token: ${LENS_TEST_TOKEN}
sync:
  watch: false
  debounce: 250ms
  exclude:
    - archive/**
sse:
  throttle: 5s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Auth.Token != "from-env" {
		t.Errorf("token = %q, want env expansion", cfg.Auth.Token)
	}
	if cfg.Sync.Watch || cfg.Sync.Debounce != 250*time.Millisecond || len(cfg.Sync.Exclude) != 1 {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if cfg.Sync.GitHub.BaseURL != "https://api.github.com" {
		t.Errorf("unset github section should keep defaults, got %+v", cfg.Sync.GitHub)
	}
	if cfg.SSE.Throttle != 5*time.Second {
		t.Errorf("throttle = %v", cfg.SSE.Throttle)
	}
}
