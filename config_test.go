package circl

import (
	"strings"
	"testing"
	"time"
)

func TestResolveConfig_ExplicitValues(t *testing.T) {
	cfg := Config{
		BaseURL:        "https://api.circl.example",
		ReconnectDelay: time.Second,
		Credentials:    tokenStore{token: "t"},
	}
	resolved, err := resolveConfig(cfg)
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if resolved.BaseURL != "https://api.circl.example" {
		t.Errorf("BaseURL = %q, want explicit value", resolved.BaseURL)
	}
	if resolved.ReconnectDelay != time.Second {
		t.Errorf("ReconnectDelay = %v, want 1s", resolved.ReconnectDelay)
	}
	if resolved.Logger == nil {
		t.Error("Logger should default to a no-op logger")
	}
}

func TestResolveConfig_Defaults(t *testing.T) {
	resolved, err := resolveConfig(Config{
		BaseURL:     "http://localhost:4000",
		Credentials: tokenStore{token: "t"},
	})
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if resolved.ReconnectDelay != 3*time.Second {
		t.Errorf("ReconnectDelay = %v, want 3s", resolved.ReconnectDelay)
	}
	if resolved.MaxReconnectDelay != resolved.ReconnectDelay {
		t.Errorf("MaxReconnectDelay = %v, want fixed delay %v", resolved.MaxReconnectDelay, resolved.ReconnectDelay)
	}
	if resolved.MaxReconnectAttempts != 0 {
		t.Errorf("MaxReconnectAttempts = %d, want 0 (unlimited)", resolved.MaxReconnectAttempts)
	}
	if resolved.HandshakeTimeout != 10*time.Second {
		t.Errorf("HandshakeTimeout = %v, want 10s", resolved.HandshakeTimeout)
	}
	if resolved.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want 30s", resolved.PingInterval)
	}
	if resolved.PongWait != 60*time.Second {
		t.Errorf("PongWait = %v, want 60s", resolved.PongWait)
	}
}

func TestResolveConfig_EnvFallback(t *testing.T) {
	t.Setenv("CIRCL_API_URL", "https://env-host.example")
	t.Setenv("CIRCL_RECONNECT_DELAY", "500ms")
	t.Setenv("CIRCL_MAX_RECONNECT_DELAY", "8s")
	t.Setenv("CIRCL_MAX_RECONNECT_ATTEMPTS", "5")
	t.Setenv("CIRCL_PING_INTERVAL", "-1s")

	resolved, err := resolveConfig(Config{Credentials: tokenStore{token: "t"}})
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if resolved.BaseURL != "https://env-host.example" {
		t.Errorf("BaseURL = %q, want env value", resolved.BaseURL)
	}
	if resolved.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("ReconnectDelay = %v, want 500ms", resolved.ReconnectDelay)
	}
	if resolved.MaxReconnectDelay != 8*time.Second {
		t.Errorf("MaxReconnectDelay = %v, want 8s", resolved.MaxReconnectDelay)
	}
	if resolved.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d, want 5", resolved.MaxReconnectAttempts)
	}
	if resolved.PingInterval >= 0 {
		t.Errorf("PingInterval = %v, want negative (disabled)", resolved.PingInterval)
	}
}

func TestResolveConfig_PongWaitAbovePingInterval(t *testing.T) {
	resolved, err := resolveConfig(Config{
		BaseURL:      "https://api.circl.example",
		Credentials:  tokenStore{token: "t"},
		PingInterval: 10 * time.Second,
		PongWait:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if resolved.PongWait != 20*time.Second {
		t.Errorf("PongWait = %v, want 20s", resolved.PongWait)
	}

	resolved, err = resolveConfig(Config{
		BaseURL:      "https://api.circl.example",
		Credentials:  tokenStore{token: "t"},
		PingInterval: -1,
		PongWait:     time.Second,
	})
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if resolved.PongWait != time.Second {
		t.Errorf("PongWait = %v, want 1s kept when pings are disabled", resolved.PongWait)
	}
}

func TestResolveConfig_ExplicitOverridesEnv(t *testing.T) {
	t.Setenv("CIRCL_API_URL", "https://env-host.example")

	resolved, err := resolveConfig(Config{
		BaseURL:     "https://explicit.example",
		Credentials: tokenStore{token: "t"},
	})
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if resolved.BaseURL != "https://explicit.example" {
		t.Errorf("BaseURL = %q, want explicit value", resolved.BaseURL)
	}
}

func TestResolveConfig_InvalidEnv(t *testing.T) {
	t.Setenv("CIRCL_RECONNECT_DELAY", "soon")

	_, err := resolveConfig(Config{
		BaseURL:     "https://api.circl.example",
		Credentials: tokenStore{token: "t"},
	})
	if err == nil {
		t.Fatal("resolveConfig() should reject an unparsable duration")
	}
}

func TestResolveConfig_MissingBaseURL(t *testing.T) {
	_, err := resolveConfig(Config{Credentials: tokenStore{token: "t"}})
	if err == nil {
		t.Fatal("resolveConfig() should error when BaseURL is missing")
	}
	if !strings.Contains(err.Error(), "CIRCL_API_URL") {
		t.Errorf("error should name the env fallback, got: %v", err)
	}
}

func TestResolveConfig_UnsupportedScheme(t *testing.T) {
	_, err := resolveConfig(Config{
		BaseURL:     "ftp://api.circl.example",
		Credentials: tokenStore{token: "t"},
	})
	if err == nil {
		t.Fatal("resolveConfig() should reject an ftp BaseURL")
	}
}

func TestResolveConfig_MaxDelayBelowDelay(t *testing.T) {
	resolved, err := resolveConfig(Config{
		BaseURL:           "https://api.circl.example",
		Credentials:       tokenStore{token: "t"},
		ReconnectDelay:    5 * time.Second,
		MaxReconnectDelay: time.Second,
	})
	if err != nil {
		t.Fatalf("resolveConfig() error: %v", err)
	}
	if resolved.MaxReconnectDelay != 5*time.Second {
		t.Errorf("MaxReconnectDelay = %v, want raised to 5s", resolved.MaxReconnectDelay)
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base  string
		token string
		want  string
	}{
		{"http://localhost:4000", "abc", "ws://localhost:4000?token=abc"},
		{"https://api.circl.example", "abc", "wss://api.circl.example?token=abc"},
		{"https://api.circl.example/realtime", "a b&c", "wss://api.circl.example/realtime?token=a+b%26c"},
		{"wss://rt.circl.example/", "", "wss://rt.circl.example/"},
	}
	for _, tt := range tests {
		got, err := socketURL(tt.base, tt.token)
		if err != nil {
			t.Errorf("socketURL(%q) error: %v", tt.base, err)
			continue
		}
		if got != tt.want {
			t.Errorf("socketURL(%q, %q) = %q, want %q", tt.base, tt.token, got, tt.want)
		}
	}
}

func TestSocketURL_Invalid(t *testing.T) {
	for _, base := range []string{"ftp://host", "http://", "::not a url"} {
		if _, err := socketURL(base, "t"); err == nil {
			t.Errorf("socketURL(%q) should error", base)
		}
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("wss://api.circl.example?token=secret")
	if strings.Contains(got, "secret") {
		t.Errorf("redactURL leaked the token: %s", got)
	}
	if !strings.Contains(got, "REDACTED") {
		t.Errorf("redactURL = %s, want REDACTED marker", got)
	}
}
