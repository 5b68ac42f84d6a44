package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestNewDefaultServerConfig(t *testing.T) {
	cfg := NewDefaultServerConfig()

	if cfg.MaxSubscriptionsPerSession != 100 {
		t.Errorf("MaxSubscriptionsPerSession: got %d, want 100", cfg.MaxSubscriptionsPerSession)
	}
	if cfg.MaxKeepAliveCount != 10000 {
		t.Errorf("MaxKeepAliveCount: got %d, want 10000", cfg.MaxKeepAliveCount)
	}
	if cfg.MaxLifetimeCount != 30000 {
		t.Errorf("MaxLifetimeCount: got %d, want 30000", cfg.MaxLifetimeCount)
	}
	if cfg.QueueSizeLimits.Min != 1 || cfg.QueueSizeLimits.Max != 10000 {
		t.Errorf("QueueSizeLimits: got %+v, want {1 10000}", cfg.QueueSizeLimits)
	}
	if cfg.AsyncOperationTimeout.Std() != 2*time.Minute {
		t.Errorf("AsyncOperationTimeout: got %v, want 2m", cfg.AsyncOperationTimeout.Std())
	}
}

func TestServerConfig_JSONRoundTrip(t *testing.T) {
	original := NewDefaultServerConfig()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded ServerConfig
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if decoded.MaxKeepAliveCount != original.MaxKeepAliveCount {
		t.Errorf("MaxKeepAliveCount: got %d, want %d", decoded.MaxKeepAliveCount, original.MaxKeepAliveCount)
	}
	if decoded.PublishingIntervalLimits != original.PublishingIntervalLimits {
		t.Errorf("PublishingIntervalLimits: got %+v, want %+v", decoded.PublishingIntervalLimits, original.PublishingIntervalLimits)
	}
}

func TestLoadServerConfig_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	doc := `
max_subscriptions_per_session: 5
max_keep_alive_count: 20
async_operation_timeout: 45s
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.MaxSubscriptionsPerSession != 5 {
		t.Errorf("MaxSubscriptionsPerSession: got %d, want 5", cfg.MaxSubscriptionsPerSession)
	}
	if cfg.MaxKeepAliveCount != 20 {
		t.Errorf("MaxKeepAliveCount: got %d, want 20", cfg.MaxKeepAliveCount)
	}
	if cfg.AsyncOperationTimeout.Std() != 45*time.Second {
		t.Errorf("AsyncOperationTimeout: got %v, want 45s", cfg.AsyncOperationTimeout.Std())
	}
	// Fields absent from the override file keep the built-in default.
	if cfg.MaxLifetimeCount != 30000 {
		t.Errorf("MaxLifetimeCount: got %d, want unchanged default 30000", cfg.MaxLifetimeCount)
	}
}

func TestLoadServerConfig_MissingFile(t *testing.T) {
	if _, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDuration_JSON(t *testing.T) {
	d := Duration(5 * time.Minute)

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(data) != `"5m0s"` {
		t.Errorf("marshal: got %s, want %q", data, "5m0s")
	}

	var decoded Duration
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if time.Duration(decoded) != 5*time.Minute {
		t.Errorf("unmarshal: got %v, want 5m", time.Duration(decoded))
	}
}

func TestDuration_JSONInvalid(t *testing.T) {
	var d Duration
	err := json.Unmarshal([]byte(`"not-a-duration"`), &d)
	if err == nil {
		t.Fatal("expected error for invalid duration string")
	}

	err = json.Unmarshal([]byte(`123`), &d)
	if err == nil {
		t.Fatal("expected error for non-string duration")
	}
}

func TestDuration_YAML(t *testing.T) {
	var d Duration
	if err := yaml.Unmarshal([]byte(`"10s"`), &d); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if time.Duration(d) != 10*time.Second {
		t.Errorf("unmarshal: got %v, want 10s", time.Duration(d))
	}
}
