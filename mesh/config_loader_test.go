package mesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func boolPtr(v bool) *bool { return &v }

func validConfigYAML() string {
	return `threshold: 12
anchor: 2
workers: 8
input: scans.txt
mqtt:
  broker: tcp://localhost:1883
  publishPrefix: scanmesh
  clientId: scanmesh-test
render:
  scale: 0.5
  beaconColor: "#333333"
`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

// ---------------------------------------------------------------------------
// LoadConfig
// ---------------------------------------------------------------------------

func TestLoadConfig_NotExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want a not found error", err)
	}
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	path := writeConfig(t, validConfigYAML())

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Threshold != 12 {
		t.Errorf("Threshold = %d, want 12", cfg.Threshold)
	}
	if cfg.Anchor != 2 {
		t.Errorf("Anchor = %d, want 2", cfg.Anchor)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.Input != "scans.txt" {
		t.Errorf("Input = %q, want scans.txt", cfg.Input)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("Broker = %q, want %q", cfg.MQTT.Broker, "tcp://localhost:1883")
	}
	if cfg.Render.Scale != 0.5 {
		t.Errorf("Render.Scale = %v, want 0.5", cfg.Render.Scale)
	}
	if cfg.Render.Beacon != "#333333" {
		t.Errorf("Render.Beacon = %q, want #333333", cfg.Render.Beacon)
	}
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "mqtt:\n  broker: tcp://broker:1883\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Threshold != DefaultOverlapThreshold {
		t.Errorf("Threshold = %d, want %d", cfg.Threshold, DefaultOverlapThreshold)
	}
	if cfg.Anchor != 0 {
		t.Errorf("Anchor = %d, want 0", cfg.Anchor)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.MinScanners != 2 {
		t.Errorf("MinScanners = %d, want 2", cfg.MinScanners)
	}
	if cfg.MQTT.ScanTopic != DefaultScanTopic {
		t.Errorf("ScanTopic = %q, want %q", cfg.MQTT.ScanTopic, DefaultScanTopic)
	}
	if cfg.MQTT.PublishPrefix != DefaultPublishPrefix {
		t.Errorf("PublishPrefix = %q, want %q", cfg.MQTT.PublishPrefix, DefaultPublishPrefix)
	}
	if !cfg.UseFingerprints() {
		t.Error("fingerprints should default to on")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "threshold: [1, 2\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"zero value", Config{}, ""},
		{"negative threshold", Config{Threshold: -1}, "threshold"},
		{"threshold one", Config{Threshold: 1}, "threshold of 1"},
		{"threshold two", Config{Threshold: 2}, ""},
		{"negative anchor", Config{Anchor: -3}, "anchor"},
		{"negative workers", Config{Workers: -1}, "workers"},
		{"negative minScanners", Config{MinScanners: -1}, "minScanners"},
		{"http source", Config{Sources: map[int]string{3: "http://gw/scans/3"}}, ""},
		{"negative source id", Config{Sources: map[int]string{-1: "http://gw/scans/x"}}, "scanner id"},
		{"file source", Config{Sources: map[int]string{2: "scans/2.txt"}}, "must be http(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_NewAligner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 6
	cfg.Fingerprints = boolPtr(false)

	al := cfg.NewAligner()
	if al.Threshold != 6 {
		t.Errorf("Threshold = %d, want 6", al.Threshold)
	}
	if al.Fingerprints {
		t.Error("Fingerprints should be off")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := DefaultConfig()
	cfg.Anchor = 3
	cfg.MQTT.Broker = "tcp://example:1883"
	cfg.Fingerprints = boolPtr(false)

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Anchor != 3 || loaded.MQTT.Broker != "tcp://example:1883" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.UseFingerprints() {
		t.Error("fingerprints setting lost in round trip")
	}
}
