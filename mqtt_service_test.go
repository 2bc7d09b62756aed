package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kwv/scanmesh/mesh"
)

// TestMQTTServiceConfigLoading tests configuration loading for MQTT service
func TestMQTTServiceConfigLoading(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		shouldError bool
		errorMsg    string
	}{
		{
			name: "valid config",
			configYAML: `mqtt:
  broker: "mqtt://localhost:1883"
  publishPrefix: "scanmesh"
  clientId: "test-client"
  scanTopic: "lab/scans/+"

anchor: 1
minScanners: 3
`,
		},
		{
			name:        "negative anchor",
			configYAML:  "anchor: -2\n",
			shouldError: true,
			errorMsg:    "anchor must be a scanner id",
		},
		{
			name:        "threshold of one",
			configYAML:  "threshold: 1\n",
			shouldError: true,
			errorMsg:    "threshold of 1",
		},
		{
			name:        "negative minScanners",
			configYAML:  "minScanners: -1\n",
			shouldError: true,
			errorMsg:    "minScanners must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}

			config, err := mesh.LoadConfig(path)
			if tt.shouldError {
				if err == nil {
					t.Fatalf("Expected error containing %q, got nil", tt.errorMsg)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if config.MQTT.ScanTopic != "lab/scans/+" || config.Anchor != 1 || config.MinScanners != 3 {
				t.Errorf("config = %+v", config)
			}
		})
	}
}

// reportPayload renders one scan as the text body a scanner publishes
func reportPayload(s mesh.Scan) []byte {
	var b strings.Builder
	for _, p := range s.Points() {
		fmt.Fprintf(&b, "%d,%d,%d\n", p.X, p.Y, p.Z)
	}
	return []byte(b.String())
}

// TestMQTTService_EndToEnd feeds scan reports through a mock broker and checks
// the published results and the HTTP view of the same state
func TestMQTTService_EndToEnd(t *testing.T) {
	scans, err := mesh.ParseScanFile(exampleInput)
	if err != nil {
		t.Fatalf("ParseScanFile: %v", err)
	}

	config := mesh.DefaultConfig()
	st := mesh.NewStateTracker()
	cachePath := filepath.Join(t.TempDir(), ".resolution-cache.json")

	broker := mesh.NewMockClient()
	broker.SetConnected(true)
	publisher := mesh.NewPublisher(broker, config.MQTT.PublishPrefix)
	ra := mesh.NewReassembler(config, st, publisher, cachePath)

	if err := broker.Subscribe(config.MQTT.ScanTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		id, err := mesh.ScannerIDFromTopic(msg.Topic())
		if err != nil {
			ra.OnScanReport(-1, mesh.Scan{}, err)
			return
		}
		scan, err := mesh.DecodeScanPayload(id, msg.Payload())
		ra.OnScanReport(id, scan, err)
	}).Error(); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// reports arrive out of order, with one malformed message in between
	for _, id := range []int{4, 1, 2} {
		broker.SimulateMessage(fmt.Sprintf("scanmesh/scans/%d", id), reportPayload(scans[id]))
	}
	broker.SimulateMessage("scanmesh/scans/3", []byte("not,a,report"))
	for _, id := range []int{0, 3} {
		broker.SimulateMessage(fmt.Sprintf("scanmesh/scans/%d", id), reportPayload(scans[id]))
	}

	m := st.GetBeaconMap()
	if m == nil {
		t.Fatalf("no map assembled; last error: %s", st.LastError())
	}
	if m.BeaconCount() != 79 {
		t.Errorf("BeaconCount = %d, want 79", m.BeaconCount())
	}
	if len(m.Origins) != 5 {
		t.Errorf("scanners = %d, want 5", len(m.Origins))
	}

	var last mesh.MapSummary
	for _, msg := range broker.GetPublishedMessages() {
		if msg.Topic == "scanmesh/summary" {
			if err := json.Unmarshal(msg.Payload, &last); err != nil {
				t.Fatalf("decode summary: %v", err)
			}
		}
	}
	if last.BeaconCount != 79 || last.MaxOriginDistance != 3621 {
		t.Errorf("last summary = %+v", last)
	}

	rd, err := mesh.LoadResolution(cachePath)
	if err != nil || rd == nil {
		t.Fatalf("LoadResolution: %v, %v", rd, err)
	}
	if rd.NeedsRefresh(st.GetScans()) {
		t.Error("cache should describe the stored scans")
	}

	rec := serve(t, st, "/health")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"scanners":5`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}
