package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"
)

type mockApp struct {
	opts   AppOptions
	called map[string]bool
	err    error
}

func newMockApp() *mockApp {
	return &mockApp{
		called: make(map[string]bool),
	}
}

func (m *mockApp) ApplyOptions(opts AppOptions) { m.opts = opts }
func (m *mockApp) RunAssemble() error           { m.called["RunAssemble"] = true; return m.err }
func (m *mockApp) RunRender() error             { m.called["RunRender"] = true; return m.err }
func (m *mockApp) RunService() error            { m.called["RunService"] = true; return m.err }

func TestRun_Flags(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedCalled string
		verifyOpts     func(*testing.T, AppOptions)
	}{
		{
			name:           "Default",
			args:           []string{},
			expectedCalled: "RunAssemble",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.ConfigFile != "config.yaml" {
					t.Errorf("expected ConfigFile config.yaml, got %s", opts.ConfigFile)
				}
				if opts.Anchor != -1 {
					t.Errorf("expected Anchor -1, got %d", opts.Anchor)
				}
				if opts.CachePath != ".resolution-cache.json" {
					t.Errorf("expected default cache path, got %s", opts.CachePath)
				}
				if opts.HttpPort != 8080 {
					t.Errorf("expected HttpPort 8080, got %d", opts.HttpPort)
				}
			},
		},
		{
			name:           "Assemble",
			args:           []string{"--input", "scans.txt", "--threshold", "6", "--anchor", "2", "--workers", "8", "--no-fingerprints", "--geojson", "out.geojson"},
			expectedCalled: "RunAssemble",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.Input != "scans.txt" {
					t.Errorf("expected Input scans.txt, got %s", opts.Input)
				}
				if opts.Threshold != 6 || opts.Anchor != 2 || opts.Workers != 8 {
					t.Errorf("unexpected numeric flags: %+v", opts)
				}
				if !opts.NoFingerprints {
					t.Error("expected NoFingerprints true")
				}
				if opts.GeoJSONFile != "out.geojson" {
					t.Errorf("expected GeoJSONFile out.geojson, got %s", opts.GeoJSONFile)
				}
			},
		},
		{
			name:           "Render",
			args:           []string{"--render", "--format", "vector", "--output", "map.svg", "--plane", "xz", "--grid-spacing", "500"},
			expectedCalled: "RunRender",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.RenderOnly {
					t.Error("expected RenderOnly true")
				}
				if opts.RenderFormat != "vector" || opts.OutputFile != "map.svg" || opts.Plane != "xz" {
					t.Errorf("unexpected render flags: %+v", opts)
				}
				if opts.GridSpacing != 500 {
					t.Errorf("expected GridSpacing 500, got %f", opts.GridSpacing)
				}
			},
		},
		{
			name:           "MQTT",
			args:           []string{"--mqtt"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.MqttMode {
					t.Error("expected MqttMode true")
				}
			},
		},
		{
			name:           "HTTP",
			args:           []string{"--http", "--http-port", "9090"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.HttpMode || opts.HttpPort != 9090 {
					t.Errorf("unexpected http flags: %+v", opts)
				}
			},
		},
		{
			name:           "ServiceWinsOverRender",
			args:           []string{"--render", "--mqtt"},
			expectedCalled: "RunService",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newMockApp()
			var out bytes.Buffer
			if err := run(tt.args, &out, app); err != nil {
				t.Fatalf("run returned error: %v", err)
			}

			if !app.called[tt.expectedCalled] {
				t.Errorf("expected %s to be called, called: %v", tt.expectedCalled, app.called)
			}
			if len(app.called) != 1 {
				t.Errorf("expected exactly one mode, called: %v", app.called)
			}
			if !strings.Contains(out.String(), "scanmesh version:") {
				t.Errorf("expected version banner, got %q", out.String())
			}
			if tt.verifyOpts != nil {
				tt.verifyOpts(t, app.opts)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer

	err := run([]string{"--help"}, &out, app)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if !strings.Contains(out.String(), "Usage of scanmesh") {
		t.Errorf("expected usage text, got %q", out.String())
	}
	if len(app.called) != 0 {
		t.Errorf("no mode should run on --help, called: %v", app.called)
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer

	if err := run([]string{"--bogus"}, &out, app); err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if len(app.called) != 0 {
		t.Errorf("no mode should run on a bad flag, called: %v", app.called)
	}
}

func TestRun_PropagatesError(t *testing.T) {
	app := newMockApp()
	app.err = errors.New("boom")
	var out bytes.Buffer

	if err := run(nil, &out, app); err == nil || err.Error() != "boom" {
		t.Errorf("expected boom, got %v", err)
	}
}
