package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/scanmesh/mesh"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *mesh.Config
	StateTracker *mesh.StateTracker
	MQTTClient   *mesh.MQTTClient
	Publisher    *mesh.Publisher
	Reassembler  *mesh.Reassembler
	Out          io.Writer

	// CLI Flags (effectively dependencies)
	ConfigFile     string
	Input          string
	CachePath      string
	OutputFile     string
	RenderFormat   string
	Plane          string
	GeoJSONFile    string
	Threshold      int
	Anchor         int
	Workers        int
	NoFingerprints bool
	GridSpacing    float64
	HttpPort       int
	MqttMode       bool
	HttpMode       bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: mesh.NewStateTracker(),
		Out:          os.Stdout,
		Anchor:       -1,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.Input = opts.Input
	a.CachePath = opts.CachePath
	a.OutputFile = opts.OutputFile
	a.RenderFormat = opts.RenderFormat
	a.Plane = opts.Plane
	a.GeoJSONFile = opts.GeoJSONFile
	a.Threshold = opts.Threshold
	a.Anchor = opts.Anchor
	a.Workers = opts.Workers
	a.NoFingerprints = opts.NoFingerprints
	a.GridSpacing = opts.GridSpacing
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the config file and applies flag overrides. A missing
// config.yaml at the default path falls back to built-in defaults.
func (a *App) loadConfig() (*mesh.Config, error) {
	var config *mesh.Config
	if _, err := os.Stat(a.ConfigFile); a.ConfigFile != "" && err == nil {
		config, err = mesh.LoadConfig(a.ConfigFile)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded config from %s", a.ConfigFile)
	} else if a.ConfigFile != "" && a.ConfigFile != "config.yaml" {
		return nil, fmt.Errorf("config file not found: %s", a.ConfigFile)
	} else {
		config = mesh.DefaultConfig()
	}

	if a.Threshold > 0 {
		config.Threshold = a.Threshold
	}
	if a.Anchor >= 0 {
		config.Anchor = a.Anchor
	}
	if a.Workers > 0 {
		config.Workers = a.Workers
	}
	if a.NoFingerprints {
		off := false
		config.Fingerprints = &off
	}
	if a.Input != "" {
		config.Input = a.Input
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a.Config = config
	return config, nil
}

// loadScans reads the configured input, fetching it when it is an http(s) URL
func (a *App) loadScans(ctx context.Context, input string) ([]mesh.Scan, error) {
	if input == "" {
		return nil, fmt.Errorf("no scan input: pass --input or set input in the config")
	}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		log.Printf("Fetching scan report from %s", input)
		return mesh.FetchScanReportWithContext(ctx, input)
	}
	return mesh.ParseScanFile(input)
}

// assemble loads scans, resolves them and merges the beacons
func (a *App) assemble(ctx context.Context) ([]mesh.Scan, *mesh.Resolution, *mesh.BeaconMap, error) {
	config, err := a.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	scans, err := a.loadScans(ctx, config.Input)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Printf("Loaded %d scans", len(scans))

	resolver := mesh.NewResolver(config.NewAligner(), config.Workers)
	res, err := resolver.Resolve(ctx, scans, config.Anchor)
	if err != nil {
		return scans, nil, nil, err
	}
	m, err := mesh.Assemble(scans, res)
	if err != nil {
		return scans, res, nil, err
	}
	return scans, res, m, nil
}

// RunAssemble prints the beacon count and the largest scanner separation,
// then writes the resolution cache and optional GeoJSON
func (a *App) RunAssemble() error {
	scans, res, m, err := a.assemble(context.Background())
	if err != nil {
		var dg *mesh.DisconnectedGraphError
		if errors.As(err, &dg) {
			fmt.Fprintf(a.Out, "Scanners %v share no chain of overlaps with scanner %d\n", dg.Unreachable, dg.Anchor)
		}
		return err
	}

	fmt.Fprintln(a.Out, "\nScanner Placements")
	fmt.Fprintln(a.Out, "==================")
	for _, id := range m.ScannerIDs() {
		t, _ := res.Transform(id)
		fmt.Fprintf(a.Out, "  scanner %-3d origin=(%d,%d,%d) orientation=%s via %v\n",
			id, m.Origins[id].X, m.Origins[id].Y, m.Origins[id].Z, t.Rotation, res.Path(id))
	}

	from, to, dist := m.FarthestOrigins()
	fmt.Fprintf(a.Out, "\nBeacons: %d\n", m.BeaconCount())
	fmt.Fprintf(a.Out, "Max Manhattan distance: %d (scanners %d and %d)\n", dist, from, to)

	if a.CachePath != "" {
		if err := mesh.SaveResolution(a.CachePath, mesh.NewResolutionData(scans, res, m)); err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "Resolution saved to %s\n", a.CachePath)
	}

	if a.GeoJSONFile != "" {
		if err := a.writeGeoJSON(m, res); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) writeGeoJSON(m *mesh.BeaconMap, res *mesh.Resolution) error {
	plane, err := mesh.ParsePlane(a.Plane)
	if err != nil {
		return err
	}
	if err := mesh.WriteGeoJSON(a.GeoJSONFile, mesh.BeaconMapToGeoJSON(m, res, plane)); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "GeoJSON written to %s\n", a.GeoJSONFile)
	return nil
}

// RunRender assembles the map and renders it to OutputFile
func (a *App) RunRender() error {
	_, res, m, err := a.assemble(context.Background())
	if err != nil {
		return err
	}
	if err := a.renderTo(a.OutputFile, m, res); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Rendered %d beacons from %d scanners to %s\n", m.BeaconCount(), len(m.Origins), a.OutputFile)

	if a.GeoJSONFile != "" {
		return a.writeGeoJSON(m, res)
	}
	return nil
}

// renderTo writes m to path in the selected format
func (a *App) renderTo(path string, m *mesh.BeaconMap, res *mesh.Resolution) error {
	plane, err := mesh.ParsePlane(a.Plane)
	if err != nil {
		return err
	}

	switch a.RenderFormat {
	case "", "raster":
		r := mesh.NewMapRenderer(m, a.Config.Render)
		r.Plane = plane
		return r.SavePNG(path)

	case "vector":
		r := mesh.NewVectorRenderer(m, a.Config.Render).WithResolution(res)
		r.Plane = plane
		r.GridSpacing = a.GridSpacing

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if strings.EqualFold(filepath.Ext(path), ".svg") {
			return r.RenderToSVG(f)
		}
		return r.RenderToPNG(f)

	default:
		return fmt.Errorf("unknown render format %q (want raster or vector)", a.RenderFormat)
	}
}

// RunService keeps the map current from MQTT scan reports and serves it over HTTP
func (a *App) RunService() error {
	fmt.Fprintln(a.Out, "Starting scanmesh service...")

	config, err := a.loadConfig()
	if err != nil {
		return err
	}

	a.Reassembler = mesh.NewReassembler(config, a.StateTracker, nil, a.CachePath)
	a.seedReassembler(context.Background(), config)

	if a.MqttMode {
		mqttClient, err := mesh.InitMQTT(config, a.Reassembler.OnScanReport)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if mqttClient == nil {
			return fmt.Errorf("MQTT broker not configured in %s", a.ConfigFile)
		}
		a.MQTTClient = mqttClient
		a.attachPublisher(mesh.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishPrefix))
		fmt.Fprintln(a.Out, "MQTT map publisher initialized")
	}

	if a.HttpMode {
		httpServer := newHTTPServer(a.StateTracker, a.Config)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	a.printServiceInfo()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintln(a.Out, "\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Fprintln(a.Out, "Service stopped")
	return nil
}

// seedReassembler loads the configured input and scanner sources, then serves
// the cached resolution when it still matches them and realigns otherwise
func (a *App) seedReassembler(ctx context.Context, config *mesh.Config) {
	if config.Input != "" {
		scans, err := a.loadScans(ctx, config.Input)
		if err != nil {
			log.Printf("Warning: Failed to load initial scans: %v", err)
		} else {
			a.Reassembler.Seed(scans)
		}
	}
	if len(config.Sources) > 0 {
		n, err := a.Reassembler.PullScans(ctx, config.Sources)
		if err != nil {
			log.Printf("Warning: Failed to pull some scanner sources: %v", err)
		}
		log.Printf("Pulled %d of %d scanner sources", n, len(config.Sources))
	}
	if !a.StateTracker.HasScans() {
		return
	}

	cached, err := mesh.LoadResolution(a.CachePath)
	if err != nil {
		log.Printf("Warning: Failed to load resolution cache %s: %v", a.CachePath, err)
	}
	if a.Reassembler.Restore(cached) {
		log.Printf("Serving cached resolution for %d scanners (age %s)",
			len(cached.Scanners), cached.Age().Round(time.Second))
		return
	}
	if _, err := a.Reassembler.Rebuild(ctx); err != nil {
		log.Printf("Warning: Initial assembly failed: %v", err)
	}
}

// attachPublisher routes future rebuilds to p and publishes the current map
// now if the broker is already connected, and again on every (re)connect
func (a *App) attachPublisher(p *mesh.Publisher) {
	a.Publisher = p
	a.Reassembler.SetPublisher(p)

	publish := func() {
		if err := a.Reassembler.PublishCurrent(); err != nil {
			log.Printf("Warning: Failed to publish current map: %v", err)
		}
	}
	if a.MQTTClient != nil {
		a.MQTTClient.SetOnConnected(publish)
		if !a.MQTTClient.IsConnected() {
			return
		}
	}
	publish()
}

func (a *App) printServiceInfo() {
	fmt.Fprintln(a.Out, "\nService Running")
	fmt.Fprintln(a.Out, "===============")

	if a.MqttMode {
		fmt.Fprintln(a.Out, "\nMQTT:")
		fmt.Fprintf(a.Out, "  Subscribed to: %s\n", a.Config.MQTT.ScanTopic)
		fmt.Fprintf(a.Out, "  Publishing to: %s/summary\n", a.Publisher.Prefix())
		fmt.Fprintf(a.Out, "  Scanner placements: %s/scanners/{id}\n", a.Publisher.Prefix())
	}

	if a.HttpMode {
		fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Fprintln(a.Out, "  GET /health           - Health check")
		fmt.Fprintln(a.Out, "  GET /beacons          - Assembled beacon map (JSON)")
		fmt.Fprintln(a.Out, "  GET /scanners         - Scanner placements (JSON)")
		fmt.Fprintln(a.Out, "  GET /beacons.geojson  - Beacon map as GeoJSON")
		fmt.Fprintln(a.Out, "  GET /map.png          - Raster rendering")
		fmt.Fprintln(a.Out, "  GET /map.svg          - Vector rendering")
	}

	fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")
}
