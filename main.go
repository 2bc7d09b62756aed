package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kwv/scanmesh/mesh"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command-line flags
type AppOptions struct {
	ConfigFile     string
	Input          string
	CachePath      string
	OutputFile     string
	RenderFormat   string
	Plane          string
	GeoJSONFile    string
	Threshold      int
	Anchor         int // -1 keeps the configured anchor
	Workers        int
	NoFingerprints bool
	GridSpacing    float64
	HttpPort       int
	RenderOnly     bool
	MqttMode       bool
	HttpMode       bool
}

// Runner is implemented by App; tests substitute a mock
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunAssemble() error
	RunRender() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("Error: %v", err)
	}
}

// run parses args, prints the banner to out and dispatches to the selected mode
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("scanmesh", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.Input, "input", "", "Scan report file or http(s) URL (overrides config)")
	fs.StringVar(&opts.CachePath, "cache", mesh.DefaultResolutionCachePath, "Path to resolution cache file (empty disables)")
	fs.IntVar(&opts.Threshold, "threshold", 0, "Minimum shared beacons per alignment (default from config, 12)")
	fs.IntVar(&opts.Anchor, "anchor", -1, "Scanner whose frame is the global frame (default from config, 0)")
	fs.IntVar(&opts.Workers, "workers", 0, "Scan pairs aligned concurrently (default from config, 4)")
	fs.BoolVar(&opts.NoFingerprints, "no-fingerprints", false, "Disable the pairwise-distance prefilter")
	fs.StringVar(&opts.GeoJSONFile, "geojson", "", "Also write the assembled map as GeoJSON to this file")
	fs.BoolVar(&opts.RenderOnly, "render", false, "Render the assembled map and exit")
	fs.StringVar(&opts.RenderFormat, "format", "raster", "Render format: raster or vector")
	fs.StringVar(&opts.OutputFile, "output", "beacon-map.png", "Output file for --render mode (.svg selects SVG for vector)")
	fs.StringVar(&opts.Plane, "plane", "xy", "Projection plane for rendering: xy, xz or yz")
	fs.Float64Var(&opts.GridSpacing, "grid-spacing", 1000.0, "Grid line spacing in world units for vector output")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode: reassemble on every scan report")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for the assembled map")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "scanmesh version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	case opts.RenderOnly:
		return app.RunRender()
	default:
		return app.RunAssemble()
	}
}
