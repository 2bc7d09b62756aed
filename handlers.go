package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kwv/scanmesh/mesh"
)

// scannerView is one entry of the /scanners response
type scannerView struct {
	mesh.ScannerSummary
	Resolved    bool        `json:"resolved"`
	Origin      *mesh.Point `json:"origin,omitempty"`
	Orientation string      `json:"orientation,omitempty"`
	Path        []int       `json:"path,omitempty"`
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *mesh.StateTracker, config *mesh.Config) http.Handler {
	if config == nil {
		config = mesh.DefaultConfig()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status      string    `json:"status"`
			Timestamp   time.Time `json:"timestamp"`
			Scanners    int       `json:"scanners"`
			HasMap      bool      `json:"hasMap"`
			LastUpdated time.Time `json:"lastUpdated,omitzero"`
			LastError   string    `json:"lastError,omitempty"`
		}{
			Status:      "ok",
			Timestamp:   time.Now(),
			Scanners:    stateTracker.ScanCount(),
			HasMap:      stateTracker.GetBeaconMap() != nil,
			LastUpdated: stateTracker.LastUpdated(),
			LastError:   stateTracker.LastError(),
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("/beacons", func(w http.ResponseWriter, r *http.Request) {
		m := stateTracker.GetBeaconMap()
		if m == nil {
			http.Error(w, "No beacon map assembled yet", http.StatusServiceUnavailable)
			return
		}
		resp := struct {
			*mesh.BeaconMap
			BeaconCount       int `json:"beaconCount"`
			MaxOriginDistance int `json:"maxOriginDistance"`
		}{
			BeaconMap:         m,
			BeaconCount:       m.BeaconCount(),
			MaxOriginDistance: m.MaxOriginDistance(),
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/scanners", func(w http.ResponseWriter, r *http.Request) {
		scans := stateTracker.GetScans()
		res := stateTracker.GetResolution()
		views := make([]scannerView, 0, len(scans))
		for _, s := range scans {
			v := scannerView{ScannerSummary: mesh.Summarize(s)}
			if res != nil {
				if t, ok := res.Transform(s.ID); ok {
					origin := mesh.TransformPoint(mesh.Origin, t)
					v.Resolved = true
					v.Origin = &origin
					v.Orientation = t.Rotation.String()
					v.Path = res.Path(s.ID)
				}
			}
			views = append(views, v)
		}
		writeJSON(w, views)
	})

	mux.HandleFunc("/beacons.geojson", func(w http.ResponseWriter, r *http.Request) {
		m := stateTracker.GetBeaconMap()
		if m == nil {
			http.Error(w, "No beacon map assembled yet", http.StatusServiceUnavailable)
			return
		}
		plane, err := mesh.ParsePlane(r.URL.Query().Get("plane"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := mesh.BeaconMapToGeoJSON(m, stateTracker.GetResolution(), plane).MarshalJSON()
		if err != nil {
			http.Error(w, "Failed to encode GeoJSON", http.StatusInternalServerError)
			log.Printf("[HTTP] Error encoding GeoJSON: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if _, err := w.Write(data); err != nil {
			log.Printf("[HTTP] Error writing GeoJSON: %v", err)
		}
	})

	mux.HandleFunc("/map.png", func(w http.ResponseWriter, r *http.Request) {
		m := stateTracker.GetBeaconMap()
		if m == nil {
			http.Error(w, "No beacon map assembled yet", http.StatusServiceUnavailable)
			return
		}
		plane, err := mesh.ParsePlane(r.URL.Query().Get("plane"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		renderer := mesh.NewMapRenderer(m, config.Render)
		renderer.Plane = plane
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.WritePNG(w); err != nil {
			log.Printf("[HTTP] Error encoding map PNG: %v", err)
		}
	})

	mux.HandleFunc("/map.svg", func(w http.ResponseWriter, r *http.Request) {
		m := stateTracker.GetBeaconMap()
		if m == nil {
			http.Error(w, "No beacon map assembled yet", http.StatusServiceUnavailable)
			return
		}
		plane, err := mesh.ParsePlane(r.URL.Query().Get("plane"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		renderer := mesh.NewVectorRenderer(m, config.Render).WithResolution(stateTracker.GetResolution())
		renderer.Plane = plane
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToSVG(w); err != nil {
			log.Printf("[HTTP] Error rendering map SVG: %v", err)
		}
	})

	return mux
}

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}
