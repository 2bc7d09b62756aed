package mesh

import "sort"

// DefaultOverlapThreshold is the minimum number of coincident beacons needed
// to accept an alignment between two scans.
const DefaultOverlapThreshold = 12

// Point represents an integer 3D coordinate
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Origin is the point (0, 0, 0)
var Origin = Point{}

// Add returns p + q
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns p - q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Neg returns -p
func (p Point) Neg() Point {
	return Point{X: -p.X, Y: -p.Y, Z: -p.Z}
}

// Manhattan returns |x| + |y| + |z|
func (p Point) Manhattan() int {
	return abs(p.X) + abs(p.Y) + abs(p.Z)
}

// Norm2 returns the squared Euclidean length of p
func (p Point) Norm2() int {
	return p.X*p.X + p.Y*p.Y + p.Z*p.Z
}

// axis returns the coordinate at index i (0=x, 1=y, 2=z)
func (p Point) axis(i int) int {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// pointLess orders points by x, then y, then z
func pointLess(a, b Point) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// SortPoints sorts points in place by (x, y, z)
func SortPoints(points []Point) {
	sort.Slice(points, func(i, j int) bool { return pointLess(points[i], points[j]) })
}

// ManhattanDistance returns the taxicab distance between two points
func ManhattanDistance(a, b Point) int {
	return a.Sub(b).Manhattan()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Scan is one scanner's report: beacon positions relative to the scanner's
// own, unknown frame. A Scan is never modified after NewScan returns.
type Scan struct {
	ID     int
	points []Point

	// fingerprint counts squared pairwise distances between beacons. It is
	// invariant under every Orientation and translation.
	fingerprint map[int]int
}

// NewScan builds a Scan from the given points. Duplicate points are dropped
// and the caller's slice is not retained.
func NewScan(id int, points []Point) Scan {
	seen := make(map[Point]struct{}, len(points))
	unique := make([]Point, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}

	return Scan{
		ID:          id,
		points:      unique,
		fingerprint: buildFingerprint(unique),
	}
}

// Points returns a copy of the scan's beacon positions in its local frame
func (s Scan) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Len returns the number of distinct beacons in the scan
func (s Scan) Len() int {
	return len(s.points)
}

// Equal reports whether two scans carry the same id and the same beacons
// (in any order)
func (s Scan) Equal(other Scan) bool {
	if s.ID != other.ID || len(s.points) != len(other.points) {
		return false
	}
	set := make(map[Point]struct{}, len(s.points))
	for _, p := range s.points {
		set[p] = struct{}{}
	}
	for _, p := range other.points {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}

// ScannerSummary is a short description of a scan for logs and CLI output
type ScannerSummary struct {
	ID       int `json:"id"`
	Beacons  int `json:"beacons"`
	Distinct int `json:"distinctDistances"`
}

// Summarize returns a ScannerSummary for s
func Summarize(s Scan) ScannerSummary {
	return ScannerSummary{
		ID:       s.ID,
		Beacons:  len(s.points),
		Distinct: len(s.fingerprint),
	}
}

// SortScans returns the scans ordered by ID
func SortScans(scans []Scan) []Scan {
	out := make([]Scan, len(scans))
	copy(out, scans)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Config represents the full configuration file
type Config struct {
	Threshold    int            `yaml:"threshold,omitempty" json:"threshold,omitempty"`       // Minimum shared beacons per alignment (default 12)
	Anchor       int            `yaml:"anchor" json:"anchor"`                                 // Scanner whose frame becomes the global frame
	Workers      int            `yaml:"workers,omitempty" json:"workers,omitempty"`           // Concurrent pair alignments (default 4)
	Fingerprints *bool          `yaml:"fingerprints,omitempty" json:"fingerprints,omitempty"` // Distance-fingerprint prefilter (default on)
	MinScanners  int            `yaml:"minScanners,omitempty" json:"minScanners,omitempty"`   // Scans required before the service resolves
	Input        string         `yaml:"input,omitempty" json:"input,omitempty"`               // Scan report path or http(s) URL
	Sources      map[int]string `yaml:"sources,omitempty" json:"sources,omitempty"`           // Per-scanner report URLs pulled at service start
	MQTT         MQTTConfig     `yaml:"mqtt" json:"mqtt"`
	Render       RenderConfig   `yaml:"render,omitempty" json:"render,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	ScanTopic     string `yaml:"scanTopic,omitempty" json:"scanTopic,omitempty"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// RenderConfig controls image output
type RenderConfig struct {
	Scale   float64 `yaml:"scale,omitempty" json:"scale,omitempty"`     // Pixels per world unit for raster output
	Padding float64 `yaml:"padding,omitempty" json:"padding,omitempty"` // Padding in world units
	Beacon  string  `yaml:"beaconColor,omitempty" json:"beaconColor,omitempty"`
	Scanner string  `yaml:"scannerColor,omitempty" json:"scannerColor,omitempty"`
}

// UseFingerprints returns the fingerprint setting, defaulting to true
func (c *Config) UseFingerprints() bool {
	if c.Fingerprints != nil {
		return *c.Fingerprints
	}
	return true
}

// NewAligner builds an Aligner from the config
func (c *Config) NewAligner() *Aligner {
	al := NewAligner(c.Threshold)
	al.Fingerprints = c.UseFingerprints()
	return al
}
