package mesh

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultResolutionCachePath is the default path for the resolved-transform cache
const DefaultResolutionCachePath = ".resolution-cache.json"

// ScannerResolution stores one scanner's resolved placement
type ScannerResolution struct {
	Transform   Transform `json:"transform"`
	Origin      Point     `json:"origin"`
	BeaconCount int       `json:"beaconCount"` // distinct beacons in the scan when resolved
}

// ResolutionData is the on-disk form of a resolution and its headline results
type ResolutionData struct {
	Anchor            int                       `json:"anchor"`
	Scanners          map[int]ScannerResolution `json:"scanners"`
	Parents           map[int]int               `json:"parents"` // spanning tree; the anchor has no entry
	BeaconCount       int                       `json:"beaconCount"`
	MaxOriginDistance int                       `json:"maxOriginDistance"`
	LastUpdated       int64                     `json:"lastUpdated"`
}

// NewResolutionData captures a resolution and the beacon map built from it
func NewResolutionData(scans []Scan, res *Resolution, m *BeaconMap) *ResolutionData {
	data := &ResolutionData{
		Anchor:   res.Anchor,
		Scanners: make(map[int]ScannerResolution, len(scans)),
		Parents:  make(map[int]int, len(res.Parents)),
	}
	for id, parent := range res.Parents {
		data.Parents[id] = parent
	}
	for _, s := range scans {
		t, ok := res.Transform(s.ID)
		if !ok {
			continue
		}
		data.Scanners[s.ID] = ScannerResolution{
			Transform:   t,
			Origin:      TransformPoint(Origin, t),
			BeaconCount: s.Len(),
		}
	}
	if m != nil {
		data.BeaconCount = m.BeaconCount()
		data.MaxOriginDistance = m.MaxOriginDistance()
	}
	return data
}

// LoadResolution loads cached resolution data from a JSON file.
// A missing file is not an error: it returns nil, nil.
func LoadResolution(path string) (*ResolutionData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading resolution cache: %w", err)
	}

	var rd ResolutionData
	if err := json.Unmarshal(data, &rd); err != nil {
		return nil, fmt.Errorf("parsing resolution cache: %w", err)
	}
	if rd.Scanners == nil {
		rd.Scanners = make(map[int]ScannerResolution)
	}
	if rd.Parents == nil {
		rd.Parents = make(map[int]int)
	}
	return &rd, nil
}

// SaveResolution writes resolution data to a JSON file
func SaveResolution(path string, rd *ResolutionData) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	rd.LastUpdated = time.Now().Unix()

	data, err := json.MarshalIndent(rd, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling resolution cache: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing resolution cache: %w", err)
	}
	return nil
}

// GetTransform returns the cached transform for a scanner
func (rd *ResolutionData) GetTransform(scanID int) (Transform, bool) {
	if rd == nil || rd.Scanners == nil {
		return Transform{}, false
	}
	sr, ok := rd.Scanners[scanID]
	return sr.Transform, ok
}

// Resolution rebuilds a Resolution from the cached transforms and spanning
// tree. Edges are not cached. Order is breadth-first from the anchor.
func (rd *ResolutionData) Resolution() *Resolution {
	res := &Resolution{
		Anchor:     rd.Anchor,
		Transforms: make(map[int]Transform, len(rd.Scanners)),
		Parents:    make(map[int]int, len(rd.Parents)),
	}
	for id, sr := range rd.Scanners {
		res.Transforms[id] = sr.Transform
	}

	children := make(map[int][]int)
	for id, parent := range rd.Parents {
		if _, ok := res.Transforms[id]; !ok {
			continue
		}
		res.Parents[id] = parent
		children[parent] = append(children[parent], id)
	}
	if _, ok := res.Transforms[rd.Anchor]; ok {
		res.Order = []int{rd.Anchor}
		for head := 0; head < len(res.Order); head++ {
			next := children[res.Order[head]]
			sort.Ints(next)
			res.Order = append(res.Order, next...)
		}
	}
	return res
}

// NeedsRefresh reports whether the cache no longer describes scans: a scanner
// was added or removed, or its beacon count changed.
func (rd *ResolutionData) NeedsRefresh(scans []Scan) bool {
	if rd == nil || len(rd.Scanners) != len(scans) {
		return true
	}
	for _, s := range scans {
		sr, ok := rd.Scanners[s.ID]
		if !ok || sr.BeaconCount != s.Len() {
			return true
		}
	}
	return false
}

// Age returns the time since the cache was last written
func (rd *ResolutionData) Age() time.Duration {
	if rd == nil || rd.LastUpdated == 0 {
		return 0
	}
	return time.Since(time.Unix(rd.LastUpdated, 0))
}
