package mesh

import (
	"fmt"
	"sort"
)

// BeaconMap is the merged, deduplicated view of every scan in the global frame
type BeaconMap struct {
	Anchor  int           `json:"anchor"`
	Beacons []Point       `json:"beacons"` // sorted by (x, y, z)
	Origins map[int]Point `json:"origins"` // scanner id -> position in the global frame
}

// Assemble maps every scan's beacons into the global frame and merges them.
// Every scan must have a transform in res.
func Assemble(scans []Scan, res *Resolution) (*BeaconMap, error) {
	if res == nil {
		return nil, fmt.Errorf("assemble: no resolution")
	}

	set := make(map[Point]struct{})
	origins := make(map[int]Point, len(scans))
	for _, s := range scans {
		t, ok := res.Transform(s.ID)
		if !ok {
			return nil, fmt.Errorf("assemble: scan %d has no resolved transform", s.ID)
		}
		for _, p := range s.points {
			set[TransformPoint(p, t)] = struct{}{}
		}
		origins[s.ID] = TransformPoint(Origin, t)
	}

	beacons := make([]Point, 0, len(set))
	for p := range set {
		beacons = append(beacons, p)
	}
	SortPoints(beacons)

	return &BeaconMap{
		Anchor:  res.Anchor,
		Beacons: beacons,
		Origins: origins,
	}, nil
}

// BeaconCount returns the number of distinct beacons
func (m *BeaconMap) BeaconCount() int {
	return len(m.Beacons)
}

// ScannerIDs returns the ids of all scanners in ascending order
func (m *BeaconMap) ScannerIDs() []int {
	ids := make([]int, 0, len(m.Origins))
	for id := range m.Origins {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// FarthestOrigins returns the pair of scanners whose origins are farthest
// apart by Manhattan distance. With fewer than two scanners the distance is 0
// and both ids are the single scanner (or zero).
func (m *BeaconMap) FarthestOrigins() (a, b, dist int) {
	ids := m.ScannerIDs()
	if len(ids) > 0 {
		a, b = ids[0], ids[0]
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			d := ManhattanDistance(m.Origins[ids[i]], m.Origins[ids[j]])
			if d > dist {
				a, b, dist = ids[i], ids[j], d
			}
		}
	}
	return a, b, dist
}

// MaxOriginDistance returns the largest Manhattan distance between any two
// scanner origins
func (m *BeaconMap) MaxOriginDistance() int {
	_, _, d := m.FarthestOrigins()
	return d
}

// Bounds returns the axis-aligned box containing every beacon and origin
func (m *BeaconMap) Bounds() (lo, hi Point) {
	first := true
	grow := func(p Point) {
		if first {
			lo, hi, first = p, p, false
			return
		}
		lo = Point{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = Point{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	for _, p := range m.Beacons {
		grow(p)
	}
	for _, id := range m.ScannerIDs() {
		grow(m.Origins[id])
	}
	return lo, hi
}
