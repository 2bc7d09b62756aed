package mesh

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// ---------------------------------------------------------------------------
// shared fixtures
// ---------------------------------------------------------------------------

const exampleReportPath = "testdata/example.txt"

// exampleOrigins are the scanner positions of the example report in scanner
// 0's frame.
var exampleOrigins = map[int]Point{
	0: {0, 0, 0},
	1: {68, -1246, -43},
	2: {1105, -1205, 1229},
	3: {-92, -2380, -20},
	4: {-20, -1133, 1061},
}

// loadExample parses the 5-scanner example report
func loadExample(t *testing.T) []Scan {
	t.Helper()
	scans, err := ParseScanFile(exampleReportPath)
	if err != nil {
		t.Fatalf("parse %s: %v", exampleReportPath, err)
	}
	return scans
}

// exampleBeacons returns the 79 beacons of the example in scanner 0's frame
func exampleBeacons(t *testing.T) []Point {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "example_beacons.txt"))
	if err != nil {
		t.Fatalf("read example beacons: %v", err)
	}
	scans, err := ParseScans(append([]byte("--- scanner 0 ---\n"), data...))
	if err != nil {
		t.Fatalf("parse example beacons: %v", err)
	}
	points := scans[0].Points()
	SortPoints(points)
	return points
}

// syntheticWorld is a generated 5-scanner layout where every scanner overlaps
// its two neighbours in a ring 0-1-2-3-4-0 by exactly 12 beacons. Scanners 0
// and 4 also see 5 beacons nobody else does, so the world has 70 beacons.
type syntheticWorld struct {
	scans      []Scan
	transforms map[int]Transform // local -> frame of scanner 0
	beacons    []Point           // every beacon in the frame of scanner 0, sorted
}

// syntheticOrigins are the scanner positions in the synthetic world
var syntheticOrigins = map[int]Point{
	0: {0, 0, 0},
	1: {1000, -200, 50},
	2: {2100, 100, -300},
	3: {1500, 1200, 400},
	4: {300, 900, -100},
}

// syntheticOrientationIndex picks each scanner's rotation from Orientations()
var syntheticOrientationIndex = map[int]int{0: 0, 1: 5, 2: 11, 3: 17, 4: 23}

// syntheticMaxDistance is the largest Manhattan distance between any two
// synthetic origins: scanners 0 and 3, 1500+1200+400.
const syntheticMaxDistance = 3100

func buildSyntheticWorld(t *testing.T) syntheticWorld {
	t.Helper()
	rng := rand.New(rand.NewSource(19))
	used := make(map[Point]bool)
	group := func(n int) []Point {
		pts := make([]Point, 0, n)
		for len(pts) < n {
			p := Point{
				X: rng.Intn(10001) - 5000,
				Y: rng.Intn(10001) - 5000,
				Z: rng.Intn(10001) - 5000,
			}
			if used[p] {
				continue
			}
			used[p] = true
			pts = append(pts, p)
		}
		return pts
	}

	a, b, c, d, e := group(12), group(12), group(12), group(12), group(12)
	p0, p4 := group(5), group(5)

	visible := map[int][][]Point{
		0: {a, e, p0},
		1: {a, b},
		2: {b, c},
		3: {c, d},
		4: {d, e, p4},
	}

	all := Orientations()
	w := syntheticWorld{transforms: make(map[int]Transform)}
	for id := 0; id < 5; id++ {
		tr := Transform{
			Rotation:    all[syntheticOrientationIndex[id]],
			Translation: syntheticOrigins[id],
		}
		w.transforms[id] = tr

		toLocal := InvertTransform(tr)
		var local []Point
		for _, g := range visible[id] {
			local = append(local, TransformPoints(g, toLocal)...)
		}
		w.scans = append(w.scans, NewScan(id, local))
	}

	for p := range used {
		w.beacons = append(w.beacons, p)
	}
	SortPoints(w.beacons)
	return w
}

// shiftedCopy returns points translated by delta
func shiftedCopy(points []Point, delta Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = p.Add(delta)
	}
	return out
}

// randomPoints returns n distinct points from a seeded generator
func randomPoints(seed int64, n int) []Point {
	rng := rand.New(rand.NewSource(seed))
	seen := make(map[Point]bool, n)
	out := make([]Point, 0, n)
	for len(out) < n {
		p := Point{X: rng.Intn(2001) - 1000, Y: rng.Intn(2001) - 1000, Z: rng.Intn(2001) - 1000}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
