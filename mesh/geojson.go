package mesh

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Feature kinds set in the "kind" property of exported features
const (
	KindBeacon  = "beacon"
	KindScanner = "scanner"
	KindLink    = "link"
	KindBounds  = "bounds"
)

// outOfPlane returns the coordinate that Plane.project drops
func (pl Plane) outOfPlane(p Point) int {
	switch pl {
	case PlaneXZ:
		return p.Y
	case PlaneYZ:
		return p.X
	default:
		return p.Z
	}
}

func toOrbPoint(p Point, pl Plane) orb.Point {
	x, y := pl.project(p)
	return orb.Point{x, y}
}

// BeaconMapToGeoJSON exports a beacon map as a FeatureCollection projected
// onto pl. The dropped coordinate is kept in each feature's "depth" property.
// When res is non-nil, each scanner is linked to the scanner it was resolved
// through.
func BeaconMapToGeoJSON(m *BeaconMap, res *Resolution, pl Plane) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if m == nil {
		return fc
	}

	all := make(orb.MultiPoint, 0, len(m.Beacons)+len(m.Origins))

	for i, b := range m.Beacons {
		pt := toOrbPoint(b, pl)
		all = append(all, pt)

		f := geojson.NewFeature(pt)
		f.Properties["kind"] = KindBeacon
		f.Properties["index"] = i
		f.Properties["depth"] = pl.outOfPlane(b)
		fc.Append(f)
	}

	for _, id := range m.ScannerIDs() {
		origin := m.Origins[id]
		pt := toOrbPoint(origin, pl)
		all = append(all, pt)

		f := geojson.NewFeature(pt)
		f.ID = fmt.Sprintf("scanner-%d", id)
		f.Properties["kind"] = KindScanner
		f.Properties["scanner"] = id
		f.Properties["anchor"] = id == m.Anchor
		f.Properties["depth"] = pl.outOfPlane(origin)
		if res != nil {
			if t, ok := res.Transform(id); ok {
				f.Properties["orientation"] = t.Rotation.String()
			}
		}
		fc.Append(f)
	}

	if res != nil {
		for _, id := range m.ScannerIDs() {
			parent, ok := res.Parents[id]
			if !ok {
				continue
			}
			from, ok := m.Origins[parent]
			if !ok {
				continue
			}
			line := orb.LineString{toOrbPoint(from, pl), toOrbPoint(m.Origins[id], pl)}
			f := geojson.NewFeature(line)
			f.Properties["kind"] = KindLink
			f.Properties["from"] = parent
			f.Properties["to"] = id
			f.Properties["length"] = planar.Length(line)
			fc.Append(f)
		}
	}

	if len(all) > 0 {
		poly := all.Bound().ToPolygon()
		f := geojson.NewFeature(poly)
		f.Properties["kind"] = KindBounds
		f.Properties["area"] = planar.Area(poly)
		f.Properties["beacons"] = m.BeaconCount()
		f.Properties["maxOriginDistance"] = m.MaxOriginDistance()
		fc.Append(f)
	}

	return fc
}

// WriteGeoJSON marshals fc and writes it to path
func WriteGeoJSON(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling GeoJSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing GeoJSON: %w", err)
	}
	return nil
}
