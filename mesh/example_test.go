package mesh

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExampleReport_Parse(t *testing.T) {
	scans := loadExample(t)
	require.Len(t, scans, 5)

	wantLens := []int{25, 25, 26, 25, 26}
	for i, s := range scans {
		assert.Equal(t, i, s.ID)
		assert.Equal(t, wantLens[i], s.Len(), "scanner %d", i)
	}
	assert.Equal(t, Point{404, -588, -901}, scans[0].Points()[0])
	assert.Equal(t, Point{30, -46, -14}, scans[4].Points()[25])
}

func TestExampleReport_Assemble(t *testing.T) {
	scans := loadExample(t)

	for _, fingerprints := range []bool{true, false} {
		al := NewAligner(DefaultOverlapThreshold)
		al.Fingerprints = fingerprints

		res, err := NewResolver(al, 0).Resolve(context.Background(), scans, 0)
		require.NoError(t, err)

		m, err := Assemble(scans, res)
		require.NoError(t, err)

		assert.Equal(t, 79, m.BeaconCount(), "fingerprints=%v", fingerprints)
		assert.Equal(t, 3621, m.MaxOriginDistance(), "fingerprints=%v", fingerprints)

		if diff := cmp.Diff(exampleOrigins, m.Origins); diff != "" {
			t.Errorf("origins mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(exampleBeacons(t), m.Beacons); diff != "" {
			t.Errorf("beacons mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestExampleReport_FarthestPair(t *testing.T) {
	scans := loadExample(t)
	res, err := NewResolver(nil, 0).Resolve(context.Background(), scans, 0)
	require.NoError(t, err)
	m, err := Assemble(scans, res)
	require.NoError(t, err)

	a, b, dist := m.FarthestOrigins()
	assert.Equal(t, 2, a)
	assert.Equal(t, 3, b)
	assert.Equal(t, 3621, dist)
}

func TestExampleReport_AnchorDoesNotChangeCounts(t *testing.T) {
	scans := loadExample(t)
	r := NewResolver(nil, 0)

	for anchor := range exampleOrigins {
		res, err := r.Resolve(context.Background(), scans, anchor)
		require.NoError(t, err, "anchor %d", anchor)
		m, err := Assemble(scans, res)
		require.NoError(t, err)

		assert.Equal(t, 79, m.BeaconCount(), "anchor %d", anchor)
		assert.Equal(t, 3621, m.MaxOriginDistance(), "anchor %d", anchor)
		assert.Equal(t, Origin, m.Origins[anchor])
	}
}

func TestExampleReport_EachOverlapIsUnambiguous(t *testing.T) {
	scans := loadExample(t)
	al := NewAligner(DefaultOverlapThreshold)

	edges, err := NewResolver(al, 0).DiscoverEdges(context.Background(), scans)
	require.NoError(t, err)
	require.NotEmpty(t, edges)

	byID := make(map[int]Scan)
	for _, s := range scans {
		byID[s.ID] = s
	}
	for _, e := range edges {
		matches := al.MatchingOrientations(byID[e.From], byID[e.To])
		assert.Len(t, matches, 1, "edge %d->%d", e.From, e.To)
	}
}
