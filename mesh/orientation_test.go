package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrientations_Count(t *testing.T) {
	all := Orientations()
	require.Len(t, all, 24)

	seen := make(map[Orientation]bool)
	for _, o := range all {
		assert.False(t, seen[o], "duplicate orientation %s", o)
		seen[o] = true
	}
}

func TestOrientations_IdentityFirst(t *testing.T) {
	all := Orientations()
	assert.True(t, all[0].IsIdentity())
	assert.Equal(t, IdentityOrientation(), all[0])
}

func TestOrientations_ReturnsCopy(t *testing.T) {
	a := Orientations()
	a[0] = Orientation{Axes: [3]int{2, 1, 0}, Signs: [3]int{-1, -1, -1}}
	assert.True(t, Orientations()[0].IsIdentity(), "mutating the result must not affect the package set")
}

func TestOrientations_PreserveDistanceAndHandedness(t *testing.T) {
	p := Point{X: 3, Y: -7, Z: 11}
	q := Point{X: -2, Y: 5, Z: 1}

	ex := Point{X: 1}
	ey := Point{Y: 1}
	ez := Point{Z: 1}

	for _, o := range Orientations() {
		t.Run(o.String(), func(t *testing.T) {
			assert.Equal(t, 1, o.Determinant())
			assert.Equal(t, p.Norm2(), o.Apply(p).Norm2())
			assert.Equal(t, p.Sub(q).Norm2(), o.Apply(p).Sub(o.Apply(q)).Norm2())

			// x × y = z must survive the rotation
			assert.Equal(t, o.Apply(ez), cross(o.Apply(ex), o.Apply(ey)))
		})
	}
}

func cross(a, b Point) Point {
	return Point{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func TestOrientation_Apply(t *testing.T) {
	tests := []struct {
		name string
		o    Orientation
		in   Point
		want Point
	}{
		{
			name: "identity",
			o:    IdentityOrientation(),
			in:   Point{1, 2, 3},
			want: Point{1, 2, 3},
		},
		{
			name: "quarter turn about z",
			o:    Orientation{Axes: [3]int{1, 0, 2}, Signs: [3]int{-1, 1, 1}},
			in:   Point{1, 2, 3},
			want: Point{-2, 1, 3},
		},
		{
			name: "half turn about x",
			o:    Orientation{Axes: [3]int{0, 1, 2}, Signs: [3]int{1, -1, -1}},
			in:   Point{1, 2, 3},
			want: Point{1, -2, -3},
		},
		{
			name: "axis cycle",
			o:    Orientation{Axes: [3]int{2, 0, 1}, Signs: [3]int{1, 1, 1}},
			in:   Point{1, 2, 3},
			want: Point{3, 1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.o.Apply(tt.in))
		})
	}
}

func TestOrientation_MirrorsExcluded(t *testing.T) {
	mirror := Orientation{Axes: [3]int{0, 1, 2}, Signs: [3]int{-1, 1, 1}}
	assert.Equal(t, -1, mirror.Determinant())
	assert.NotContains(t, Orientations(), mirror)
}

func TestOrientation_ComposeAndInverse(t *testing.T) {
	p := Point{X: 5, Y: -3, Z: 9}
	all := Orientations()

	for _, a := range all {
		inv := a.Inverse()
		assert.True(t, a.Compose(inv).IsIdentity(), "%s * inverse", a)
		assert.True(t, inv.Compose(a).IsIdentity(), "inverse * %s", a)
		assert.Equal(t, p, inv.Apply(a.Apply(p)))

		for _, b := range all {
			ab := a.Compose(b)
			assert.Equal(t, a.Apply(b.Apply(p)), ab.Apply(p))
			assert.Contains(t, all, ab, "orientations must be closed under composition")
		}
	}
}

func TestOrientation_String(t *testing.T) {
	assert.Equal(t, "(+x,+y,+z)", IdentityOrientation().String())
	o := Orientation{Axes: [3]int{1, 0, 2}, Signs: [3]int{-1, 1, 1}}
	assert.Equal(t, "(-y,+x,+z)", o.String())
}
