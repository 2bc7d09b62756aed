package mesh

import "fmt"

// Orientation is a rotation of 3D space that maps the integer lattice onto
// itself: an axis permutation combined with sign flips.
// Output coordinate i is Signs[i] * p[Axes[i]].
type Orientation struct {
	Axes  [3]int `json:"axes"`
	Signs [3]int `json:"signs"`
}

// orientations holds the 24 proper rotations. Built once at package init and
// never written again.
var orientations = buildOrientations()

// Orientations returns the 24 handedness-preserving axis-aligned rotations.
// The first entry is the identity. The returned slice is a copy.
func Orientations() []Orientation {
	out := make([]Orientation, len(orientations))
	copy(out, orientations)
	return out
}

// IdentityOrientation returns the orientation that leaves points unchanged
func IdentityOrientation() Orientation {
	return Orientation{Axes: [3]int{0, 1, 2}, Signs: [3]int{1, 1, 1}}
}

// buildOrientations enumerates the 6 axis permutations x 8 sign triples and
// keeps the 24 with determinant +1. The other 24 are mirror images.
func buildOrientations() []Orientation {
	signs := [2]int{1, -1}
	result := make([]Orientation, 0, 24)
	for _, perm := range axisPermutations() {
		for _, s0 := range signs {
			for _, s1 := range signs {
				for _, s2 := range signs {
					o := Orientation{Axes: perm, Signs: [3]int{s0, s1, s2}}
					if o.Determinant() == 1 {
						result = append(result, o)
					}
				}
			}
		}
	}
	return result
}

// axisPermutations returns the 6 orderings of (0, 1, 2) in lexicographic order
func axisPermutations() [][3]int {
	var perms [][3]int
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			if b == a {
				continue
			}
			perms = append(perms, [3]int{a, b, 3 - a - b})
		}
	}
	return perms
}

// permutationParity returns +1 for an even permutation, -1 for an odd one
func permutationParity(perm [3]int) int {
	inversions := 0
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if perm[i] > perm[j] {
				inversions++
			}
		}
	}
	if inversions%2 == 0 {
		return 1
	}
	return -1
}

// Determinant of the orientation's matrix: +1 for rotations, -1 for mirrors
func (o Orientation) Determinant() int {
	return permutationParity(o.Axes) * o.Signs[0] * o.Signs[1] * o.Signs[2]
}

// Apply rotates p
func (o Orientation) Apply(p Point) Point {
	return Point{
		X: o.Signs[0] * p.axis(o.Axes[0]),
		Y: o.Signs[1] * p.axis(o.Axes[1]),
		Z: o.Signs[2] * p.axis(o.Axes[2]),
	}
}

// Compose returns the orientation equivalent to applying inner first, then o
func (o Orientation) Compose(inner Orientation) Orientation {
	var out Orientation
	for i := 0; i < 3; i++ {
		out.Axes[i] = inner.Axes[o.Axes[i]]
		out.Signs[i] = o.Signs[i] * inner.Signs[o.Axes[i]]
	}
	return out
}

// Inverse returns the orientation that undoes o
func (o Orientation) Inverse() Orientation {
	var out Orientation
	for i := 0; i < 3; i++ {
		out.Axes[o.Axes[i]] = i
		out.Signs[o.Axes[i]] = o.Signs[i]
	}
	return out
}

// IsIdentity reports whether o leaves every point unchanged
func (o Orientation) IsIdentity() bool {
	return o == IdentityOrientation()
}

// String renders the orientation as the images of the x, y and z axes,
// e.g. "(-y,+x,+z)"
func (o Orientation) String() string {
	names := [3]string{"x", "y", "z"}
	sign := func(s int) string {
		if s < 0 {
			return "-"
		}
		return "+"
	}
	return fmt.Sprintf("(%s%s,%s%s,%s%s)",
		sign(o.Signs[0]), names[o.Axes[0]],
		sign(o.Signs[1]), names[o.Axes[1]],
		sign(o.Signs[2]), names[o.Axes[2]])
}
