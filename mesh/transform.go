package mesh

import "fmt"

// Transform maps a point from one scanner frame into another:
// p' = Rotation(p) + Translation
type Transform struct {
	Rotation    Orientation `json:"rotation"`
	Translation Point       `json:"translation"`
}

// IdentityTransform returns a transform with no rotation and no translation
func IdentityTransform() Transform {
	return Transform{Rotation: IdentityOrientation()}
}

// TransformPoint applies a transform to a point
func TransformPoint(p Point, t Transform) Point {
	return t.Rotation.Apply(p).Add(t.Translation)
}

// TransformPoints applies a transform to multiple points
func TransformPoints(points []Point, t Transform) []Point {
	result := make([]Point, len(points))
	for i, p := range points {
		result[i] = TransformPoint(p, t)
	}
	return result
}

// ComposeTransforms composes two transforms: result = outer * inner
// Applying result is equivalent to applying inner first, then outer
func ComposeTransforms(outer, inner Transform) Transform {
	return Transform{
		Rotation:    outer.Rotation.Compose(inner.Rotation),
		Translation: TransformPoint(inner.Translation, outer),
	}
}

// InvertTransform computes the inverse of a transform. Every Orientation is
// invertible, so there is no singular case.
func InvertTransform(t Transform) Transform {
	inv := t.Rotation.Inverse()
	return Transform{
		Rotation:    inv,
		Translation: inv.Apply(t.Translation).Neg(),
	}
}

// Translation creates a translation-only transform
func Translation(x, y, z int) Transform {
	return Transform{Rotation: IdentityOrientation(), Translation: Point{X: x, Y: y, Z: z}}
}

// String formats the transform for logs
func (t Transform) String() string {
	return fmt.Sprintf("rot=%s t=(%d,%d,%d)", t.Rotation, t.Translation.X, t.Translation.Y, t.Translation.Z)
}
