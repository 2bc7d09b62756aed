package mesh

// Aligner finds the transform relating two scans
type Aligner struct {
	Threshold    int  // Minimum coincident beacons for a match
	Fingerprints bool // Reject pairs whose distance fingerprints cannot overlap
}

// NewAligner returns an aligner with fingerprint filtering enabled.
// A non-positive threshold falls back to DefaultOverlapThreshold.
func NewAligner(threshold int) *Aligner {
	if threshold <= 0 {
		threshold = DefaultOverlapThreshold
	}
	return &Aligner{Threshold: threshold, Fingerprints: true}
}

// minSharedDistances is the fingerprint overlap implied by Threshold shared beacons
func (al *Aligner) minSharedDistances() int {
	return al.Threshold * (al.Threshold - 1) / 2
}

// MayOverlap reports whether the fingerprints of a and b allow Threshold
// shared beacons. Always true when fingerprint filtering is off.
func (al *Aligner) MayOverlap(a, b Scan) bool {
	if !al.Fingerprints {
		return true
	}
	return SharedDistances(a, b) >= al.minSharedDistances()
}

// Align returns the transform mapping candidate's local frame into
// reference's local frame. Orientations are tried in the fixed order of
// Orientations() and the first one that reaches the threshold wins.
// false means the scans do not overlap; that is not an error.
func (al *Aligner) Align(reference, candidate Scan) (Transform, bool) {
	if !al.MayOverlap(reference, candidate) {
		return Transform{}, false
	}
	for _, o := range orientations {
		if offset, ok := MatchOverlap(reference.points, candidate.points, o, al.Threshold); ok {
			return Transform{Rotation: o, Translation: offset}, true
		}
	}
	return Transform{}, false
}

// MatchingOrientations tries all 24 orientations without short-circuiting and
// returns every transform that reaches the threshold. More than one result
// means the pair is geometrically ambiguous.
func (al *Aligner) MatchingOrientations(reference, candidate Scan) []Transform {
	var matches []Transform
	for _, o := range orientations {
		if offset, ok := MatchOverlap(reference.points, candidate.points, o, al.Threshold); ok {
			matches = append(matches, Transform{Rotation: o, Translation: offset})
		}
	}
	return matches
}
