package mesh

// MatchOverlap decides whether candidate, rotated by o and shifted by some
// translation, shares at least threshold points with reference.
//
// Every pair (a, o(b)) votes for the translation a - o(b). When the scans
// genuinely overlap, each shared beacon votes for the same vector, so the
// first translation to collect threshold votes is returned.
// reference must already be in the target frame; candidate is in its own.
func MatchOverlap(reference, candidate []Point, o Orientation, threshold int) (Point, bool) {
	if threshold <= 0 || len(reference) < threshold || len(candidate) < threshold {
		return Point{}, false
	}

	rotated := make([]Point, len(candidate))
	for i, b := range candidate {
		rotated[i] = o.Apply(b)
	}

	votes := make(map[Point]int, len(reference)*len(rotated))
	for _, a := range reference {
		for _, b := range rotated {
			offset := a.Sub(b)
			votes[offset]++
			if votes[offset] >= threshold {
				return offset, true
			}
		}
	}
	return Point{}, false
}

// CountVotes returns the full translation histogram for candidate rotated by o
// against reference. Used for diagnostics; alignment uses MatchOverlap.
func CountVotes(reference, candidate []Point, o Orientation) map[Point]int {
	votes := make(map[Point]int)
	for _, b := range candidate {
		rb := o.Apply(b)
		for _, a := range reference {
			votes[a.Sub(rb)]++
		}
	}
	return votes
}

// buildFingerprint counts squared distances between every pair of points
func buildFingerprint(points []Point) map[int]int {
	fp := make(map[int]int, len(points)*(len(points)-1)/2+1)
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			fp[points[i].Sub(points[j]).Norm2()]++
		}
	}
	return fp
}

// SharedDistances returns the size of the multiset intersection of two scans'
// pairwise distance fingerprints. k shared beacons contribute at least
// k*(k-1)/2 shared distances.
func SharedDistances(a, b Scan) int {
	small, large := a.fingerprint, b.fingerprint
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for d, n := range small {
		if m, ok := large[d]; ok {
			shared += min(n, m)
		}
	}
	return shared
}
