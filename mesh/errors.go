package mesh

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedInput is wrapped by every parser error
	ErrMalformedInput = errors.New("malformed scan report")

	// ErrDisconnectedGraph means some scans share no alignment path with the anchor
	ErrDisconnectedGraph = errors.New("scanner graph is disconnected")

	// ErrUnknownAnchor means the requested anchor scan is not in the input
	ErrUnknownAnchor = errors.New("anchor scan not found")

	// ErrNoScans means resolution was asked to run on an empty input
	ErrNoScans = errors.New("no scans to resolve")
)

// DisconnectedGraphError lists the scans that could not be reached from the
// anchor. It matches ErrDisconnectedGraph with errors.Is.
type DisconnectedGraphError struct {
	Anchor      int
	Unreachable []int
}

func (e *DisconnectedGraphError) Error() string {
	ids := make([]string, len(e.Unreachable))
	for i, id := range e.Unreachable {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%v: %d scan(s) unreachable from anchor %d: [%s]",
		ErrDisconnectedGraph, len(e.Unreachable), e.Anchor, strings.Join(ids, ", "))
}

// Is lets errors.Is(err, ErrDisconnectedGraph) succeed
func (e *DisconnectedGraphError) Is(target error) bool {
	return target == ErrDisconnectedGraph
}
