package mesh

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the default number of scan pairs aligned concurrently
const DefaultWorkers = 4

// Edge is a confirmed alignment between two scans. Transform maps points in
// To's local frame into From's local frame.
type Edge struct {
	From      int       `json:"from"`
	To        int       `json:"to"`
	Transform Transform `json:"transform"`
}

// Reverse returns the same alignment seen from the other scan
func (e Edge) Reverse() Edge {
	return Edge{From: e.To, To: e.From, Transform: InvertTransform(e.Transform)}
}

// pairKey identifies an unordered scan pair; lo < hi
type pairKey struct {
	lo, hi int
}

type edgeResult struct {
	transform Transform
	found     bool
}

// Resolver discovers pairwise alignments and expresses every scan in the
// anchor's frame. Alignment results are cached per scan pair across calls;
// call Invalidate when a scan's beacons change.
type Resolver struct {
	aligner *Aligner
	workers int

	mu     sync.Mutex
	cache  map[pairKey]edgeResult
	hits   int
	misses int
}

// NewResolver creates a resolver. workers <= 0 uses DefaultWorkers.
func NewResolver(aligner *Aligner, workers int) *Resolver {
	if aligner == nil {
		aligner = NewAligner(DefaultOverlapThreshold)
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Resolver{
		aligner: aligner,
		workers: workers,
		cache:   make(map[pairKey]edgeResult),
	}
}

// Invalidate drops every cached result involving the given scan
func (r *Resolver) Invalidate(scanID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.cache {
		if k.lo == scanID || k.hi == scanID {
			delete(r.cache, k)
		}
	}
}

// CacheStats returns the number of pair lookups served from cache and the
// number that ran the aligner
func (r *Resolver) CacheStats() (hits, misses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits, r.misses
}

// alignPair returns the cached result for (lo, hi) or computes it.
// lo.ID must be smaller than hi.ID.
func (r *Resolver) alignPair(lo, hi Scan) edgeResult {
	key := pairKey{lo: lo.ID, hi: hi.ID}

	r.mu.Lock()
	if res, ok := r.cache[key]; ok {
		r.hits++
		r.mu.Unlock()
		return res
	}
	r.mu.Unlock()

	t, found := r.aligner.Align(lo, hi)
	res := edgeResult{transform: t, found: found}

	r.mu.Lock()
	r.cache[key] = res
	r.misses++
	r.mu.Unlock()
	return res
}

// DiscoverEdges aligns every unordered pair of scans once. Each returned edge
// has From < To. The order is deterministic regardless of worker scheduling.
func (r *Resolver) DiscoverEdges(ctx context.Context, scans []Scan) ([]Edge, error) {
	sorted := SortScans(scans)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, fmt.Errorf("%w: duplicate scan id %d", ErrMalformedInput, sorted[i].ID)
		}
	}

	type pairJob struct{ i, j int }
	var jobs []pairJob
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			jobs = append(jobs, pairJob{i, j})
		}
	}

	results := make([]edgeResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for k, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[k] = r.alignPair(sorted[job.i], sorted[job.j])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("discovering edges: %w", err)
	}

	var edges []Edge
	for k, job := range jobs {
		if !results[k].found {
			continue
		}
		edges = append(edges, Edge{
			From:      sorted[job.i].ID,
			To:        sorted[job.j].ID,
			Transform: results[k].transform,
		})
	}
	return edges, nil
}

// Resolve discovers edges and propagates the anchor's frame to every scan
func (r *Resolver) Resolve(ctx context.Context, scans []Scan, anchor int) (*Resolution, error) {
	edges, err := r.DiscoverEdges(ctx, scans)
	if err != nil {
		return nil, err
	}
	hits, misses := r.CacheStats()
	log.Printf("[RESOLVE] %d scans, %d edges found (pair cache: %d hits, %d misses)",
		len(scans), len(edges), hits, misses)

	res, err := Propagate(scans, edges, anchor)
	if err != nil {
		return nil, err
	}
	log.Printf("[RESOLVE] all %d scans resolved into frame of scan %d", len(res.Order), anchor)
	return res, nil
}

// Resolution holds every scan's transform into the global (anchor) frame
type Resolution struct {
	Anchor     int               `json:"anchor"`
	Transforms map[int]Transform `json:"transforms"`
	Parents    map[int]int       `json:"parents"` // spanning tree; the anchor has no entry
	Order      []int             `json:"order"`   // scans in the order they were resolved
	Edges      []Edge            `json:"edges"`
}

// Transform returns the local-to-global transform for a scan
func (r *Resolution) Transform(scanID int) (Transform, bool) {
	t, ok := r.Transforms[scanID]
	return t, ok
}

// Origin returns the scanner's position in the global frame
func (r *Resolution) Origin(scanID int) (Point, bool) {
	t, ok := r.Transforms[scanID]
	if !ok {
		return Point{}, false
	}
	return TransformPoint(Origin, t), true
}

// Path returns the scan ids from the anchor to scanID along the spanning tree.
// It returns nil when scanID is unresolved or the tree does not lead back to
// the anchor.
func (r *Resolution) Path(scanID int) []int {
	if _, ok := r.Transforms[scanID]; !ok {
		return nil
	}
	path := []int{scanID}
	for id := scanID; id != r.Anchor; {
		parent, ok := r.Parents[id]
		if !ok || len(path) >= len(r.Transforms) {
			return nil
		}
		id = parent
		path = append(path, id)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// graphNode is one scan in the arena. Adjacency is stored as indices into
// scanGraph.edges; no node holds a reference to another.
type graphNode struct {
	scanID int
	out    []int
}

// scanGraph is an undirected alignment graph stored as an arena of nodes.
// Every Edge is present in both directions.
type scanGraph struct {
	nodes []graphNode
	index map[int]int // scan id -> node index
	edges []Edge
}

func newScanGraph(scans []Scan, edges []Edge) (*scanGraph, error) {
	sorted := SortScans(scans)
	g := &scanGraph{
		nodes: make([]graphNode, 0, len(sorted)),
		index: make(map[int]int, len(sorted)),
		edges: make([]Edge, 0, 2*len(edges)),
	}
	for _, s := range sorted {
		if _, dup := g.index[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate scan id %d", ErrMalformedInput, s.ID)
		}
		g.index[s.ID] = len(g.nodes)
		g.nodes = append(g.nodes, graphNode{scanID: s.ID})
	}

	for _, e := range edges {
		u, okU := g.index[e.From]
		v, okV := g.index[e.To]
		if !okU || !okV {
			return nil, fmt.Errorf("edge %d->%d references an unknown scan", e.From, e.To)
		}
		g.nodes[u].out = append(g.nodes[u].out, len(g.edges))
		g.edges = append(g.edges, e)
		g.nodes[v].out = append(g.nodes[v].out, len(g.edges))
		g.edges = append(g.edges, e.Reverse())
	}
	return g, nil
}

// Propagate expresses every scan in the anchor's frame by breadth-first
// traversal over edges. A scan's transform is fixed the first time it is
// reached. If any scan cannot be reached the result is a
// *DisconnectedGraphError and no partial resolution is returned.
func Propagate(scans []Scan, edges []Edge, anchor int) (*Resolution, error) {
	if len(scans) == 0 {
		return nil, ErrNoScans
	}
	g, err := newScanGraph(scans, edges)
	if err != nil {
		return nil, err
	}
	start, ok := g.index[anchor]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAnchor, anchor)
	}

	n := len(g.nodes)
	resolved := make([]bool, n)
	global := make([]Transform, n)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = -1
	}

	resolved[start] = true
	global[start] = IdentityTransform()
	order := []int{start}

	for head := 0; head < len(order); head++ {
		u := order[head]
		for _, ei := range g.nodes[u].out {
			e := g.edges[ei]
			v := g.index[e.To]
			if resolved[v] {
				continue
			}
			resolved[v] = true
			global[v] = ComposeTransforms(global[u], e.Transform)
			parent[v] = u
			order = append(order, v)
		}
	}

	if len(order) != n {
		var unreachable []int
		for i, ok := range resolved {
			if !ok {
				unreachable = append(unreachable, g.nodes[i].scanID)
			}
		}
		sort.Ints(unreachable)
		return nil, &DisconnectedGraphError{Anchor: anchor, Unreachable: unreachable}
	}

	res := &Resolution{
		Anchor:     anchor,
		Transforms: make(map[int]Transform, n),
		Parents:    make(map[int]int, n-1),
		Order:      make([]int, 0, n),
		Edges:      append([]Edge(nil), edges...),
	}
	for _, idx := range order {
		id := g.nodes[idx].scanID
		res.Order = append(res.Order, id)
		res.Transforms[id] = global[idx]
		if parent[idx] >= 0 {
			res.Parents[id] = g.nodes[parent[idx]].scanID
		}
	}
	return res, nil
}
