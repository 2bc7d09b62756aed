package mesh

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"
)

// DefaultResolveTimeout bounds a single reassembly triggered by a scan report
const DefaultResolveTimeout = 2 * time.Minute

// Reassembler rebuilds the beacon map whenever a scan report changes.
// Pair alignments are reused across reports through the Resolver cache, so
// only pairs involving the changed scan are realigned.
type Reassembler struct {
	config    *Config
	resolver  *Resolver
	state     *StateTracker
	publisher *Publisher
	cachePath string

	mu      sync.Mutex
	rebuilt int
}

// NewReassembler creates a Reassembler. publisher may be nil and cachePath
// may be empty to skip publishing and persistence.
func NewReassembler(config *Config, state *StateTracker, publisher *Publisher, cachePath string) *Reassembler {
	if config == nil {
		config = DefaultConfig()
	}
	if state == nil {
		state = NewStateTracker()
	}
	return &Reassembler{
		config:    config,
		resolver:  NewResolver(config.NewAligner(), config.Workers),
		state:     state,
		publisher: publisher,
		cachePath: cachePath,
	}
}

// OnScanReport is the MessageHandler registered with the MQTT client.
// It is safe to call from any goroutine.
func (ra *Reassembler) OnScanReport(scannerID int, scan Scan, err error) {
	if err != nil {
		log.Printf("[REASSEMBLE] ignoring report for scanner %d: %v", scannerID, err)
		return
	}

	ra.mu.Lock()
	defer ra.mu.Unlock()

	if !ra.state.UpdateScan(scan) {
		log.Printf("[REASSEMBLE] scanner %d: report unchanged, skipping", scannerID)
		return
	}
	ra.resolver.Invalidate(scan.ID)

	if n := ra.state.ScanCount(); n < ra.config.MinScanners {
		log.Printf("[REASSEMBLE] scanner %d stored, waiting for %d scanners (have %d)",
			scannerID, ra.config.MinScanners, n)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultResolveTimeout)
	defer cancel()
	if _, err := ra.rebuild(ctx); err != nil {
		log.Printf("[REASSEMBLE] keeping previous map: %v", err)
	}
}

// Rebuild resolves and assembles the stored scans immediately
func (ra *Reassembler) Rebuild(ctx context.Context) (*BeaconMap, error) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return ra.rebuild(ctx)
}

func (ra *Reassembler) rebuild(ctx context.Context) (*BeaconMap, error) {
	scans := ra.state.GetScans()
	if len(scans) == 0 {
		return nil, ErrNoScans
	}

	res, err := ra.resolver.Resolve(ctx, scans, ra.config.Anchor)
	if err != nil {
		var dg *DisconnectedGraphError
		if errors.As(err, &dg) {
			log.Printf("[REASSEMBLE] scanners %v do not connect to anchor %d yet", dg.Unreachable, dg.Anchor)
		}
		ra.state.SetError(err)
		return nil, err
	}

	m, err := Assemble(scans, res)
	if err != nil {
		ra.state.SetError(err)
		return nil, err
	}
	ra.state.SetBeaconMap(m, res)
	ra.rebuilt++
	log.Printf("[REASSEMBLE] map rebuilt: %d beacons from %d scanners, max distance %d",
		m.BeaconCount(), len(scans), m.MaxOriginDistance())

	if ra.cachePath != "" {
		if err := SaveResolution(ra.cachePath, NewResolutionData(scans, res, m)); err != nil {
			log.Printf("[REASSEMBLE] failed to save resolution cache: %v", err)
		}
	}
	if ra.publisher != nil {
		if err := ra.publisher.PublishBeaconMap(m, res); err != nil {
			log.Printf("[REASSEMBLE] failed to publish map: %v", err)
		}
	}
	return m, nil
}

// PullScans fetches each scanner's report from its source URL and stores the
// ones that changed without rebuilding; call Rebuild afterwards. Scanners
// whose fetch fails are skipped and reported in the returned error.
func (ra *Reassembler) PullScans(ctx context.Context, sources map[int]string, opts ...FetchOption) (int, error) {
	ids := make([]int, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var errs []error
	var stored int
	for _, id := range ids {
		scan, err := FetchScanWithContext(ctx, sources[id], id, opts...)
		if err != nil {
			log.Printf("[REASSEMBLE] pull scanner %d: %v", id, err)
			errs = append(errs, err)
			continue
		}
		ra.mu.Lock()
		if ra.state.UpdateScan(scan) {
			ra.resolver.Invalidate(id)
			stored++
		}
		ra.mu.Unlock()
	}
	return stored, errors.Join(errs...)
}

// Restore installs the map described by a cached resolution without
// realigning. It reports false, leaving the state untouched, when rd is nil,
// was resolved from another anchor, or no longer matches the stored scans.
func (ra *Reassembler) Restore(rd *ResolutionData) bool {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	scans := ra.state.GetScans()
	if rd == nil || rd.Anchor != ra.config.Anchor || rd.NeedsRefresh(scans) {
		return false
	}
	res := rd.Resolution()
	m, err := Assemble(scans, res)
	if err != nil {
		log.Printf("[REASSEMBLE] cached resolution unusable: %v", err)
		return false
	}
	ra.state.SetBeaconMap(m, res)
	log.Printf("[REASSEMBLE] restored map from cache: %d beacons from %d scanners",
		m.BeaconCount(), len(scans))
	return true
}

// PublishCurrent publishes the current map, if any, through the publisher
func (ra *Reassembler) PublishCurrent() error {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	m := ra.state.GetBeaconMap()
	if ra.publisher == nil || m == nil {
		return nil
	}
	return ra.publisher.PublishBeaconMap(m, ra.state.GetResolution())
}

// SetPublisher sets the publisher used after each successful rebuild
func (ra *Reassembler) SetPublisher(p *Publisher) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	ra.publisher = p
}

// Seed stores scans without rebuilding; call Rebuild afterwards
func (ra *Reassembler) Seed(scans []Scan) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	for _, s := range scans {
		if ra.state.UpdateScan(s) {
			ra.resolver.Invalidate(s.ID)
		}
	}
}

// RebuildCount returns how many maps have been assembled successfully
func (ra *Reassembler) RebuildCount() int {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return ra.rebuilt
}

// State returns the state tracker the reassembler writes to
func (ra *Reassembler) State() *StateTracker {
	return ra.state
}
