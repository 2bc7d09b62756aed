package mesh

import (
	"sync"
	"time"
)

// StateTracker holds the latest scans and assembled beacon map for the HTTP
// endpoints and the reassembler. All methods are safe for concurrent use.
type StateTracker struct {
	mu          sync.RWMutex
	scans       map[int]Scan
	beaconMap   *BeaconMap
	resolution  *Resolution
	lastUpdated time.Time
	lastError   string
}

// NewStateTracker creates an empty state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{
		scans: make(map[int]Scan),
	}
}

// UpdateScan stores the latest report for a scanner. It returns false when
// the stored scan is already identical.
func (st *StateTracker) UpdateScan(s Scan) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if prev, ok := st.scans[s.ID]; ok && prev.Equal(s) {
		return false
	}
	st.scans[s.ID] = s
	return true
}

// GetScan returns the stored scan for a scanner
func (st *StateTracker) GetScan(id int) (Scan, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.scans[id]
	return s, ok
}

// GetScans returns all stored scans ordered by id
func (st *StateTracker) GetScans() []Scan {
	st.mu.RLock()
	defer st.mu.RUnlock()

	result := make([]Scan, 0, len(st.scans))
	for _, s := range st.scans {
		result = append(result, s)
	}
	return SortScans(result)
}

// ScanCount returns the number of stored scans
func (st *StateTracker) ScanCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.scans)
}

// HasScans returns true if at least one scan is stored
func (st *StateTracker) HasScans() bool {
	return st.ScanCount() > 0
}

// SetBeaconMap stores a freshly assembled map and the resolution it came from
func (st *StateTracker) SetBeaconMap(m *BeaconMap, res *Resolution) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.beaconMap = m
	st.resolution = res
	st.lastUpdated = time.Now()
	st.lastError = ""
}

// GetBeaconMap returns the latest assembled map, or nil if none exists
func (st *StateTracker) GetBeaconMap() *BeaconMap {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.beaconMap
}

// GetResolution returns the resolution behind the latest map, or nil
func (st *StateTracker) GetResolution() *Resolution {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.resolution
}

// SetError records the most recent resolution failure. The previous beacon
// map is kept.
func (st *StateTracker) SetError(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err == nil {
		st.lastError = ""
		return
	}
	st.lastError = err.Error()
}

// LastError returns the most recent resolution failure, or ""
func (st *StateTracker) LastError() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.lastError
}

// LastUpdated returns when the beacon map was last replaced
func (st *StateTracker) LastUpdated() time.Time {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.lastUpdated
}
