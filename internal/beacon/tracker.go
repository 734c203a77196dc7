package beacon

import (
	"sort"
	"sync"
	"time"
)

// Reading is the smoothed view of one currently-visible beacon.
type Reading struct {
	Addr     string
	Smoothed float64 // EMA of RSSI in dBm
	Samples  int     // advertisements folded into Smoothed
	LastSeen time.Time
}

// Tracker maintains one smoothed reading per visible beacon address.
// Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	alpha   float64
	beacons map[string]*Reading
}

// NewTracker creates a tracker with the given EMA smoothing factor.
// alpha is the weight of the newest sample (e.g. 0.3 = 30% new, 70% old).
func NewTracker(alpha float64) *Tracker {
	return &Tracker{
		alpha:   alpha,
		beacons: make(map[string]*Reading),
	}
}

// Observe folds a sample into the reading for its address and returns the
// updated reading. The first sample for an address initializes the EMA
// directly, no priming period.
func (t *Tracker) Observe(s Sample) Reading {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.beacons[s.Addr]
	if !ok {
		r = &Reading{Addr: s.Addr, Smoothed: float64(s.RSSI)}
		t.beacons[s.Addr] = r
	} else {
		r.Smoothed = t.alpha*float64(s.RSSI) + (1-t.alpha)*r.Smoothed
	}
	r.Samples++
	r.LastSeen = s.At
	return *r
}

// Evict removes beacons not seen within the window and returns how many
// were removed. This is how a beacon that simply stopped advertising is
// detected as gone, even without a low-RSSI sample.
func (t *Tracker) Evict(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-window)
	count := 0
	for addr, r := range t.beacons {
		if r.LastSeen.Before(cutoff) {
			delete(t.beacons, addr)
			count++
		}
	}
	return count
}

// Snapshot returns a copy of all readings, strongest signal first.
func (t *Tracker) Snapshot() []Reading {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Reading, 0, len(t.beacons))
	for _, r := range t.beacons {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Smoothed > result[j].Smoothed // less negative first
	})
	return result
}

// Len returns the number of tracked beacons.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.beacons)
}
