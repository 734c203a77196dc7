package beacon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstSampleInitializesSmoothed(t *testing.T) {
	tr := NewTracker(0.3)
	r := tr.Observe(Sample{Addr: "AA:BB", RSSI: -60, At: time.Now()})
	assert.Equal(t, -60.0, r.Smoothed)
	assert.Equal(t, 1, r.Samples)
}

func TestIdenticalSamplesAreFixedPoint(t *testing.T) {
	tr := NewTracker(0.3)
	now := time.Now()
	for i := 0; i < 10; i++ {
		r := tr.Observe(Sample{Addr: "AA:BB", RSSI: -60, At: now})
		assert.Equal(t, -60.0, r.Smoothed)
	}
}

func TestEMASmoothing(t *testing.T) {
	tr := NewTracker(0.3)
	now := time.Now()
	tr.Observe(Sample{Addr: "AA:BB", RSSI: -60, At: now})
	r := tr.Observe(Sample{Addr: "AA:BB", RSSI: -70, At: now})
	// 0.3 * -70 + 0.7 * -60 = -63
	assert.InDelta(t, -63.0, r.Smoothed, 1e-9)
	assert.Equal(t, 2, r.Samples)
}

func TestSmoothingConvergesTowardConstant(t *testing.T) {
	tr := NewTracker(0.3)
	now := time.Now()
	tr.Observe(Sample{Addr: "AA:BB", RSSI: -80, At: now})
	var r Reading
	for i := 0; i < 50; i++ {
		r = tr.Observe(Sample{Addr: "AA:BB", RSSI: -55, At: now})
	}
	assert.InDelta(t, -55.0, r.Smoothed, 0.01)
}

func TestEvictRemovesOnlySilentBeacons(t *testing.T) {
	tr := NewTracker(0.3)
	now := time.Now()
	tr.Observe(Sample{Addr: "OLD", RSSI: -60, At: now.Add(-time.Minute)})
	tr.Observe(Sample{Addr: "FRESH", RSSI: -60, At: now})

	evicted := tr.Evict(30 * time.Second)
	assert.Equal(t, 1, evicted)

	snapshot := tr.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "FRESH", snapshot[0].Addr)
}

func TestSnapshotStrongestFirst(t *testing.T) {
	tr := NewTracker(0.3)
	now := time.Now()
	tr.Observe(Sample{Addr: "FAR", RSSI: -85, At: now})
	tr.Observe(Sample{Addr: "NEAR", RSSI: -50, At: now})
	tr.Observe(Sample{Addr: "MID", RSSI: -70, At: now})

	snapshot := tr.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "NEAR", snapshot[0].Addr)
	assert.Equal(t, "MID", snapshot[1].Addr)
	assert.Equal(t, "FAR", snapshot[2].Addr)
}

func TestAddressesTrackedIndependently(t *testing.T) {
	tr := NewTracker(0.5)
	now := time.Now()
	tr.Observe(Sample{Addr: "A", RSSI: -60, At: now})
	tr.Observe(Sample{Addr: "B", RSSI: -80, At: now})
	a := tr.Observe(Sample{Addr: "A", RSSI: -60, At: now})
	assert.Equal(t, -60.0, a.Smoothed, "B's samples must not bleed into A")
	assert.Equal(t, 2, tr.Len())
}
