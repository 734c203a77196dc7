package beacon

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"
)

// mockBeacon is a fake Find My accessory that wanders toward and away from
// the door on a slow sinusoid with multipath-style noise on top.
type mockBeacon struct {
	addr      string
	baseRSSI  float64
	swing     float64 // dBm amplitude of the wander
	phase     float64
	period    float64 // seconds per approach/retreat cycle
	dropRate  float64 // chance per emit of a missed advertisement
}

// MockSource emits synthetic beacon samples for demo mode and the scan tool.
type MockSource struct {
	samples chan Sample
	beacons []mockBeacon
	healthy atomic.Bool
}

// NewMockSource creates a source with n fake beacons.
func NewMockSource(n int) *MockSource {
	if n < 1 {
		n = 1
	}
	beacons := make([]mockBeacon, n)
	for i := range beacons {
		beacons[i] = mockBeacon{
			addr:     randomAddr(),
			baseRSSI: -55 - rand.Float64()*15, // -55 to -70 dBm midpoint
			swing:    10 + rand.Float64()*10,  // crosses the threshold both ways
			phase:    rand.Float64() * 2 * math.Pi,
			period:   45 + rand.Float64()*60,
			dropRate: 0.1,
		}
	}
	return &MockSource{
		samples: make(chan Sample, sampleBuffer),
		beacons: beacons,
	}
}

// Samples implements Source.
func (m *MockSource) Samples() <-chan Sample { return m.samples }

// Healthy implements Source.
func (m *MockSource) Healthy() bool { return m.healthy.Load() }

// Run emits samples until ctx is cancelled.
func (m *MockSource) Run(ctx context.Context) error {
	m.healthy.Store(true)
	defer m.healthy.Store(false)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.emit(now, now.Sub(start).Seconds())
		}
	}
}

func (m *MockSource) emit(now time.Time, t float64) {
	for i := range m.beacons {
		b := &m.beacons[i]
		if rand.Float64() < b.dropRate {
			continue
		}
		rssi := b.baseRSSI + b.swing*math.Sin(2*math.Pi*t/b.period+b.phase) + (rand.Float64()-0.5)*6
		select {
		case m.samples <- Sample{Addr: b.addr, RSSI: int16(rssi), At: now}:
		default:
		}
	}
}

func randomAddr() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	// Locally administered random static address, like a real AirTag.
	b[0] |= 0xC0
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}
