// Package beacon detects Apple Find My accessories from BLE advertisements
// and tracks their smoothed signal strength per address.
//
// AirTags rotate their MAC address for privacy, so no attempt is made to pin
// a specific accessory: anything carrying the Find My advertisement signature
// is tracked, and a rotated address simply starts a fresh entry.
package beacon

import "time"

// Sample is one Find My advertisement observation. Ephemeral, never persisted.
type Sample struct {
	Addr string
	RSSI int16 // dBm
	At   time.Time
}

// Source is a feed of beacon samples. Implemented by Scanner (real radio)
// and MockSource (demo mode).
type Source interface {
	// Samples returns the bounded sample channel. Samples for one address
	// arrive in time order; there is no ordering across addresses.
	Samples() <-chan Sample
	// Healthy reports whether the source is currently delivering samples.
	// A scanner mid-restart reports false.
	Healthy() bool
}
