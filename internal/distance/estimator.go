// Package distance converts smoothed RSSI into an estimated range in feet
// using the log-distance path-loss model. The model assumes free-space-ish
// propagation; walls, bodies and dog fur all bend it, so estimates are an
// approximation, not ranging.
package distance

import (
	"math"

	"doggydoor/internal/beacon"
)

// Confidence classifies an estimate by how many samples back it.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

const (
	mediumSampleCount = 3
	highSampleCount   = 10

	// minDistanceFeet floors estimates; an RSSI stronger than the
	// calibration point still means "at the door", not a negative range.
	minDistanceFeet = 0.1
)

// Estimate is a per-beacon distance reading.
type Estimate struct {
	Addr       string
	Feet       float64
	Confidence Confidence
}

// Estimator converts RSSI to feet using calibration parameters obtained
// from the calibrate subcommand.
type Estimator struct {
	rssiAtCalibration float64
	calibrationFeet   float64
	pathLossExponent  float64
}

// NewEstimator creates an estimator. rssiAtCalibration is the measured dBm
// at calibrationFeet; n is the environment's path-loss exponent.
func NewEstimator(rssiAtCalibration int, calibrationFeet, n float64) Estimator {
	return Estimator{
		rssiAtCalibration: float64(rssiAtCalibration),
		calibrationFeet:   calibrationFeet,
		pathLossExponent:  n,
	}
}

// DistanceFeet applies the log-distance path-loss model:
//
//	d = d_cal * 10^((rssi_cal - rssi) / (10 * n))
//
// Monotonic: a stronger (less negative) RSSI always yields a smaller
// distance.
func (e Estimator) DistanceFeet(rssi float64) float64 {
	if rssi >= 0 {
		return minDistanceFeet
	}
	d := e.calibrationFeet * math.Pow(10, (e.rssiAtCalibration-rssi)/(10*e.pathLossExponent))
	if d < minDistanceFeet {
		return minDistanceFeet
	}
	return d
}

// RSSIAt inverts the model, returning the expected dBm at a distance.
// Used for logging and diagnostics only.
func (e Estimator) RSSIAt(feet float64) float64 {
	if feet < minDistanceFeet {
		feet = minDistanceFeet
	}
	return e.rssiAtCalibration - 10*e.pathLossExponent*math.Log10(feet/e.calibrationFeet)
}

// Estimate converts a smoothed reading into a distance estimate.
func (e Estimator) Estimate(r beacon.Reading) Estimate {
	conf := ConfidenceLow
	switch {
	case r.Samples >= highSampleCount:
		conf = ConfidenceHigh
	case r.Samples >= mediumSampleCount:
		conf = ConfidenceMedium
	}
	return Estimate{
		Addr:       r.Addr,
		Feet:       e.DistanceFeet(r.Smoothed),
		Confidence: conf,
	}
}

// Min returns the smallest distance across estimates, or +Inf when none are
// visible. Any beacon close enough should unlock, so the nearest governs.
func Min(estimates []Estimate) float64 {
	min := math.Inf(1)
	for _, est := range estimates {
		if est.Feet < min {
			min = est.Feet
		}
	}
	return min
}
