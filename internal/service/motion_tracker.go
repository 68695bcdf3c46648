package service

import (
	"math"

	"github.com/driveguard/backend/internal/domain"
	"github.com/driveguard/backend/pkg/geo"
)

const (
	// speedWindowSize is the fixed sliding window over instantaneous speeds.
	speedWindowSize = 5

	// movingSpeedThresholdKmh separates real movement from GPS jitter.
	movingSpeedThresholdKmh = 5.0

	// sustainedMovementSamples is how many consecutive moving samples are
	// required before movement counts as sustained. Exit is instant.
	sustainedMovementSamples = 3
)

// MotionTracker converts a stream of raw position samples into smoothed
// speed/heading and a debounced sustained-movement flag. It is not safe for
// concurrent use; the safety engine serializes all updates.
type MotionTracker struct {
	prevSample   *domain.PositionSample
	speedSamples []float64
	heading      *float64

	consecutiveMoving int
	state             domain.MotionState
}

// NewMotionTracker creates a new motion tracker
func NewMotionTracker() *MotionTracker {
	return &MotionTracker{
		speedSamples: make([]float64, 0, speedWindowSize),
	}
}

// Update processes one position sample and returns the new motion state.
// Missing or malformed fields degrade to "unknown" rather than failing.
func (t *MotionTracker) Update(sample domain.PositionSample) domain.MotionState {
	instantSpeed := t.instantSpeedKmh(sample)
	t.updateHeading(sample)

	t.speedSamples = append(t.speedSamples, instantSpeed)
	if len(t.speedSamples) > speedWindowSize {
		t.speedSamples = t.speedSamples[1:]
	}

	var sum float64
	for _, s := range t.speedSamples {
		sum += s
	}
	smoothed := sum / float64(len(t.speedSamples))

	moving := smoothed > movingSpeedThresholdKmh
	if moving {
		t.consecutiveMoving++
	} else {
		t.consecutiveMoving = 0
	}

	t.state = domain.MotionState{
		SmoothedSpeedKmh:    smoothed,
		HeadingDeg:          t.heading,
		IsInstantMoving:     moving,
		IsSustainedMovement: t.consecutiveMoving >= sustainedMovementSamples,
	}

	t.prevSample = &sample
	return t.state
}

// SetHeading applies a device-orientation heading. It has equal priority
// with sample-derived headings: whichever arrived last wins.
func (t *MotionTracker) SetHeading(headingDeg float64) domain.MotionState {
	if math.IsNaN(headingDeg) {
		return t.state
	}
	normalized := math.Mod(headingDeg+360, 360)
	t.heading = &normalized
	t.state.HeadingDeg = t.heading
	return t.state
}

// State returns the most recent motion state.
func (t *MotionTracker) State() domain.MotionState {
	return t.state
}

// instantSpeedKmh prefers the device-reported speed (m/s) and falls back to
// the distance covered since the previous sample. The first sample ever is 0.
func (t *MotionTracker) instantSpeedKmh(sample domain.PositionSample) float64 {
	if sample.ReportedSpeed != nil && !math.IsNaN(*sample.ReportedSpeed) {
		return *sample.ReportedSpeed * 3.6
	}

	if t.prevSample == nil {
		return 0
	}

	elapsedSec := float64(sample.TimestampMs-t.prevSample.TimestampMs) / 1000
	if elapsedSec <= 0 {
		return 0
	}

	distKm := geo.DistanceKm(
		t.prevSample.Latitude, t.prevSample.Longitude,
		sample.Latitude, sample.Longitude,
	)
	return distKm / elapsedSec * 3600
}

// updateHeading prefers the sample's reported heading, then a bearing derived
// from the previous position. A known heading is never reset to unknown.
func (t *MotionTracker) updateHeading(sample domain.PositionSample) {
	if sample.ReportedHeading != nil && !math.IsNaN(*sample.ReportedHeading) {
		h := math.Mod(*sample.ReportedHeading+360, 360)
		t.heading = &h
		return
	}

	if t.prevSample == nil {
		return
	}
	if t.prevSample.Latitude == sample.Latitude && t.prevSample.Longitude == sample.Longitude {
		return
	}

	derived := geo.BearingDeg(
		t.prevSample.Latitude, t.prevSample.Longitude,
		sample.Latitude, sample.Longitude,
	)
	t.heading = &derived
}
