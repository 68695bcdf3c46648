package domain

// PositionSample is one raw fix from the positioning device. ReportedSpeed
// (m/s), ReportedHeading and Accuracy are optional; nil means the device did
// not provide them. Samples are immutable once created.
type PositionSample struct {
	Latitude        float64  `json:"lat"`
	Longitude       float64  `json:"lon"`
	TimestampMs     int64    `json:"timestamp_ms"`
	ReportedSpeed   *float64 `json:"speed,omitempty"`
	ReportedHeading *float64 `json:"heading,omitempty"`
	Accuracy        *float64 `json:"accuracy,omitempty"`
}

// MotionState is the smoothed motion picture owned by the motion tracker.
// HeadingDeg is nil until a heading is known from any source; once known it
// is never reset. IsSustainedMovement distinguishes real driving from GPS
// jitter: it turns true only after three consecutive moving samples and
// falls back to false on the first non-moving one.
type MotionState struct {
	SmoothedSpeedKmh    float64  `json:"smoothed_speed_kmh"`
	HeadingDeg          *float64 `json:"heading_deg,omitempty"`
	IsInstantMoving     bool     `json:"is_instant_moving"`
	IsSustainedMovement bool     `json:"is_sustained_movement"`
}

// Heading returns the heading value and whether one is known.
func (m MotionState) Heading() (float64, bool) {
	if m.HeadingDeg == nil {
		return 0, false
	}
	return *m.HeadingDeg, true
}
