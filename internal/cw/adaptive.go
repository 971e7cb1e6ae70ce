package cw

import (
	"errors"
	"time"
)

// DefaultSpeedSmoothing is the weight given to new marks in the dit estimate.
const DefaultSpeedSmoothing = 0.1

// ErrInvalidSpeedSmoothing indicates smoothing factor must be in (0, 1]
var ErrInvalidSpeedSmoothing = errors.New("speed smoothing must be in (0, 1]")

// SpeedTracker estimates the sender's speed from observed marks.
//
// The estimate is informational: it never changes the thresholds of a
// Classifier. Not safe for concurrent use.
type SpeedTracker struct {
	initial   float64 // seeded dit length in nanoseconds
	ditNs     float64
	smoothing float64
	marks     int
}

// NewSpeedTracker seeds the estimate from a dit length.
func NewSpeedTracker(ditLength time.Duration, smoothing float64) (*SpeedTracker, error) {
	if ditLength <= 0 {
		return nil, ErrInvalidDitLength
	}
	if smoothing <= 0 || smoothing > 1 {
		return nil, ErrInvalidSpeedSmoothing
	}
	return &SpeedTracker{
		initial:   float64(ditLength),
		ditNs:     float64(ditLength),
		smoothing: smoothing,
	}, nil
}

// Observe folds a mark into the estimate. Gap tokens are ignored.
func (s *SpeedTracker) Observe(t Token, mark time.Duration) {
	if !t.IsMark() || mark <= 0 {
		return
	}
	estimatedDit := float64(mark)
	if t == Dah {
		estimatedDit /= DahDitRatio
	}
	s.ditNs = (1-s.smoothing)*s.ditNs + s.smoothing*estimatedDit
	s.marks++
}

// DitLength returns the current dit estimate.
func (s *SpeedTracker) DitLength() time.Duration {
	return time.Duration(s.ditNs)
}

// WPM returns the current speed estimate in words per minute.
func (s *SpeedTracker) WPM() int {
	return wpmFromDit(s.ditNs)
}

// Marks returns how many marks have been observed since the last reset.
func (s *SpeedTracker) Marks() int {
	return s.marks
}

// Reset restores the seeded estimate.
func (s *SpeedTracker) Reset() {
	s.ditNs = s.initial
	s.marks = 0
}
