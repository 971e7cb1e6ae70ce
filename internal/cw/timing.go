package cw

import (
	"errors"
	"time"
)

// Morse code timing ratios (ITU standard)
const (
	// DahDitRatio is the ratio of dah duration to dit duration (ITU: 3:1)
	DahDitRatio = 3.0
	// InterCharSpaceRatio is the ratio of space between characters to dit (ITU: 3:1)
	InterCharSpaceRatio = 3
	// WordSpaceRatio is the ratio of space between words to dit (ITU: 7:1)
	WordSpaceRatio = 7

	// DitsPerWord is the standard word "PARIS" = 50 dit units
	DitsPerWord = 50.0
)

// DefaultDitLength is the dit length used when none is configured.
const DefaultDitLength = 200 * time.Millisecond

var (
	// ErrInvalidDitLength indicates the dit length must be positive
	ErrInvalidDitLength = errors.New("dit length must be positive")
	// ErrInvalidGapOrder indicates the word gap must be longer than the char gap
	ErrInvalidGapOrder = errors.New("word gap must be longer than char gap")
)

// Timing holds the three thresholds used by the Classifier.
type Timing struct {
	// DitLength separates dits from dahs: shorter marks are dits.
	DitLength time.Duration
	// CharGap is the pause after which a character ends.
	CharGap time.Duration
	// WordGap is the pause after which a word ends.
	WordGap time.Duration
}

// NewTiming returns ITU timing for the given dit length. A zero charGap or
// wordGap defaults to 3 or 7 dit lengths.
func NewTiming(ditLength, charGap, wordGap time.Duration) Timing {
	if charGap == 0 {
		charGap = InterCharSpaceRatio * ditLength
	}
	if wordGap == 0 {
		wordGap = WordSpaceRatio * ditLength
	}
	return Timing{DitLength: ditLength, CharGap: charGap, WordGap: wordGap}
}

// Validate reports timing that would make gap classification ambiguous.
// The Classifier itself never calls it.
func (t Timing) Validate() error {
	if t.DitLength <= 0 {
		return ErrInvalidDitLength
	}
	if t.WordGap <= t.CharGap {
		return ErrInvalidGapOrder
	}
	return nil
}

// WPM returns the nominal speed of the timing, using the PARIS standard.
func (t Timing) WPM() int {
	return wpmFromDit(float64(t.DitLength))
}

// DitLengthForWPM returns the PARIS dit length for a speed in words per minute.
func DitLengthForWPM(wpm int) time.Duration {
	if wpm <= 0 {
		return 0
	}
	return time.Duration(float64(time.Minute) / (float64(wpm) * DitsPerWord))
}

func wpmFromDit(ditNs float64) int {
	if ditNs <= 0 {
		return 0
	}
	wpm := float64(time.Minute) / (ditNs * DitsPerWord)
	return int(wpm + 0.5) // Round to nearest
}
