package cw

import "time"

// Classifier turns periodic samples of a key into Morse tokens.
//
// Sample must be called on every clock tick, not only on key transitions,
// because gaps are detected from elapsed idle time. A Classifier is not safe
// for concurrent use; the sampling loop owns it.
type Classifier struct {
	timing Timing

	pressed    bool
	pressStart time.Time

	releasing    bool
	releaseStart time.Time

	charGapEmitted bool
	lastMark       time.Duration
}

// NewClassifier creates a classifier with the given timing. The timing is
// used as given; see Timing.Validate.
func NewClassifier(timing Timing) *Classifier {
	return &Classifier{timing: timing}
}

// Timing returns the thresholds in use.
func (c *Classifier) Timing() Timing {
	return c.timing
}

// SetTiming replaces the thresholds and resets the classifier.
func (c *Classifier) SetTiming(timing Timing) {
	c.timing = timing
	c.Reset()
}

// Sample observes the key state at time now and returns at most one token.
//
// A mark shorter than DitLength is a dit; equal or longer is a dah. A pause
// only counts as a gap once it is strictly longer than the threshold. When a
// pause has passed both thresholds the word gap wins and ends gap tracking
// for the pause; a char gap is emitted at most once per pause and leaves the
// word gap free to fire later.
func (c *Classifier) Sample(pressed bool, now time.Time) (Token, bool) {
	switch {
	case pressed && !c.pressed:
		c.pressed = true
		c.pressStart = now
		c.releasing = false
		c.charGapEmitted = false
		return 0, false

	case !pressed && c.pressed:
		c.pressed = false
		c.lastMark = now.Sub(c.pressStart)
		c.releasing = true
		c.releaseStart = now
		if c.lastMark < c.timing.DitLength {
			return Dit, true
		}
		return Dah, true

	case pressed:
		return 0, false
	}

	if !c.releasing {
		return 0, false
	}
	idle := now.Sub(c.releaseStart)
	if idle > c.timing.WordGap {
		c.releasing = false
		return WordGap, true
	}
	if idle > c.timing.CharGap && !c.charGapEmitted {
		c.charGapEmitted = true
		return CharGap, true
	}
	return 0, false
}

// Close ends the transmission at now. It returns the tokens still owed: the
// mark if the key is held, then a char gap if the last character has not
// been ended yet. Afterwards no gap is emitted until the next mark.
func (c *Classifier) Close(now time.Time) []Token {
	var tokens []Token
	if tok, ok := c.Sample(false, now); ok {
		tokens = append(tokens, tok)
	}
	if c.releasing && !c.charGapEmitted {
		c.charGapEmitted = true
		tokens = append(tokens, CharGap)
	}
	c.releasing = false
	return tokens
}

// Pressed reports whether the last sample saw the key down.
func (c *Classifier) Pressed() bool {
	return c.pressed
}

// LastMark returns the duration of the most recent mark.
func (c *Classifier) LastMark() time.Duration {
	return c.lastMark
}

// Reset clears all state, as at the start of a session.
func (c *Classifier) Reset() {
	c.pressed = false
	c.pressStart = time.Time{}
	c.releasing = false
	c.releaseStart = time.Time{}
	c.charGapEmitted = false
	c.lastMark = 0
}
