// internal/dsp/goertzel.go
// Package dsp detects a keyed CW tone in audio samples.
package dsp

import (
	"errors"
	"math"
)

// Configuration and input errors.
var (
	ErrInvalidBlockSize    = errors.New("dsp: block size must be positive")
	ErrInvalidSampleRate   = errors.New("dsp: sample rate must be positive")
	ErrInvalidFrequency    = errors.New("dsp: tone frequency must lie between 0 Hz and the Nyquist frequency")
	ErrInsufficientSamples = errors.New("dsp: fewer samples than one block")
)

// GoertzelConfig selects the tone bin. All fields come from the audio
// settings of the same name.
type GoertzelConfig struct {
	TargetFrequency float64 // Hz
	SampleRate      float64 // Hz
	BlockSize       int     // samples per measurement
}

// Goertzel measures the magnitude of a single frequency over a block of samples.
type Goertzel struct {
	config      GoertzelConfig
	coefficient float64 // 2 * cos(omega)
	normalizer  float64 // 2 / blockSize, so a full-scale sine measures ~1.0
}

// NewGoertzel creates a filter for the configured frequency.
func NewGoertzel(cfg GoertzelConfig) (*Goertzel, error) {
	if cfg.BlockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.TargetFrequency <= 0 || cfg.TargetFrequency >= cfg.SampleRate/2 {
		return nil, ErrInvalidFrequency
	}

	omega := 2.0 * math.Pi * cfg.TargetFrequency / cfg.SampleRate
	return &Goertzel{
		config:      cfg,
		coefficient: 2.0 * math.Cos(omega),
		normalizer:  2.0 / float64(cfg.BlockSize),
	}, nil
}

// Magnitude returns the tone magnitude in the first BlockSize samples.
func (g *Goertzel) Magnitude(samples []float32) (float64, error) {
	if len(samples) < g.config.BlockSize {
		return 0, ErrInsufficientSamples
	}
	return g.magnitude(samples[:g.config.BlockSize]), nil
}

func (g *Goertzel) magnitude(block []float32) float64 {
	var s1, s2 float64
	for _, x := range block {
		s0 := float64(x) + g.coefficient*s1 - s2
		s2, s1 = s1, s0
	}

	power := s1*s1 + s2*s2 - g.coefficient*s1*s2
	if power < 0 {
		// rounding
		power = 0
	}
	return math.Sqrt(power) * g.normalizer
}

func (g *Goertzel) BlockSize() int      { return g.config.BlockSize }
func (g *Goertzel) SampleRate() float64 { return g.config.SampleRate }
