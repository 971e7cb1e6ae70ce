// Package input provides the key sources the keyer samples: a Linux
// keyboard, a live audio tone, a WAV recording or a replayed keying log.
package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ColonelBlimp/morsekey/internal/audio"
	"github.com/ColonelBlimp/morsekey/internal/config"
	"github.com/ColonelBlimp/morsekey/internal/dsp"
)

var (
	ErrUnknownInput = errors.New("unknown input")
	ErrUnknownKey   = errors.New("unknown key name")
	ErrClosed       = errors.New("input closed")
)

// State is one observation of the key and the commit trigger.
type State struct {
	At     time.Time
	Key    bool
	Commit bool
}

// Source is polled once per keyer tick. Poll must not block for longer than
// one tick. A source that has no more input returns io.EOF.
type Source interface {
	Poll(ctx context.Context) (State, error)
	Close() error
}

// ToneConfig configures tone detection for the audio and wav inputs.
type ToneConfig struct {
	SampleRate float64
	Frequency  float64
	BlockSize  int
	Detector   dsp.DetectorConfig
}

// ToneConfigFrom extracts the tone settings.
func ToneConfigFrom(s *config.Settings) ToneConfig {
	return ToneConfig{
		SampleRate: s.SampleRate,
		Frequency:  s.ToneFrequency,
		BlockSize:  s.BlockSize,
		Detector: dsp.DetectorConfig{
			Threshold:       s.Threshold,
			Hysteresis:      s.Hysteresis,
			OverlapPct:      s.OverlapPct,
			AGCEnabled:      s.AGCEnabled,
			AGCDecay:        s.AGCDecay,
			AGCAttack:       s.AGCAttack,
			AGCWarmupBlocks: s.AGCWarmupBlocks,
		},
	}
}

// NewToneDetector builds a detector for cfg.
func NewToneDetector(cfg ToneConfig) (*dsp.Detector, error) {
	g, err := dsp.NewGoertzel(dsp.GoertzelConfig{
		TargetFrequency: cfg.Frequency,
		SampleRate:      cfg.SampleRate,
		BlockSize:       cfg.BlockSize,
	})
	if err != nil {
		return nil, fmt.Errorf("tone filter: %w", err)
	}
	d, err := dsp.NewDetector(cfg.Detector, g)
	if err != nil {
		return nil, fmt.Errorf("tone detector: %w", err)
	}
	return d, nil
}

// Open creates the source selected by s.Input. commits receives one line
// per commit for inputs that have no commit key; it may be nil.
func Open(ctx context.Context, s *config.Settings, commits io.Reader) (Source, error) {
	switch s.Input {
	case config.InputKeyboard:
		return NewEvdev(s.KeyboardDevice, s.Key, s.CommitKey)
	case config.InputAudio:
		dev := audio.DefaultConfig()
		dev.DeviceIndex = s.DeviceIndex
		dev.SampleRate = uint32(s.SampleRate)
		dev.BufferSize = uint32(s.BlockSize)
		return NewAudio(ctx, dev, ToneConfigFrom(s), commits)
	case config.InputWAV:
		return NewWAV(s.InputPath, ToneConfigFrom(s))
	case config.InputReplay:
		return NewReplay(s.InputPath, s.Timing().WordGap)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownInput, s.Input)
}
