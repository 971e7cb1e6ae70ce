// internal/dsp/detector.go
package dsp

import (
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrInvalidThreshold indicates threshold must be between 0 and 1
	ErrInvalidThreshold = errors.New("threshold must be between 0.0 and 1.0")
	// ErrInvalidHysteresis indicates hysteresis must be at least one block
	ErrInvalidHysteresis = errors.New("hysteresis must be at least 1")
	// ErrInvalidOverlap indicates overlap percentage must be 0-99
	ErrInvalidOverlap = errors.New("overlap percentage must be between 0 and 99")
	// ErrInvalidAGCDecay indicates AGC decay must be between 0 and 1
	ErrInvalidAGCDecay = errors.New("agc decay must be between 0.0 and 1.0")
	// ErrInvalidAGCAttack indicates AGC attack must be between 0 and 1
	ErrInvalidAGCAttack = errors.New("agc attack must be between 0.0 and 1.0")
	// ErrInvalidAGCWarmup indicates AGC warmup blocks must be non-negative
	ErrInvalidAGCWarmup = errors.New("agc warmup blocks must be non-negative")
	// ErrGoertzelRequired indicates Goertzel instance is required
	ErrGoertzelRequired = errors.New("goertzel instance is required")
)

// agcFloor keeps the AGC peak away from zero.
const agcFloor = 0.001

// DetectorConfig holds configuration for the tone detector.
type DetectorConfig struct {
	// Threshold for tone detection (0.0-1.0) (from config: threshold)
	Threshold float64
	// Hysteresis is consecutive blocks required to confirm a key change (from config: hysteresis)
	Hysteresis int
	// OverlapPct is the block overlap percentage 0-99 (from config: overlap_pct)
	OverlapPct int
	// AGCEnabled enables automatic gain control (from config: agc_enabled)
	AGCEnabled bool
	// AGCDecay is the peak decay per block (from config: agc_decay)
	AGCDecay float64
	// AGCAttack is how fast the peak follows louder signals (from config: agc_attack)
	AGCAttack float64
	// AGCWarmupBlocks are processed for calibration only (from config: agc_warmup_blocks)
	AGCWarmupBlocks int
}

// Detector reports whether a tone is keyed. Process runs on the audio
// goroutine; Keyed may be read from any goroutine.
type Detector struct {
	config   DetectorConfig
	goertzel *Goertzel

	blockSize int
	hopSize   int
	buffer    []float32

	agcPeak float64
	warmup  int

	pending bool
	count   int

	keyed  atomic.Bool
	blocks atomic.Uint64
}

// NewDetector creates a tone detector.
func NewDetector(cfg DetectorConfig, goertzel *Goertzel) (*Detector, error) {
	if goertzel == nil {
		return nil, ErrGoertzelRequired
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, ErrInvalidThreshold
	}
	if cfg.Hysteresis < 1 {
		return nil, ErrInvalidHysteresis
	}
	if cfg.OverlapPct < 0 || cfg.OverlapPct >= 100 {
		return nil, ErrInvalidOverlap
	}
	if cfg.AGCDecay < 0 || cfg.AGCDecay > 1 {
		return nil, ErrInvalidAGCDecay
	}
	if cfg.AGCAttack < 0 || cfg.AGCAttack > 1 {
		return nil, ErrInvalidAGCAttack
	}
	if cfg.AGCWarmupBlocks < 0 {
		return nil, ErrInvalidAGCWarmup
	}

	blockSize := goertzel.BlockSize()
	return &Detector{
		config:    cfg,
		goertzel:  goertzel,
		blockSize: blockSize,
		hopSize:   blockSize - blockSize*cfg.OverlapPct/100,
		buffer:    make([]float32, 0, 2*blockSize),
		agcPeak:   1.0,
	}, nil
}

// Process consumes samples normalized to -1.0..1.0.
func (d *Detector) Process(samples []float32) {
	d.buffer = append(d.buffer, samples...)
	for len(d.buffer) >= d.blockSize {
		d.processBlock(d.buffer[:d.blockSize])
		n := copy(d.buffer, d.buffer[d.hopSize:])
		d.buffer = d.buffer[:n]
	}
}

func (d *Detector) processBlock(block []float32) {
	d.blocks.Add(1)
	magnitude := d.goertzel.magnitude(block)

	if d.warmup < d.config.AGCWarmupBlocks {
		d.warmup++
		if d.config.AGCEnabled && magnitude > agcFloor && (d.warmup == 1 || magnitude > d.agcPeak) {
			d.agcPeak = magnitude
		}
		return
	}

	if d.config.AGCEnabled {
		magnitude = d.applyAGC(magnitude)
	}
	d.debounce(magnitude > d.config.Threshold)
}

func (d *Detector) applyAGC(magnitude float64) float64 {
	if magnitude > d.agcPeak {
		d.agcPeak += d.config.AGCAttack * (magnitude - d.agcPeak)
	} else {
		d.agcPeak *= d.config.AGCDecay
	}
	if d.agcPeak < agcFloor {
		d.agcPeak = agcFloor
	}
	return min(magnitude/d.agcPeak, 1.0)
}

// debounce confirms a change only after Hysteresis consecutive blocks agree.
func (d *Detector) debounce(tone bool) {
	if tone == d.keyed.Load() {
		d.pending = tone
		d.count = 0
		return
	}
	if tone == d.pending {
		d.count++
	} else {
		d.pending = tone
		d.count = 1
	}
	if d.count >= d.config.Hysteresis {
		d.keyed.Store(tone)
		d.count = 0
	}
}

// Keyed reports the confirmed tone state.
func (d *Detector) Keyed() bool {
	return d.keyed.Load()
}

// Blocks returns the number of blocks analysed so far.
func (d *Detector) Blocks() uint64 {
	return d.blocks.Load()
}

// HopSize returns the number of new samples each block advances by.
func (d *Detector) HopSize() int {
	return d.hopSize
}

// HopDuration returns the audio time each block advances by.
func (d *Detector) HopDuration() time.Duration {
	return time.Duration(float64(d.hopSize) / d.goertzel.SampleRate() * float64(time.Second))
}

// Reset returns the detector to its initial state.
func (d *Detector) Reset() {
	d.buffer = d.buffer[:0]
	d.agcPeak = 1.0
	d.warmup = 0
	d.pending = false
	d.count = 0
	d.keyed.Store(false)
	d.blocks.Store(0)
}
