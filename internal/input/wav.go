package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/youpy/go-wav"

	"github.com/ColonelBlimp/morsekey/internal/dsp"
)

var ErrUnsupportedWAV = errors.New("unsupported wav format")

// riffReader is what wav.NewReader needs.
type riffReader interface {
	io.Reader
	io.ReaderAt
}

// WAV keys on a tone recorded in a 16-bit PCM WAV file. Its clock runs at audio
// speed, not wall speed: every poll consumes one detector hop and advances
// the clock by the hop's duration.
type WAV struct {
	reader   *wav.Reader
	closer   io.Closer
	detector *dsp.Detector

	hop      int
	scale    float64
	channels int
	rate     time.Duration
	buf      []float32

	clock time.Time
	eof   bool
}

// NewWAV opens a WAV file. The file's sample rate overrides tone.SampleRate.
func NewWAV(path string, tone ToneConfig) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	w, err := newWAV(f, tone)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	w.closer = f
	return w, nil
}

func newWAV(r riffReader, tone ToneConfig) (*WAV, error) {
	reader := wav.NewReader(r)
	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("read wav header: %w", err)
	}
	if format.AudioFormat != wav.AudioFormatPCM {
		return nil, fmt.Errorf("%w: audio format %d, want PCM", ErrUnsupportedWAV, format.AudioFormat)
	}
	if format.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d bits per sample, want 16", ErrUnsupportedWAV, format.BitsPerSample)
	}
	if format.NumChannels < 1 || format.NumChannels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedWAV, format.NumChannels)
	}

	tone.SampleRate = float64(format.SampleRate)
	detector, err := NewToneDetector(tone)
	if err != nil {
		return nil, err
	}

	return &WAV{
		reader:   reader,
		detector: detector,
		hop:      detector.HopSize(),
		scale:    math.MaxInt16 + 1,
		channels: int(format.NumChannels),
		rate:     time.Duration(format.SampleRate),
		buf:      make([]float32, 0, detector.HopSize()),
		clock:    time.Now(),
	}, nil
}

// Poll feeds the next hop of audio to the detector.
func (w *WAV) Poll(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	if w.eof {
		return State{}, io.EOF
	}

	samples, err := w.reader.ReadSamples(uint32(w.hop))
	if err != nil && !errors.Is(err, io.EOF) {
		return State{}, fmt.Errorf("read wav: %w", err)
	}
	if len(samples) == 0 {
		w.eof = true
		return State{}, io.EOF
	}

	w.buf = w.buf[:0]
	for _, s := range samples {
		v := s.Values[0]
		if w.channels == 2 {
			v = (v + s.Values[1]) / 2
		}
		w.buf = append(w.buf, float32(float64(v)/w.scale))
	}
	w.detector.Process(w.buf)
	w.clock = w.clock.Add(time.Duration(len(samples)) * time.Second / w.rate)

	return State{At: w.clock, Key: w.detector.Keyed()}, nil
}

// Close closes the file.
func (w *WAV) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
