package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/morsekey/internal/audio"
	"github.com/ColonelBlimp/morsekey/internal/dsp"
)

// Audio keys on a tone heard by a capture device.
type Audio struct {
	capture  *audio.Capture
	detector *dsp.Detector
	commit   atomic.Bool
	closed   atomic.Bool
	now      func() time.Time
}

// NewAudio starts capturing from dev. Each line read from commits triggers
// one commit; a line may end in "\n", "\r" or "\r\n". Capture stops when ctx is
// cancelled or the source is closed. A read from commits that is blocked
// at Close returns at the next line or end of input, and the reader then
// stops.
func NewAudio(ctx context.Context, dev audio.Config, tone ToneConfig, commits io.Reader) (*Audio, error) {
	tone.SampleRate = float64(dev.SampleRate)
	detector, err := NewToneDetector(tone)
	if err != nil {
		return nil, err
	}

	a := &Audio{detector: detector, now: time.Now}
	a.capture = audio.New(dev, detector.Process)
	if err := a.capture.Init(); err != nil {
		return nil, fmt.Errorf("init audio: %w", err)
	}
	if err := a.capture.Start(ctx); err != nil {
		_ = a.capture.Close()
		return nil, fmt.Errorf("start audio: %w", err)
	}

	if commits != nil {
		go watchCommits(commits, &a.commit, &a.closed)
	}
	return a, nil
}

// watchCommits sets flag for every line end read from r until r is
// exhausted or closed is set. A terminal in raw mode sends "\r" for enter.
func watchCommits(r io.Reader, flag, closed *atomic.Bool) {
	br := bufio.NewReader(r)
	var prev byte
	for {
		b, err := br.ReadByte()
		if err != nil || closed.Load() {
			return
		}
		if (b == '\r' || b == '\n') && !(b == '\n' && prev == '\r') {
			flag.Store(true)
		}
		prev = b
	}
}

// Poll reports whether the tone is keyed. A pending commit is consumed.
func (a *Audio) Poll(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	return State{
		At:     a.now(),
		Key:    a.detector.Keyed(),
		Commit: a.commit.Swap(false),
	}, nil
}

// Close stops capture and releases the device.
func (a *Audio) Close() error {
	a.closed.Store(true)
	return a.capture.Close()
}
