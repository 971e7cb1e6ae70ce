// Package keyer runs the sampling loop that turns a key source into
// decoded transmissions.
package keyer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ColonelBlimp/morsekey/internal/cw"
	"github.com/ColonelBlimp/morsekey/internal/input"
	"github.com/ColonelBlimp/morsekey/internal/logging"
)

// DefaultInterval is the pause between polls of a live source.
const DefaultInterval = time.Millisecond

// Transmission is one committed block of keying.
type Transmission struct {
	ID     uuid.UUID
	Morse  string
	Text   string
	Tokens []cw.Token
	At     time.Time
	WPM    int
}

// Listener receives keyer output. Methods are called on the keyer goroutine.
type Listener interface {
	// OnToken is called for every token with the text it added to the
	// rendered Morse line.
	OnToken(tok cw.Token, fragment string)
	// OnCommit is called with each finished transmission.
	OnCommit(t Transmission)
}

// TimingListener is implemented by listeners that want to know when new
// thresholds take effect.
type TimingListener interface {
	OnTiming(t cw.Timing)
}

// Option configures a Keyer.
type Option func(*Keyer)

// WithInterval sets the pause between polls. Zero polls as fast as the
// source answers, which suits sources with their own clock.
func WithInterval(d time.Duration) Option {
	return func(k *Keyer) { k.interval = d }
}

// WithAutoCommit commits once the key has been up for d after some keying.
// Zero disables it.
func WithAutoCommit(d time.Duration) Option {
	return func(k *Keyer) { k.autoCommit = d }
}

// WithListener adds a listener.
func WithListener(l Listener) Option {
	return func(k *Keyer) { k.listeners = append(k.listeners, l) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Keyer) { k.log = l }
}

// Keyer owns the classifier and token stream of one session.
type Keyer struct {
	src        input.Source
	classifier *cw.Classifier
	speed      *cw.SpeedTracker
	stream     cw.Stream

	interval   time.Duration
	autoCommit time.Duration
	listeners  []Listener
	log        *slog.Logger

	pending   atomic.Pointer[cw.Timing]
	commitReq atomic.Bool

	last       time.Time
	lastKey    time.Time
	commitDown bool
	count      int
}

// New creates a keyer reading from src.
func New(src input.Source, timing cw.Timing, opts ...Option) (*Keyer, error) {
	if err := timing.Validate(); err != nil {
		return nil, err
	}
	speed, err := cw.NewSpeedTracker(timing.DitLength, cw.DefaultSpeedSmoothing)
	if err != nil {
		return nil, err
	}

	k := &Keyer{
		src:        src,
		classifier: cw.NewClassifier(timing),
		speed:      speed,
		interval:   DefaultInterval,
		log:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Timing returns the thresholds currently used for classification.
func (k *Keyer) Timing() cw.Timing {
	return k.classifier.Timing()
}

// SetTiming schedules new thresholds. They take effect at the next commit so
// a transmission is never classified with two timings. Safe for concurrent use.
func (k *Keyer) SetTiming(t cw.Timing) error {
	if err := t.Validate(); err != nil {
		return err
	}
	k.pending.Store(&t)
	return nil
}

// Commit asks for the transmission in progress to be committed at the next
// poll, for hosts that read the commit key themselves. Safe for concurrent use.
func (k *Keyer) Commit() {
	k.commitReq.Store(true)
}

// Run samples the source until it is exhausted or ctx is done. An exhausted
// source flushes the unfinished transmission and Run returns nil. On
// cancellation the unfinished transmission is discarded and ctx.Err() is
// returned.
func (k *Keyer) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if k.interval > 0 {
		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		st, err := k.src.Poll(ctx)
		switch {
		case errors.Is(err, io.EOF):
			k.finish()
			return nil
		case ctx.Err() != nil:
			k.discard()
			return ctx.Err()
		case err != nil:
			return fmt.Errorf("poll input: %w", err)
		}

		k.step(st)

		if tick == nil {
			continue
		}
		select {
		case <-ctx.Done():
			k.discard()
			return ctx.Err()
		case <-tick:
		}
	}
}

func (k *Keyer) step(st input.State) {
	k.last = st.At
	if st.Key {
		k.lastKey = st.At
	}

	if tok, ok := k.classifier.Sample(st.Key, st.At); ok {
		k.emit(tok)
	}

	commit := st.Commit && !k.commitDown
	k.commitDown = st.Commit
	if k.commitReq.Swap(false) {
		commit = true
	}

	switch {
	case commit:
		k.commit(st.At)
	case k.autoCommit > 0 && k.stream.Len() > 0 && !st.Key && st.At.Sub(k.lastKey) > k.autoCommit:
		k.log.Debug("auto commit", "idle", st.At.Sub(k.lastKey))
		k.commit(st.At)
	}
}

func (k *Keyer) emit(tok cw.Token) {
	if tok.IsMark() {
		k.speed.Observe(tok, k.classifier.LastMark())
	}
	frag := k.stream.Append(tok)
	for _, l := range k.listeners {
		l.OnToken(tok, frag)
	}
}

func (k *Keyer) commit(at time.Time) {
	tokens := k.stream.Tokens()
	morse := k.stream.Flush()
	t := Transmission{
		ID:     uuid.New(),
		Morse:  morse,
		Text:   cw.Decode(morse),
		Tokens: tokens,
		At:     at,
		WPM:    k.speed.WPM(),
	}
	k.count++
	k.log.Debug("commit", "id", t.ID, "morse", t.Morse, "text", t.Text, "wpm", t.WPM)

	k.classifier.Reset()
	k.applyPending()

	for _, l := range k.listeners {
		l.OnCommit(t)
	}
}

func (k *Keyer) applyPending() {
	t := k.pending.Swap(nil)
	if t == nil {
		return
	}
	k.classifier.SetTiming(*t)
	if speed, err := cw.NewSpeedTracker(t.DitLength, cw.DefaultSpeedSmoothing); err == nil {
		k.speed = speed
	}
	k.log.Debug("timing updated", "dit", t.DitLength, "char_gap", t.CharGap, "word_gap", t.WordGap)
	for _, l := range k.listeners {
		if tl, ok := l.(TimingListener); ok {
			tl.OnTiming(*t)
		}
	}
}

// finish ends the transmission in progress when the source runs out and
// commits it.
func (k *Keyer) finish() {
	if k.last.IsZero() {
		return
	}
	for _, tok := range k.classifier.Close(k.last) {
		k.emit(tok)
	}
	if k.stream.Len() > 0 {
		k.commit(k.last)
	}
}

func (k *Keyer) discard() {
	if n := k.stream.Len(); n > 0 {
		k.log.Debug("discarding unfinished transmission", "tokens", n)
	}
	k.stream.Flush()
	k.classifier.Reset()
}

// Commits returns the number of transmissions committed so far.
func (k *Keyer) Commits() int {
	return k.count
}
