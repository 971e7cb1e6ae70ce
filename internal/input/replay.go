package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidReplay = errors.New("invalid replay")

// Key directions in a replay event.
const (
	KeyDown = "down"
	KeyUp   = "up"
)

// DefaultTick is the replay clock step when the log does not set one.
const DefaultTick = time.Millisecond

// Event is one change in a keying log, at an offset from the start.
type Event struct {
	At     time.Duration `yaml:"at"`
	Key    string        `yaml:"key,omitempty"`
	Commit bool          `yaml:"commit,omitempty"`
}

// Log is a recorded keying session.
//
//	tick: 1ms
//	events:
//	  - {at: 0s, key: down}
//	  - {at: 60ms, key: up}
//	  - {at: 2s, commit: true}
type Log struct {
	Tick   time.Duration `yaml:"tick"`
	Events []Event       `yaml:"events"`
}

// Validate checks event order and key directions.
func (l *Log) Validate() error {
	if l.Tick < 0 {
		return fmt.Errorf("%w: negative tick %v", ErrInvalidReplay, l.Tick)
	}
	var prev time.Duration
	for i, ev := range l.Events {
		if ev.At < prev {
			return fmt.Errorf("%w: event %d at %v is before %v", ErrInvalidReplay, i, ev.At, prev)
		}
		switch ev.Key {
		case KeyDown, KeyUp, "":
		default:
			return fmt.Errorf("%w: event %d has key %q, want down or up", ErrInvalidReplay, i, ev.Key)
		}
		prev = ev.At
	}
	return nil
}

// ReadLog decodes and validates a keying log.
func ReadLog(r io.Reader) (*Log, error) {
	var l Log
	if err := yaml.NewDecoder(r).Decode(&l); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReplay, err)
	}
	if l.Tick == 0 {
		l.Tick = DefaultTick
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// WriteLog encodes a keying log.
func WriteLog(w io.Writer, l *Log) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("encode replay: %w", err)
	}
	return enc.Close()
}

// Replay plays back a keying log on a virtual clock that advances one tick
// per poll. It is exhausted once tail has passed after the last event, so a
// trailing pause is long enough to end the last word.
type Replay struct {
	log   *Log
	tail  time.Duration
	start time.Time

	offset time.Duration
	next   int
	key    bool
}

// NewReplay opens a keying log file.
func NewReplay(path string, tail time.Duration) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()

	l, err := ReadLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewReplayLog(l, tail), nil
}

// NewReplayLog plays back l.
func NewReplayLog(l *Log, tail time.Duration) *Replay {
	if l.Tick <= 0 {
		l.Tick = DefaultTick
	}
	return &Replay{log: l, tail: tail, start: time.Now()}
}

// Poll applies every event due at the current offset, then advances the clock.
func (r *Replay) Poll(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	if r.offset > r.end() {
		return State{}, io.EOF
	}

	st := State{At: r.start.Add(r.offset)}
	for ; r.next < len(r.log.Events) && r.log.Events[r.next].At <= r.offset; r.next++ {
		ev := r.log.Events[r.next]
		switch ev.Key {
		case KeyDown:
			r.key = true
		case KeyUp:
			r.key = false
		}
		st.Commit = st.Commit || ev.Commit
	}
	st.Key = r.key

	r.offset += r.log.Tick
	return st, nil
}

func (r *Replay) end() time.Duration {
	if len(r.log.Events) == 0 {
		return r.tail
	}
	return r.log.Events[len(r.log.Events)-1].At + r.tail
}

// Close is a no-op; the log is read fully when the replay is opened.
func (r *Replay) Close() error {
	return nil
}
