package input

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"
	"sync/atomic"
	"time"
)

// Linux input event constants from linux/input-event-codes.h.
const (
	evKey       = 0x01
	keyReleased = 0
)

// keyCodes maps key names to the evdev codes of both left and right keys.
var keyCodes = map[string][]uint16{
	"ctrl":  {29, 97},  // KEY_LEFTCTRL, KEY_RIGHTCTRL
	"space": {57},      // KEY_SPACE
	"alt":   {56, 100}, // KEY_LEFTALT, KEY_RIGHTALT
	"shift": {42, 54},  // KEY_LEFTSHIFT, KEY_RIGHTSHIFT
	"enter": {28, 96},  // KEY_ENTER, KEY_KPENTER
}

// KeyCodes returns the evdev key codes for a key name.
func KeyCodes(name string) ([]uint16, error) {
	codes, ok := keyCodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return codes, nil
}

// inputEvent is struct input_event on 64-bit Linux.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// Evdev reads a Linux input device. Terminals cannot report key releases,
// so the raw event device is the only way to time a key held on a keyboard.
type Evdev struct {
	r           io.ReadCloser
	key, commit []uint16

	keyDown    atomic.Bool
	commitDown atomic.Bool
	closed     atomic.Bool
	done       chan struct{}
	err        error // valid after done is closed

	now func() time.Time
}

// NewEvdev opens the device at path. Reading it usually requires membership
// of the input group.
func NewEvdev(path, key, commitKey string) (*Evdev, error) {
	keys, err := KeyCodes(key)
	if err != nil {
		return nil, err
	}
	commits, err := KeyCodes(commitKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyboard device: %w", err)
	}
	return newEvdev(f, keys, commits), nil
}

func newEvdev(r io.ReadCloser, key, commit []uint16) *Evdev {
	e := &Evdev{
		r:      r,
		key:    key,
		commit: commit,
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go e.read()
	return e
}

func (e *Evdev) read() {
	defer close(e.done)

	down := make(map[uint16]bool)
	var ev inputEvent
	for {
		if err := binary.Read(e.r, binary.NativeEndian, &ev); err != nil {
			e.err = err
			return
		}
		if ev.Type != evKey {
			continue
		}
		// value 2 is autorepeat and still means held
		down[ev.Code] = ev.Value != keyReleased
		e.keyDown.Store(anyDown(down, e.key))
		e.commitDown.Store(anyDown(down, e.commit))
	}
}

func anyDown(down map[uint16]bool, codes []uint16) bool {
	return slices.ContainsFunc(codes, func(c uint16) bool { return down[c] })
}

// Poll returns the current key state stamped with the wall clock.
func (e *Evdev) Poll(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	select {
	case <-e.done:
		if e.closed.Load() {
			return State{}, ErrClosed
		}
		return State{}, fmt.Errorf("keyboard device: %w", e.err)
	default:
	}
	return State{
		At:     e.now(),
		Key:    e.keyDown.Load(),
		Commit: e.commitDown.Load(),
	}, nil
}

// Close releases the device.
func (e *Evdev) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.r.Close()
}
