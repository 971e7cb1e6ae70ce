package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Recorder passes states through from a source and logs every key change
// and commit press. The log is written when the recorder is closed and can
// be played back with NewReplay.
type Recorder struct {
	src  Source
	path string
	w    io.Writer

	log     Log
	started bool
	start   time.Time
	key     bool
	commit  bool
}

// Record wraps src and writes the session log to path on Close.
func Record(src Source, path string) *Recorder {
	return &Recorder{src: src, path: path, log: Log{Tick: DefaultTick}}
}

// RecordTo wraps src and writes the session log to w on Close.
func RecordTo(src Source, w io.Writer) *Recorder {
	return &Recorder{src: src, w: w, log: Log{Tick: DefaultTick}}
}

// Poll polls the wrapped source and records changes.
func (r *Recorder) Poll(ctx context.Context) (State, error) {
	st, err := r.src.Poll(ctx)
	if err != nil {
		return st, err
	}
	if !r.started {
		r.started = true
		r.start = st.At
	}

	ev := Event{At: st.At.Sub(r.start).Truncate(r.log.Tick)}
	if st.Key != r.key {
		ev.Key = KeyUp
		if st.Key {
			ev.Key = KeyDown
		}
	}
	ev.Commit = st.Commit && !r.commit
	if ev.Key != "" || ev.Commit {
		r.log.Events = append(r.log.Events, ev)
	}
	r.key, r.commit = st.Key, st.Commit
	return st, nil
}

// Log returns the events recorded so far.
func (r *Recorder) Log() Log {
	l := r.log
	l.Events = append([]Event(nil), r.log.Events...)
	return l
}

// Close writes the log and closes the wrapped source.
func (r *Recorder) Close() error {
	return errors.Join(r.save(), r.src.Close())
}

func (r *Recorder) save() error {
	if r.w != nil {
		return WriteLog(r.w, &r.log)
	}
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	if err := WriteLog(f, &r.log); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
