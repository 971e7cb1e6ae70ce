package input

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns its states in order, then io.EOF.
type scripted struct {
	states []State
	closed bool
}

func (s *scripted) Poll(ctx context.Context) (State, error) {
	if len(s.states) == 0 {
		return State{}, io.EOF
	}
	st := s.states[0]
	s.states = s.states[1:]
	return st, nil
}

func (s *scripted) Close() error {
	s.closed = true
	return nil
}

func script(step time.Duration, keys string, commitAt ...int) *scripted {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &scripted{}
	for i, c := range keys {
		st := State{At: start.Add(time.Duration(i) * step), Key: c == '#'}
		for _, at := range commitAt {
			st.Commit = st.Commit || at == i
		}
		s.states = append(s.states, st)
	}
	return s
}

func TestRecorder_LogsChanges(t *testing.T) {
	var buf bytes.Buffer
	src := script(10*time.Millisecond, "__###__#__", 8, 9)
	rec := RecordTo(src, &buf)

	n := len(drain(t, rec))
	assert.Equal(t, 10, n)

	assert.Equal(t, []Event{
		{At: 20 * time.Millisecond, Key: KeyDown},
		{At: 50 * time.Millisecond, Key: KeyUp},
		{At: 70 * time.Millisecond, Key: KeyDown},
		{At: 80 * time.Millisecond, Key: KeyUp, Commit: true},
	}, rec.Log().Events)

	require.NoError(t, rec.Close())
	assert.True(t, src.closed)

	l, err := ReadLog(&buf)
	require.NoError(t, err)
	assert.Equal(t, rec.Log(), *l)
}

func TestRecorder_ReplayReproducesSession(t *testing.T) {
	const keys = "___####___##______##___"
	var buf bytes.Buffer
	rec := RecordTo(script(time.Millisecond, keys), &buf)
	drain(t, rec)
	require.NoError(t, rec.Close())

	l, err := ReadLog(&buf)
	require.NoError(t, err)
	// the last event is at 20ms, so a 2ms tail ends the replay on the last recorded poll
	states := drain(t, NewReplayLog(l, 2*time.Millisecond))

	var got []byte
	for _, st := range states {
		if st.Key {
			got = append(got, '#')
		} else {
			got = append(got, '_')
		}
	}
	assert.Equal(t, keys, string(got))
}

func TestRecord_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	rec := Record(script(time.Millisecond, "_#_"), path)
	drain(t, rec)
	require.NoError(t, rec.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "key: down")
}

func TestRecord_CloseReportsBothErrors(t *testing.T) {
	rec := Record(&failingClose{}, filepath.Join(t.TempDir(), "missing", "session.yaml"))
	err := rec.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, errCloseFailed)
}

var errCloseFailed = errors.New("close failed")

type failingClose struct{ scripted }

func (f *failingClose) Close() error { return errCloseFailed }
