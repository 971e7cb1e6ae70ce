package decode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelBlimp/morsekey/internal/config"
	"github.com/ColonelBlimp/morsekey/internal/cw"
	"github.com/ColonelBlimp/morsekey/internal/input"
	"github.com/ColonelBlimp/morsekey/internal/logging"
	"github.com/ColonelBlimp/morsekey/internal/tui"
)

func testSettings(kind string) config.Settings {
	return config.Settings{
		DitLength: 100 * time.Millisecond,
		Input:     kind,
		Key:       "ctrl",
		CommitKey: "enter",
	}
}

// keyedE sends a single dit and converts it.
func keyedE() *input.Replay {
	return input.NewReplayLog(&input.Log{
		Tick: time.Millisecond,
		Events: []input.Event{
			{At: 0, Key: input.KeyDown},
			{At: 50 * time.Millisecond, Key: input.KeyUp},
			{At: 500 * time.Millisecond, Commit: true},
		},
	}, 10*time.Millisecond)
}

func decodeWith(t *testing.T, s config.Settings, src input.Source) string {
	t.Helper()
	var out bytes.Buffer
	d, err := NewDecoder(s, src, &out, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, d.Close())
	return out.String()
}

func TestDecoder_Run(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Settings)
		want   string
	}{
		{
			name: "replay prints text only",
			want: "E\n\n",
		},
		{
			name:   "verbose echoes the code",
			mutate: func(s *config.Settings) { s.Verbose = true },
			want:   ". \nE\n\n",
		},
		{
			name:   "keyboard prints usage",
			mutate: func(s *config.Settings) { s.Input = config.InputKeyboard },
			want:   "Use 'ctrl' as on-key.\nPress enter to convert the sent code to text\nE\n\n",
		},
		{
			name: "audio names the tone",
			mutate: func(s *config.Settings) {
				s.Input = config.InputAudio
				s.ToneFrequency = 700
			},
			want: "Use '700 Hz tone' as on-key.\nPress enter to convert the sent code to text\nE\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings(config.InputReplay)
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			assert.Equal(t, tt.want, decodeWith(t, s, keyedE()))
		})
	}
}

func TestDecoder_ShowTable(t *testing.T) {
	s := testSettings(config.InputReplay)
	s.ShowTable = true

	out := decodeWith(t, s, keyedE())

	assert.Equal(t, 2, strings.Count(out, cw.Table()), "once at start, once per conversion")
	assert.True(t, strings.HasPrefix(out, cw.Table()))
	assert.True(t, strings.HasSuffix(out, "E\n\n"+cw.Table()))
}

func TestDecoder_FlushesAtEndOfInput(t *testing.T) {
	src := input.NewReplayLog(&input.Log{
		Events: []input.Event{
			{At: 0, Key: input.KeyDown},
			{At: 250 * time.Millisecond, Key: input.KeyUp},
		},
	}, 400*time.Millisecond)

	assert.Equal(t, "T\n\n", decodeWith(t, testSettings(config.InputReplay), src))
}

func TestNewDecoder_InvalidTiming(t *testing.T) {
	s := testSettings(config.InputReplay)
	s.DitLength = 0

	_, err := NewDecoder(s, keyedE(), io.Discard, logging.NewNop())
	assert.ErrorIs(t, err, cw.ErrInvalidDitLength)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestDecoder_WriteError(t *testing.T) {
	d, err := NewDecoder(testSettings(config.InputReplay), keyedE(), failingWriter{}, logging.NewNop())
	require.NoError(t, err)

	err = d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestDecoder_SetTiming(t *testing.T) {
	d, err := NewDecoder(testSettings(config.InputReplay), keyedE(), io.Discard, logging.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, d.SetTiming(cw.Timing{}), cw.ErrInvalidDitLength)
	assert.NoError(t, d.SetTiming(cw.NewTiming(80*time.Millisecond, 0, 0)))
}

func TestDecoder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := NewDecoder(testSettings(config.InputReplay), keyedE(), io.Discard, logging.NewNop())
	require.NoError(t, err)
	assert.NoError(t, d.Run(ctx))
}

func TestDecoder_RunTUI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	d, err := NewDecoder(testSettings(config.InputReplay), keyedE(), io.Discard, logging.NewNop())
	require.NoError(t, err)

	err = d.RunTUI(ctx, tea.WithInput(nil), tea.WithOutput(io.Discard))
	assert.NoError(t, err)
}

// enterOnPoll presses enter in the monitor just before the given poll.
type enterOnPoll struct {
	input.Source
	poll, n int
	model   *tui.Model
}

func (e *enterOnPoll) Poll(ctx context.Context) (input.State, error) {
	e.n++
	if e.n == e.poll {
		e.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	}
	return e.Source.Poll(ctx)
}

// twoDits keys two dits 100ms apart, close enough to form one I.
func twoDits() *input.Replay {
	return input.NewReplayLog(&input.Log{
		Tick: time.Millisecond,
		Events: []input.Event{
			{At: 0, Key: input.KeyDown},
			{At: 50 * time.Millisecond, Key: input.KeyUp},
			{At: 150 * time.Millisecond, Key: input.KeyDown},
			{At: 200 * time.Millisecond, Key: input.KeyUp},
		},
	}, 400*time.Millisecond)
}

func TestDecoder_MonitorEnterCommitsAudio(t *testing.T) {
	s := testSettings(config.InputAudio)
	src := &enterOnPoll{Source: twoDits(), poll: 101}
	var out bytes.Buffer
	d, err := NewDecoder(s, src, &out, logging.NewNop())
	require.NoError(t, err)
	src.model = d.newModel()

	require.NoError(t, d.Run(context.Background()))

	assert.True(t, strings.HasSuffix(out.String(), "\nE\n\nE\n\n"), "output %q", out.String())
	assert.NotContains(t, out.String(), "I")
}

func TestDecoder_MonitorEnterIgnoredWithCommitKey(t *testing.T) {
	s := testSettings(config.InputKeyboard)
	src := &enterOnPoll{Source: twoDits(), poll: 101}
	var out bytes.Buffer
	d, err := NewDecoder(s, src, &out, logging.NewNop())
	require.NoError(t, err)
	src.model = d.newModel()

	require.NoError(t, d.Run(context.Background()))

	assert.True(t, strings.HasSuffix(out.String(), "text\nI\n\n"), "output %q", out.String())
}

func writeLog(path string, l *input.Log) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := input.WriteLog(f, l); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func TestOpenSource_Records(t *testing.T) {
	dir := t.TempDir()
	replayPath := filepath.Join(dir, "in.yaml")
	recordPath := filepath.Join(dir, "out.yaml")

	require.NoError(t, writeLog(replayPath, &input.Log{
		Tick: time.Millisecond,
		Events: []input.Event{
			{At: 0, Key: input.KeyDown},
			{At: 50 * time.Millisecond, Key: input.KeyUp},
		},
	}))

	s := testSettings(config.InputReplay)
	s.InputPath = replayPath
	s.RecordPath = recordPath

	src, err := OpenSource(context.Background(), &s, nil)
	require.NoError(t, err)
	_, ok := src.(*input.Recorder)
	require.True(t, ok, "record_path wraps the source")

	assert.Equal(t, "E\n\n", decodeWith(t, s, src))

	rec, err := input.NewReplay(recordPath, 0)
	require.NoError(t, err)
	require.NoError(t, rec.Close())
}

func TestOpenSource_UnknownInput(t *testing.T) {
	s := testSettings("pigeon")
	_, err := OpenSource(context.Background(), &s, nil)
	assert.ErrorIs(t, err, input.ErrUnknownInput)
}

func TestListAudioDevices(t *testing.T) {
	devices, err := ListAudioDevices()
	if err != nil {
		t.Skipf("no audio backend: %v", err)
	}
	for _, d := range devices {
		assert.NotEmpty(t, d.Name)
	}
}
