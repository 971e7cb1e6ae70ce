// Package decode runs an interactive decoding session: it opens the
// configured input, drives the keyer and prints what was sent.
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ColonelBlimp/morsekey/internal/audio"
	"github.com/ColonelBlimp/morsekey/internal/config"
	"github.com/ColonelBlimp/morsekey/internal/cw"
	"github.com/ColonelBlimp/morsekey/internal/input"
	"github.com/ColonelBlimp/morsekey/internal/keyer"
	"github.com/ColonelBlimp/morsekey/internal/recovery"
	"github.com/ColonelBlimp/morsekey/internal/tui"
)

// Decoder is one decoding session.
type Decoder struct {
	settings config.Settings
	src      input.Source
	out      io.Writer
	log      *slog.Logger

	keyer *keyer.Keyer
	relay *relay
}

// relay lets the output be chosen after the keyer is built.
type relay struct {
	l keyer.Listener
}

func (r *relay) OnToken(tok cw.Token, fragment string) {
	if r.l != nil {
		r.l.OnToken(tok, fragment)
	}
}

func (r *relay) OnCommit(t keyer.Transmission) {
	if r.l != nil {
		r.l.OnCommit(t)
	}
}

func (r *relay) OnTiming(t cw.Timing) {
	if tl, ok := r.l.(keyer.TimingListener); ok {
		tl.OnTiming(t)
	}
}

// NewDecoder prepares a session reading src and printing to out.
func NewDecoder(s config.Settings, src input.Source, out io.Writer, logger *slog.Logger) (*Decoder, error) {
	d := &Decoder{
		settings: s,
		src:      src,
		out:      out,
		log:      logger,
		relay:    &relay{},
	}

	interval := s.PollInterval
	if isFileInput(s.Input) {
		// file inputs carry their own clock
		interval = 0
	}
	k, err := keyer.New(src, s.Timing(),
		keyer.WithInterval(interval),
		keyer.WithAutoCommit(s.AutoCommit),
		keyer.WithListener(d.relay),
		keyer.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create keyer: %w", err)
	}
	d.keyer = k
	return d, nil
}

// OpenSource opens the configured input, wrapped in a recorder when
// record_path is set. stdin is ignored when the monitor runs, since the
// monitor reads the terminal itself and commits through the keyer.
func OpenSource(ctx context.Context, s *config.Settings, stdin io.Reader) (input.Source, error) {
	if s.TUI {
		stdin = nil
	}
	src, err := input.Open(ctx, s, stdin)
	if err != nil {
		return nil, err
	}
	if s.RecordPath != "" {
		return input.Record(src, s.RecordPath), nil
	}
	return src, nil
}

func isFileInput(kind string) bool {
	return kind == config.InputWAV || kind == config.InputReplay
}

// SetTiming changes the thresholds from the next transmission on.
func (d *Decoder) SetTiming(t cw.Timing) error {
	return d.keyer.SetTiming(t)
}

// Run decodes until the input is exhausted or ctx is cancelled, printing
// plain text. Cancellation is not an error.
func (d *Decoder) Run(ctx context.Context) error {
	p := NewPrinter(d.out, d.settings.Verbose, d.settings.ShowTable)
	key, commit := d.banner()
	p.Banner(key, commit)
	d.relay.l = p

	err := d.runKeyer(ctx)
	if perr := p.Err(); perr != nil {
		return fmt.Errorf("write output: %w", perr)
	}
	return err
}

// RunTUI decodes inside the terminal monitor until the user quits.
func (d *Decoder) RunTUI(ctx context.Context, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := d.newModel()
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)...)
	d.relay.l = tui.NewListener(program.Send)

	done := make(chan error, 1)
	go func() {
		err := d.runKeyer(ctx)
		program.Send(tui.DoneMsg{Err: err})
		done <- err
	}()

	_, err := program.Run()
	cancel()
	keyerErr := <-done

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run monitor: %w", err)
	}
	return keyerErr
}

// newModel builds the monitor. Enter commits for audio input, whose commit
// trigger would otherwise be a line on stdin.
func (d *Decoder) newModel() *tui.Model {
	key, commit := d.banner()
	cfg := tui.Config{
		Timing:    d.settings.Timing(),
		Key:       key,
		CommitKey: commit,
		ShowTable: d.settings.ShowTable,
	}
	if d.settings.Input == config.InputAudio {
		cfg.Commit = d.keyer.Commit
	}
	return tui.NewModel(cfg)
}

// runKeyer runs the keyer with panics turned into errors.
func (d *Decoder) runKeyer(ctx context.Context) error {
	start := time.Now()
	var err error
	if perr := recovery.Run(func() { err = d.keyer.Run(ctx) }); perr != nil {
		return perr
	}
	d.log.Debug("session ended", "commits", d.keyer.Commits(), "elapsed", time.Since(start))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// banner describes the key and commit trigger for the configured input.
func (d *Decoder) banner() (key, commit string) {
	switch d.settings.Input {
	case config.InputKeyboard:
		return d.settings.Key, d.settings.CommitKey
	case config.InputAudio:
		return fmt.Sprintf("%v Hz tone", d.settings.ToneFrequency), "enter"
	}
	return "", ""
}

// Close releases the input.
func (d *Decoder) Close() error {
	return d.src.Close()
}

// ListAudioDevices returns the available capture devices.
func ListAudioDevices() ([]audio.Device, error) {
	return audio.ListDevices()
}
