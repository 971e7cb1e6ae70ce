// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/ColonelBlimp/morsekey/internal/cli/decode"
	"github.com/ColonelBlimp/morsekey/internal/config"
	"github.com/ColonelBlimp/morsekey/internal/logging"
)

var ErrNotTerminal = errors.New("--tui needs a terminal on stdout")

var rootCmd = &cobra.Command{
	Use:   "morsekey",
	Short: "Morse key decoder and encoder",
	Long: `Decodes Morse code keyed on a keyboard key, a tone in the audio input,
a WAV recording or a replayed keying log, and converts text to Morse code.

Hold the key briefly for a dit and longer for a dah. Press the commit key
to convert what was sent to text.`,
	SilenceUsage: true,
	RunE:         runRoot,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	flags := rootCmd.Flags()
	flags.DurationP("dit-length", "l", 200*time.Millisecond, "marks shorter than this are dits, the rest dahs")
	flags.DurationP("delta-char", "c", 0, "pause that ends a character (default 3 x dit-length)")
	flags.DurationP("delta-word", "w", 0, "pause that ends a word (default 7 x dit-length)")
	flags.BoolP("verbose", "v", false, "print the code as it is sent")
	flags.BoolP("show-table", "s", false, "print the code table after each conversion")
	flags.BoolP("text-to-morse", "t", false, "convert lines read from stdin to Morse code")
	flags.StringP("input", "i", config.InputKeyboard, "input: keyboard, audio, wav or replay")
	flags.StringP("file", "f", "", "file for the wav and replay inputs")
	flags.String("keyboard", "/dev/input/event0", "keyboard evdev device")
	flags.String("key", "ctrl", "key used as the Morse key")
	flags.String("commit-key", "enter", "key that converts the sent code to text")
	flags.Duration("auto-commit", 0, "convert after this much idle time")
	flags.String("record", "", "save the session's keying as a replay file")
	flags.Int("device", -1, "audio device index (-1 for default)")
	flags.Float64("frequency", 600, "tone frequency in Hz")
	flags.Bool("tui", false, "show the live terminal monitor")

	bindFlags()
}

// bindFlags binds the flags to their config keys.
func bindFlags() {
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	for key, flag := range flagKeys {
		viper.BindPFlag(key, rootCmd.Flags().Lookup(flag))
	}
}

// flagKeys maps config keys to the root command's flags.
var flagKeys = map[string]string{
	"dit_length":      "dit-length",
	"char_gap":        "delta-char",
	"word_gap":        "delta-word",
	"verbose":         "verbose",
	"show_table":      "show-table",
	"text_to_morse":   "text-to-morse",
	"input":           "input",
	"input_path":      "file",
	"keyboard_device": "keyboard",
	"key":             "key",
	"commit_key":      "commit-key",
	"auto_commit":     "auto-commit",
	"record_path":     "record",
	"device_index":    "device",
	"tone_frequency":  "frequency",
	"tui":             "tui",
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger returns the command's logger on its error stream.
func newLogger(cmd *cobra.Command) *slog.Logger {
	return logging.NewWriter(cmd.ErrOrStderr(), logging.Level(viper.GetBool("debug")))
}

func runRoot(cmd *cobra.Command, _ []string) error {
	s, err := config.Get()
	if err != nil {
		return err
	}
	log := newLogger(cmd)

	if s.TextToMorse {
		return encodeLines(cmd.InOrStdin(), cmd.OutOrStdout(), log)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.TUI && !isTerminal(cmd.OutOrStdout()) {
		return ErrNotTerminal
	}
	return runDecoder(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout(), log)
}

func runDecoder(ctx context.Context, s *config.Settings, stdin io.Reader, out io.Writer, log *slog.Logger) (err error) {
	src, err := decode.OpenSource(ctx, s, stdin)
	if err != nil {
		return fmt.Errorf("open %s input: %w", s.Input, err)
	}

	d, err := decode.NewDecoder(*s, src, out, log)
	if err != nil {
		src.Close()
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close input: %w", cerr))
		}
	}()

	if s.WatchConfig {
		config.Watch(func(next *config.Settings) {
			if err := d.SetTiming(next.Timing()); err != nil {
				log.Warn("ignoring timing change", "err", err)
				return
			}
			log.Debug("timing change applies at the next conversion", "dit_length", next.DitLength)
		}, func(err error) {
			log.Warn("config reload failed", "err", err)
		})
	}

	log.Debug("decoding", "input", s.Input, "dit_length", s.DitLength, "tui", s.TUI)
	if s.TUI {
		return d.RunTUI(ctx)
	}
	return d.Run(ctx)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
