package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/morsekey/internal/cw"
)

func resetViper() {
	viper.Reset()
}

// isolate points HOME and the working directory at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	resetViper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Chdir(tmpDir)
	return tmpDir
}

func TestInit_WithDefaults(t *testing.T) {
	tmpDir := isolate(t)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("debug: false\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"dit_length", cw.DefaultDitLength},
		{"poll_interval", time.Millisecond},
		{"input", InputKeyboard},
		{"key", "ctrl"},
		{"commit_key", "enter"},
		{"device_index", -1},
		{"sample_rate", 48000},
		{"tone_frequency", 600},
		{"block_size", 256},
		{"hysteresis", 2},
		{"agc_warmup_blocks", 10},
		{"verbose", false},
		{"show_table", false},
		{"text_to_morse", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.expected {
				t.Errorf("viper.Get(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestInit_CreatesConfigIfMissing(t *testing.T) {
	tmpDir := isolate(t)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ".config", AppName, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Init() did not create config file at %s: %v", configPath, err)
	}
	if string(data) != DefaultConfig {
		t.Error("created config differs from DefaultConfig")
	}
}

func TestInit_ReadsLocalConfigFirst(t *testing.T) {
	tmpDir := isolate(t)

	xdgConfigDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(xdgConfigDir, 0755); err != nil {
		t.Fatalf("failed to create XDG config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(xdgConfigDir, "config.yaml"), []byte("dit_length: 100ms"), 0644); err != nil {
		t.Fatalf("failed to write XDG config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("dit_length: 80ms"), 0644); err != nil {
		t.Fatalf("failed to write local config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got := viper.GetDuration("dit_length"); got != 80*time.Millisecond {
		t.Errorf("dit_length = %v, want 80ms from local config", got)
	}
}

func TestInit_DotConfigTakesPrecedence(t *testing.T) {
	tmpDir := isolate(t)

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("key: space"), 0644); err != nil {
		t.Fatalf("failed to write config.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ".config.yaml"), []byte("key: alt"), 0644); err != nil {
		t.Fatalf("failed to write .config.yaml: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got := viper.GetString("key"); got != "alt" {
		t.Errorf("key = %q, want %q", got, "alt")
	}
}

func TestInit_InvalidConfigFile(t *testing.T) {
	tmpDir := isolate(t)

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("dit_length: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := Init(); err == nil {
		t.Error("Init() with invalid YAML should fail")
	}
}

func TestGet_ParsesDurations(t *testing.T) {
	tmpDir := isolate(t)

	yaml := "dit_length: 120ms\nchar_gap: 400ms\nword_gap: 1s\ninput: replay\ninput_path: keying.yaml\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	s, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := cw.Timing{DitLength: 120 * time.Millisecond, CharGap: 400 * time.Millisecond, WordGap: time.Second}
	if s.Timing() != want {
		t.Errorf("Timing() = %+v, want %+v", s.Timing(), want)
	}
	if s.Input != InputReplay || s.InputPath != "keying.yaml" {
		t.Errorf("Input = %q, InputPath = %q", s.Input, s.InputPath)
	}
}

func TestGet_RejectsInvalidSettings(t *testing.T) {
	tmpDir := isolate(t)

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("char_gap: 2s\nword_gap: 1s\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := Get(); err == nil || !strings.Contains(err.Error(), "word_gap") {
		t.Errorf("Get() error = %v, want word_gap violation", err)
	}
}

func TestEnsureConfigExists_DoesNotOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("custom: true"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := ensureConfigExists(tmpDir); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}
	data, _ := os.ReadFile(configFile)
	if string(data) != "custom: true" {
		t.Errorf("ensureConfigExists() overwrote existing file: %q", data)
	}
}

func TestDefaultConfig_ContainsEveryKey(t *testing.T) {
	for _, key := range []string{
		"dit_length", "char_gap", "word_gap", "poll_interval", "auto_commit",
		"input", "input_path", "keyboard_device", "record_path", "key", "commit_key",
		"device_index", "sample_rate", "tone_frequency", "block_size", "overlap_pct",
		"threshold", "hysteresis", "agc_enabled", "agc_decay", "agc_attack", "agc_warmup_blocks",
		"verbose", "show_table", "text_to_morse", "tui", "watch_config", "debug",
	} {
		if !strings.Contains(DefaultConfig, key+":") {
			t.Errorf("DefaultConfig missing key %q", key)
		}
	}
}

func TestSettings_Timing_DefaultsGaps(t *testing.T) {
	s := validSettings()
	s.DitLength = 100 * time.Millisecond
	got := s.Timing()
	if got.CharGap != 300*time.Millisecond || got.WordGap != 700*time.Millisecond {
		t.Errorf("Timing() = %+v, want 300ms/700ms gaps", got)
	}
}

func TestSettings_Validate_ValidSettings(t *testing.T) {
	if err := validSettings().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
		want   string
	}{
		{"zero dit length", func(s *Settings) { s.DitLength = 0 }, "dit_length"},
		{"negative gap", func(s *Settings) { s.CharGap = -time.Second }, "must not be negative"},
		{"word gap not longer", func(s *Settings) { s.CharGap = time.Second; s.WordGap = time.Second }, "word_gap"},
		{"char gap past default word gap", func(s *Settings) { s.CharGap = 2 * time.Second }, "word_gap"},
		{"poll interval too slow", func(s *Settings) { s.PollInterval = time.Second }, "poll_interval"},
		{"negative auto commit", func(s *Settings) { s.AutoCommit = -1 }, "auto_commit"},
		{"unknown input", func(s *Settings) { s.Input = "midi" }, "input must be one of"},
		{"wav without path", func(s *Settings) { s.Input = InputWAV }, "input_path"},
		{"replay without path", func(s *Settings) { s.Input = InputReplay }, "input_path"},
		{"record over replay", func(s *Settings) { s.Input = InputReplay; s.InputPath = "a.yaml"; s.RecordPath = "a.yaml" }, "record_path"},
		{"unknown key", func(s *Settings) { s.Key = "meta" }, "key must be one of"},
		{"unknown commit key", func(s *Settings) { s.CommitKey = "tab" }, "commit_key"},
		{"same keys", func(s *Settings) { s.CommitKey = s.Key }, "must differ"},
		{"sample rate", func(s *Settings) { s.SampleRate = 4000 }, "sample_rate"},
		{"tone frequency", func(s *Settings) { s.ToneFrequency = 50 }, "tone_frequency"},
		{"block size range", func(s *Settings) { s.BlockSize = 16 }, "block_size"},
		{"block size power of two", func(s *Settings) { s.BlockSize = 300 }, "power of 2"},
		{"overlap", func(s *Settings) { s.OverlapPct = 100 }, "overlap_pct"},
		{"threshold", func(s *Settings) { s.Threshold = 1.5 }, "threshold"},
		{"hysteresis", func(s *Settings) { s.Hysteresis = 0 }, "hysteresis"},
		{"agc decay", func(s *Settings) { s.AGCDecay = 0.5 }, "agc_decay"},
		{"agc attack", func(s *Settings) { s.AGCAttack = -1 }, "agc_attack"},
		{"agc warmup", func(s *Settings) { s.AGCWarmupBlocks = -1 }, "agc_warmup_blocks"},
		{"nyquist", func(s *Settings) { s.SampleRate = 8000; s.ToneFrequency = 4000 }, "Nyquist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.modify(s)
			err := s.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSettings_Validate_MultipleErrors(t *testing.T) {
	s := validSettings()
	s.DitLength = 0
	s.Input = "midi"
	s.Hysteresis = 0

	err := s.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Fatalf("Validate() error %T is not a joined error", err)
	}
	if n := len(joined.Unwrap()); n != 3 {
		t.Errorf("Validate() reported %d errors, want 3: %v", n, err)
	}
}

func validSettings() *Settings {
	return &Settings{
		DitLength:       cw.DefaultDitLength,
		PollInterval:    time.Millisecond,
		Input:           InputKeyboard,
		KeyboardDevice:  "/dev/input/event0",
		Key:             "ctrl",
		CommitKey:       "enter",
		DeviceIndex:     -1,
		SampleRate:      48000,
		ToneFrequency:   600,
		BlockSize:       256,
		OverlapPct:      50,
		Threshold:       0.4,
		Hysteresis:      2,
		AGCEnabled:      true,
		AGCDecay:        0.9995,
		AGCAttack:       0.1,
		AGCWarmupBlocks: 10,
	}
}
