// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/morsekey/internal/cw"
)

const (
	AppName       = "morsekey"
	ConfigType    = "yaml"
	DefaultConfig = `# Morse Key Configuration

# Timing
dit_length: 200ms       # Marks shorter than this are dits, the rest dahs
char_gap: 0s            # Pause that ends a character (0 = 3 x dit_length)
word_gap: 0s            # Pause that ends a word (0 = 7 x dit_length)
poll_interval: 1ms      # How often the key is sampled
auto_commit: 0s         # Convert after this much idle time (0 = only on commit key)

# Input
input: "keyboard"       # keyboard, audio, wav or replay
input_path: ""          # File for wav and replay inputs
keyboard_device: "/dev/input/event0"  # evdev device (see /proc/bus/input/devices)
record_path: ""         # Save the keying of each session as a replay file
key: "ctrl"             # Morse key: ctrl, space, alt or shift
commit_key: "enter"     # Key that converts the sent code to text

# Audio input (tone keyed by a practice oscillator or receiver)
device_index: -1        # -1 for default device
sample_rate: 48000      # Audio sample rate in Hz
tone_frequency: 600     # Tone frequency in Hz
block_size: 256         # Goertzel block size (samples per detection window)
overlap_pct: 50         # Block overlap percentage (0-99)
threshold: 0.4          # Detection threshold (0.0-1.0)
hysteresis: 2           # Consecutive blocks required to confirm a key change
agc_enabled: true       # Enable automatic gain control
agc_decay: 0.9995       # AGC peak decay per block
agc_attack: 0.1         # AGC attack rate (0.0-1.0)
agc_warmup_blocks: 10   # Blocks used to calibrate AGC before detection

# Output
verbose: false          # Echo the code as it is sent
show_table: false       # Print the code table after each conversion
text_to_morse: false    # Convert typed text to Morse instead
tui: false              # Live terminal monitor
watch_config: false     # Apply timing changes from this file at the next conversion
debug: false            # Enable debug output
`
)

// Input kinds.
const (
	InputKeyboard = "keyboard"
	InputAudio    = "audio"
	InputWAV      = "wav"
	InputReplay   = "replay"
)

// KeyNames lists the key names accepted for key and commit_key.
var KeyNames = []string{"ctrl", "space", "alt", "shift", "enter"}

// Settings holds all application configuration
type Settings struct {
	// Timing
	DitLength    time.Duration `mapstructure:"dit_length"`
	CharGap      time.Duration `mapstructure:"char_gap"`
	WordGap      time.Duration `mapstructure:"word_gap"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	AutoCommit   time.Duration `mapstructure:"auto_commit"`

	// Input
	Input          string `mapstructure:"input"`
	InputPath      string `mapstructure:"input_path"`
	KeyboardDevice string `mapstructure:"keyboard_device"`
	RecordPath     string `mapstructure:"record_path"`
	Key            string `mapstructure:"key"`
	CommitKey      string `mapstructure:"commit_key"`

	// Audio input
	DeviceIndex     int     `mapstructure:"device_index"`
	SampleRate      float64 `mapstructure:"sample_rate"`
	ToneFrequency   float64 `mapstructure:"tone_frequency"`
	BlockSize       int     `mapstructure:"block_size"`
	OverlapPct      int     `mapstructure:"overlap_pct"`
	Threshold       float64 `mapstructure:"threshold"`
	Hysteresis      int     `mapstructure:"hysteresis"`
	AGCEnabled      bool    `mapstructure:"agc_enabled"`
	AGCDecay        float64 `mapstructure:"agc_decay"`
	AGCAttack       float64 `mapstructure:"agc_attack"`
	AGCWarmupBlocks int     `mapstructure:"agc_warmup_blocks"`

	// Output
	Verbose     bool `mapstructure:"verbose"`
	ShowTable   bool `mapstructure:"show_table"`
	TextToMorse bool `mapstructure:"text_to_morse"`
	TUI         bool `mapstructure:"tui"`
	WatchConfig bool `mapstructure:"watch_config"`
	Debug       bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/morsekey/
func Init() error {
	setDefaults()

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		// No config found - create default in ~/.config/morsekey/
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("dit_length", cw.DefaultDitLength)
	viper.SetDefault("char_gap", time.Duration(0))
	viper.SetDefault("word_gap", time.Duration(0))
	viper.SetDefault("poll_interval", time.Millisecond)
	viper.SetDefault("auto_commit", time.Duration(0))
	viper.SetDefault("input", InputKeyboard)
	viper.SetDefault("input_path", "")
	viper.SetDefault("keyboard_device", "/dev/input/event0")
	viper.SetDefault("record_path", "")
	viper.SetDefault("key", "ctrl")
	viper.SetDefault("commit_key", "enter")
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("tone_frequency", 600)
	viper.SetDefault("block_size", 256)
	viper.SetDefault("overlap_pct", 50)
	viper.SetDefault("threshold", 0.4)
	viper.SetDefault("hysteresis", 2)
	viper.SetDefault("agc_enabled", true)
	viper.SetDefault("agc_decay", 0.9995)
	viper.SetDefault("agc_attack", 0.1)
	viper.SetDefault("agc_warmup_blocks", 10)
	viper.SetDefault("verbose", false)
	viper.SetDefault("show_table", false)
	viper.SetDefault("text_to_morse", false)
	viper.SetDefault("tui", false)
	viper.SetDefault("watch_config", false)
	viper.SetDefault("debug", false)
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Watch calls onChange with freshly validated settings whenever the config
// file changes. Invalid edits are reported through onError and otherwise
// ignored. The callbacks run on the watcher goroutine.
func Watch(onChange func(*Settings), onError func(error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		s, err := Get()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(s)
	})
	viper.WatchConfig()
}

// Timing returns the classifier thresholds, with unset gaps defaulted from
// the dit length.
func (s *Settings) Timing() cw.Timing {
	return cw.NewTiming(s.DitLength, s.CharGap, s.WordGap)
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Timing
	if s.DitLength <= 0 {
		errs = append(errs, fmt.Errorf("dit_length must be positive, got %v", s.DitLength))
	}
	if s.CharGap < 0 || s.WordGap < 0 {
		errs = append(errs, fmt.Errorf("char_gap and word_gap must not be negative, got %v and %v", s.CharGap, s.WordGap))
	}
	if t := s.Timing(); s.DitLength > 0 && t.WordGap <= t.CharGap {
		errs = append(errs, fmt.Errorf("word_gap (%v) must be longer than char_gap (%v)", t.WordGap, t.CharGap))
	}
	if s.PollInterval < 0 || s.PollInterval > 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("poll_interval must be between 0 and 100ms, got %v", s.PollInterval))
	}
	if s.AutoCommit < 0 {
		errs = append(errs, fmt.Errorf("auto_commit must not be negative, got %v", s.AutoCommit))
	}

	// Input
	switch s.Input {
	case InputKeyboard, InputAudio:
	case InputWAV, InputReplay:
		if s.InputPath == "" {
			errs = append(errs, fmt.Errorf("input_path is required for %s input", s.Input))
		}
	default:
		errs = append(errs, fmt.Errorf("input must be one of keyboard, audio, wav, replay, got %q", s.Input))
	}
	if s.RecordPath != "" && s.Input == InputReplay && s.RecordPath == s.InputPath {
		errs = append(errs, fmt.Errorf("record_path must differ from input_path, both are %q", s.RecordPath))
	}
	if !slices.Contains(KeyNames, s.Key) {
		errs = append(errs, fmt.Errorf("key must be one of %v, got %q", KeyNames, s.Key))
	}
	if !slices.Contains(KeyNames, s.CommitKey) {
		errs = append(errs, fmt.Errorf("commit_key must be one of %v, got %q", KeyNames, s.CommitKey))
	}
	if s.Key == s.CommitKey {
		errs = append(errs, fmt.Errorf("key and commit_key must differ, both are %q", s.Key))
	}

	// Audio input
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.ToneFrequency < 100 || s.ToneFrequency > 3000 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 100 and 3000 Hz, got %v", s.ToneFrequency))
	}
	if s.BlockSize < 32 || s.BlockSize > 4096 {
		errs = append(errs, fmt.Errorf("block_size must be between 32 and 4096, got %d", s.BlockSize))
	}
	if s.BlockSize&(s.BlockSize-1) != 0 {
		errs = append(errs, fmt.Errorf("block_size should be a power of 2, got %d", s.BlockSize))
	}
	if s.OverlapPct < 0 || s.OverlapPct > 99 {
		errs = append(errs, fmt.Errorf("overlap_pct must be between 0 and 99, got %d", s.OverlapPct))
	}
	if s.Threshold < 0.0 || s.Threshold > 1.0 {
		errs = append(errs, fmt.Errorf("threshold must be between 0.0 and 1.0, got %v", s.Threshold))
	}
	if s.Hysteresis < 1 || s.Hysteresis > 50 {
		errs = append(errs, fmt.Errorf("hysteresis must be between 1 and 50, got %d", s.Hysteresis))
	}
	if s.AGCDecay < 0.99 || s.AGCDecay > 0.99999 {
		errs = append(errs, fmt.Errorf("agc_decay must be between 0.99 and 0.99999, got %v", s.AGCDecay))
	}
	if s.AGCAttack < 0.0 || s.AGCAttack > 1.0 {
		errs = append(errs, fmt.Errorf("agc_attack must be between 0.0 and 1.0, got %v", s.AGCAttack))
	}
	if s.AGCWarmupBlocks < 0 {
		errs = append(errs, fmt.Errorf("agc_warmup_blocks must not be negative, got %d", s.AGCWarmupBlocks))
	}

	// Nyquist check: tone frequency must be less than half the sample rate
	if s.ToneFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be less than Nyquist frequency (%v Hz)", s.ToneFrequency, s.SampleRate/2))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
