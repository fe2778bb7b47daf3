// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ColonelBlimp/pskrtty/internal/acquire"
	"github.com/ColonelBlimp/pskrtty/internal/audio"
	"github.com/ColonelBlimp/pskrtty/internal/decode"
	"github.com/ColonelBlimp/pskrtty/internal/dsp"
)

const (
	AppName       = "pskrtty"
	ConfigType    = "yaml"
	DefaultConfig = `# RTTY / PSK31 Decoder Configuration

# Decode mode: rtty or psk
mode: rtty

# Audio input
device_index: -1        # -1 for default device
sample_rate: 9615       # Sampling rate in Hz; framing and bins follow the rate and window lengths
buffer_size: 256        # Capture frames per callback
input_scale: 512        # Full-scale input maps to ±input_scale (10-bit converter range)
wav_file: ""            # Decode a mono 16-bit PCM WAV file instead of live audio
wav_realtime: true      # Pace WAV playback at the sample rate

# RTTY
rtty_mark_frequency: 1000   # Mark tone in Hz
rtty_space_frequency: 830   # Space tone in Hz
rtty_baud: 45.45            # Symbol rate of the gated data-bit clock
rtty_window: 40             # Autocorrelation window length in samples
rtty_dc_limit: 30           # Same-sign samples that mark a window as DC (0 disables)
rtty_threshold: 5000        # Initial zero-lag threshold

# PSK31
psk_baud: 31.25             # Symbol rate
psk_half_window: 13         # Cross-correlation half window in samples
psk_bin_threshold: 56       # Initial peak delay threshold in tenths of a sample
psk_threshold: -600         # Initial zero-lag threshold (negative for a steady carrier)

# Threshold tracking
threshold_divider_min: 7
threshold_divider_max: 11
threshold_divider_default: 8
level_average_cycles: 90    # Cycles per rolling zero-lag average
auto_threshold: true        # Re-derive the threshold after every average
threshold_bound: 0          # Largest derived threshold magnitude, 0 disables the cap

# Faults
error_clear_cycles: 10000   # Cycles a fault stays displayed after it was last raised

# Output
metrics_addr: ""            # Listen address for Prometheus /metrics, empty disables
debug: false                # Enable debug output
`
)

// Settings holds all application configuration
type Settings struct {
	Mode string `mapstructure:"mode"`

	// Audio input
	DeviceIndex int     `mapstructure:"device_index"`
	SampleRate  int     `mapstructure:"sample_rate"`
	BufferSize  int     `mapstructure:"buffer_size"`
	InputScale  float64 `mapstructure:"input_scale"`
	WAVFile     string  `mapstructure:"wav_file"`
	WAVRealtime bool    `mapstructure:"wav_realtime"`

	// RTTY
	RTTYMarkFrequency  int     `mapstructure:"rtty_mark_frequency"`
	RTTYSpaceFrequency int     `mapstructure:"rtty_space_frequency"`
	RTTYBaud           float64 `mapstructure:"rtty_baud"`
	RTTYWindow         int     `mapstructure:"rtty_window"`
	RTTYDCLimit        int     `mapstructure:"rtty_dc_limit"`
	RTTYThreshold      int64   `mapstructure:"rtty_threshold"`

	// PSK31
	PSKBaud         float64 `mapstructure:"psk_baud"`
	PSKHalfWindow   int     `mapstructure:"psk_half_window"`
	PSKBinThreshold int     `mapstructure:"psk_bin_threshold"`
	PSKThreshold    int64   `mapstructure:"psk_threshold"`

	// Threshold tracking
	DividerMin         int   `mapstructure:"threshold_divider_min"`
	DividerMax         int   `mapstructure:"threshold_divider_max"`
	DividerDefault     int   `mapstructure:"threshold_divider_default"`
	LevelAverageCycles int   `mapstructure:"level_average_cycles"`
	AutoThreshold      bool  `mapstructure:"auto_threshold"`
	ThresholdBound     int64 `mapstructure:"threshold_bound"`

	ErrorClearCycles int `mapstructure:"error_clear_cycles"`

	// Output
	MetricsAddr string `mapstructure:"metrics_addr"`
	Debug       bool   `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/pskrtty/
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

	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// If no file was found, create the default in the XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
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
	viper.SetDefault("mode", "rtty")
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 9615)
	viper.SetDefault("buffer_size", 256)
	viper.SetDefault("input_scale", 512)
	viper.SetDefault("wav_file", "")
	viper.SetDefault("wav_realtime", true)
	viper.SetDefault("rtty_mark_frequency", 1000)
	viper.SetDefault("rtty_space_frequency", 830)
	viper.SetDefault("rtty_baud", 45.45)
	viper.SetDefault("rtty_window", 40)
	viper.SetDefault("rtty_dc_limit", 30)
	viper.SetDefault("rtty_threshold", 5000)
	viper.SetDefault("psk_baud", 31.25)
	viper.SetDefault("psk_half_window", 13)
	viper.SetDefault("psk_bin_threshold", 56)
	viper.SetDefault("psk_threshold", -600)
	viper.SetDefault("threshold_divider_min", 7)
	viper.SetDefault("threshold_divider_max", 11)
	viper.SetDefault("threshold_divider_default", 8)
	viper.SetDefault("level_average_cycles", 90)
	viper.SetDefault("auto_threshold", true)
	viper.SetDefault("threshold_bound", 0)
	viper.SetDefault("error_clear_cycles", 10000)
	viper.SetDefault("metrics_addr", "")
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

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	if _, err := decode.ParseMode(s.Mode); err != nil {
		errs = append(errs, fmt.Errorf("mode must be rtty or psk, got %q", s.Mode))
	}

	// Audio input
	if s.SampleRate < 4000 || s.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 4000 and 48000 Hz, got %d", s.SampleRate))
	}
	if s.BufferSize < 16 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 16 and 8192, got %d", s.BufferSize))
	}
	if s.InputScale <= 0 || s.InputScale > math.MaxInt16 {
		errs = append(errs, fmt.Errorf("input_scale must be between 1 and %d, got %v", math.MaxInt16, s.InputScale))
	}

	// RTTY
	nyquist := s.SampleRate / 2
	for _, tone := range []struct {
		key string
		hz  int
	}{
		{"rtty_mark_frequency", s.RTTYMarkFrequency},
		{"rtty_space_frequency", s.RTTYSpaceFrequency},
	} {
		if tone.hz < 100 || tone.hz >= nyquist {
			errs = append(errs, fmt.Errorf("%s must be between 100 Hz and the Nyquist frequency (%d Hz), got %d", tone.key, nyquist, tone.hz))
		}
	}
	if s.RTTYMarkFrequency == s.RTTYSpaceFrequency {
		errs = append(errs, fmt.Errorf("rtty_mark_frequency and rtty_space_frequency must differ, both are %d", s.RTTYMarkFrequency))
	}
	if s.RTTYBaud <= 0 || s.RTTYBaud > 300 {
		errs = append(errs, fmt.Errorf("rtty_baud must be between 0 and 300, got %v", s.RTTYBaud))
	}
	if s.RTTYWindow < 8 || s.RTTYWindow > 1024 {
		errs = append(errs, fmt.Errorf("rtty_window must be between 8 and 1024, got %d", s.RTTYWindow))
	}
	if s.RTTYDCLimit < 0 || s.RTTYDCLimit > s.RTTYWindow {
		errs = append(errs, fmt.Errorf("rtty_dc_limit must be between 0 and rtty_window, got %d", s.RTTYDCLimit))
	}
	if s.RTTYThreshold <= 0 {
		errs = append(errs, fmt.Errorf("rtty_threshold must be positive, got %d", s.RTTYThreshold))
	}

	// PSK31
	if s.PSKBaud <= 0 || s.PSKBaud > 300 {
		errs = append(errs, fmt.Errorf("psk_baud must be between 0 and 300, got %v", s.PSKBaud))
	}
	if s.PSKHalfWindow < 4 || s.PSKHalfWindow > 512 {
		errs = append(errs, fmt.Errorf("psk_half_window must be between 4 and 512, got %d", s.PSKHalfWindow))
	}
	if s.PSKBinThreshold < 0 {
		errs = append(errs, fmt.Errorf("psk_bin_threshold must not be negative, got %d", s.PSKBinThreshold))
	}
	if s.PSKThreshold >= 0 {
		errs = append(errs, fmt.Errorf("psk_threshold must be negative, got %d", s.PSKThreshold))
	}

	// Threshold tracking
	if s.DividerMin < 1 || s.DividerMax < s.DividerMin {
		errs = append(errs, fmt.Errorf("threshold_divider_min/max must satisfy 1 <= min <= max, got %d/%d", s.DividerMin, s.DividerMax))
	} else if s.DividerDefault < s.DividerMin || s.DividerDefault > s.DividerMax {
		errs = append(errs, fmt.Errorf("threshold_divider_default must be between %d and %d, got %d", s.DividerMin, s.DividerMax, s.DividerDefault))
	}
	if s.LevelAverageCycles < 1 {
		errs = append(errs, fmt.Errorf("level_average_cycles must be positive, got %d", s.LevelAverageCycles))
	}
	if s.ThresholdBound < 0 {
		errs = append(errs, fmt.Errorf("threshold_bound must not be negative, got %d", s.ThresholdBound))
	}
	if s.ErrorClearCycles < 1 {
		errs = append(errs, fmt.Errorf("error_clear_cycles must be positive, got %d", s.ErrorClearCycles))
	}

	// Window geometry only makes sense once the rates and tones are sound.
	if len(errs) == 0 {
		cfg := s.DecodeConfig()
		if err := cfg.CheckRTTYGeometry(s.RTTYWindow); err != nil {
			errs = append(errs, fmt.Errorf("rtty_window %d does not fit rtty_baud and the tones at %d Hz: %w", s.RTTYWindow, s.SampleRate, err))
		}
		if err := cfg.CheckPSKGeometry(s.PSKHalfWindow); err != nil {
			errs = append(errs, fmt.Errorf("psk_half_window %d does not fit psk_baud and the %d Hz carrier at %d Hz: %w", s.PSKHalfWindow, cfg.PSK.CarrierHz, s.SampleRate, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DecodeMode returns the configured decode mode.
func (s *Settings) DecodeMode() decode.Mode {
	m, _ := decode.ParseMode(s.Mode)
	return m
}

// AcquireConfig returns the acquisition buffer configuration.
func (s *Settings) AcquireConfig() acquire.Config {
	cfg := acquire.DefaultConfig()
	cfg.Window = s.RTTYWindow
	cfg.HalfWindow = s.PSKHalfWindow
	cfg.SampleRate = s.SampleRate
	return cfg
}

// DecodeConfig returns the decode scheduler configuration. Framing run
// lengths, the PSK peak search and the bin offset are derived from the
// sample rate, symbol rates and window lengths.
func (s *Settings) DecodeConfig() decode.Config {
	cfg := decode.DefaultConfig()
	cfg.SampleRate = s.SampleRate
	cfg.ErrorClearCycles = s.ErrorClearCycles

	cfg.RTTY.MarkHz = s.RTTYMarkFrequency
	cfg.RTTY.SpaceHz = s.RTTYSpaceFrequency
	cfg.RTTY.MilliBaud = milliBaud(s.RTTYBaud)
	cfg.RTTY.DCLimit = s.RTTYDCLimit
	cfg.RTTY.Threshold.Default = s.RTTYThreshold
	cfg.RTTY.Threshold.DividerMin = s.DividerMin
	cfg.RTTY.Threshold.DividerMax = s.DividerMax
	cfg.RTTY.Threshold.DividerDefault = s.DividerDefault
	cfg.RTTY.Threshold.AverageCycles = s.LevelAverageCycles
	cfg.RTTY.Threshold.Auto = s.AutoThreshold
	cfg.RTTY.Threshold.Bound = s.ThresholdBound

	cfg.PSK.MilliBaud = milliBaud(s.PSKBaud)
	cfg.PSK.Threshold.Default = s.PSKThreshold
	cfg.PSK.Threshold.DefaultBinThreshold = dsp.Decilag(s.PSKBinThreshold)
	cfg.PSK.Threshold.AverageCycles = s.LevelAverageCycles
	cfg.PSK.Threshold.Auto = s.AutoThreshold
	cfg.PSK.Threshold.Bound = s.ThresholdBound

	// An unusable geometry is left as is for Validate and the scheduler
	// to reject.
	if g, err := cfg.WithGeometry(s.RTTYWindow, s.PSKHalfWindow); err == nil {
		cfg = g
	}
	return cfg
}

// CaptureConfig returns the live audio capture configuration.
func (s *Settings) CaptureConfig() audio.Config {
	return audio.Config{
		DeviceIndex: s.DeviceIndex,
		SampleRate:  uint32(s.SampleRate),
		BufferSize:  uint32(s.BufferSize),
		InputScale:  float32(s.InputScale),
	}
}

// PlayerConfig returns the WAV playback configuration.
func (s *Settings) PlayerConfig() audio.PlayerConfig {
	return audio.PlayerConfig{
		SampleRate: s.SampleRate,
		BlockSize:  s.BufferSize,
		InputScale: float32(s.InputScale),
		Realtime:   s.WAVRealtime,
	}
}

func milliBaud(baud float64) int {
	return int(math.Round(baud * 1000))
}
