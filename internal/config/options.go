package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DisplayOptions configures which monitor to capture, per spec §4.10's
// select_monitor and §6's monitor range.
type DisplayOptions struct {
	Monitor int `toml:"monitor"` // -1 selects all monitors
}

// VideoOptions configures capture/encode geometry and rate, bounded the
// same as internal/control's set_resolution/set_bitrate ranges.
type VideoOptions struct {
	Width      int `toml:"width"`
	Height     int `toml:"height"`
	FPS        int `toml:"fps"`
	BitrateBps int `toml:"bitrate_bps"`
}

// AudioOptions configures capture sample rate and channel count.
type AudioOptions struct {
	SampleRate int `toml:"sample_rate"`
	Channels   int `toml:"channels"`
}

// NetworkOptions holds the configured network port. Validate range-checks
// Port; the signaling listener address comes from network.listen /
// --listen, not from Port.
type NetworkOptions struct {
	Port int `toml:"port"`
}

// LoggingOptions configures the logrus sink level and format.
type LoggingOptions struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

// Options is the full set of user-configurable settings, persisted as
// TOML per spec §6, ground-truthed on the original's config_manager.cpp
// section layout (display/video/audio/network/logging).
type Options struct {
	Display DisplayOptions `toml:"display"`
	Video   VideoOptions   `toml:"video"`
	Audio   AudioOptions   `toml:"audio"`
	Network NetworkOptions `toml:"network"`
	Logging LoggingOptions `toml:"logging"`
}

// Default returns the baseline Options applied before any config file
// or CLI flag is merged in.
func Default() Options {
	return Options{
		Display: DisplayOptions{Monitor: -1},
		Video:   VideoOptions{Width: 1920, Height: 1080, FPS: 30, BitrateBps: 4_000_000},
		Audio:   AudioOptions{SampleRate: 48000, Channels: 2},
		Network: NetworkOptions{Port: 8443},
		Logging: LoggingOptions{Level: "info", Format: "text"},
	}
}

const (
	minMonitor, maxMonitor = -1, 255
	minFPS, maxFPS         = 1, 240
	minPort, maxPort       = 1024, 65535

	// minWidth/maxWidth, minHeight/maxHeight and minBitrateBps/maxBitrateBps
	// mirror internal/control's unexported set_resolution/set_bitrate
	// bounds; they're duplicated here rather than exported from control
	// because control's bounds govern live updates, not the config file.
	minWidth, maxWidth     = 64, 7680
	minHeight, maxHeight   = 64, 4320
	minBitrateBps, maxBitrateBps = 100_000, 100_000_000
)

// Validate range-checks Options against spec §6's bounds, sharing the
// resolution/bitrate ranges internal/control enforces for live updates.
func (o Options) Validate() error {
	if o.Display.Monitor < minMonitor || o.Display.Monitor > maxMonitor {
		return fmt.Errorf("config: monitor %d outside [%d,%d]", o.Display.Monitor, minMonitor, maxMonitor)
	}
	if o.Video.FPS < minFPS || o.Video.FPS > maxFPS {
		return fmt.Errorf("config: fps %d outside [%d,%d]", o.Video.FPS, minFPS, maxFPS)
	}
	if o.Video.Width < minWidth || o.Video.Width > maxWidth {
		return fmt.Errorf("config: width %d outside [%d,%d]", o.Video.Width, minWidth, maxWidth)
	}
	if o.Video.Height < minHeight || o.Video.Height > maxHeight {
		return fmt.Errorf("config: height %d outside [%d,%d]", o.Video.Height, minHeight, maxHeight)
	}
	if o.Video.BitrateBps < minBitrateBps || o.Video.BitrateBps > maxBitrateBps {
		return fmt.Errorf("config: bitrate %d outside [%d,%d]", o.Video.BitrateBps, minBitrateBps, maxBitrateBps)
	}
	if o.Network.Port < minPort || o.Network.Port > maxPort {
		return fmt.Errorf("config: port %d outside [%d,%d]", o.Network.Port, minPort, maxPort)
	}
	return nil
}

// Load reads and validates Options from a TOML file at path, which is
// first passed through ResolvePath. Missing files are not an error —
// Load returns Default() unchanged.
func Load(path string) (Options, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return Options{}, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Options{}, fmt.Errorf("config: read %s: %w", resolved, err)
	}
	opts := Default()
	if err := toml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("config: parse %s: %w", resolved, err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Save validates and writes opts as TOML to path, which is first passed
// through ResolvePath.
func Save(path string, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	resolved, err := ResolvePath(path)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", resolved, err)
	}
	return nil
}
