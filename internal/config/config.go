// SPDX-License-Identifier: MIT
//
// Package config holds the runtime configuration for the analyzer.
// Values come from built-in defaults, an optional YAML file and
// command line flags, in that order of precedence.
package config

// Core configuration constants that define the boundaries and defaults
// for the analyzer engine.
const (
	// Default values for the analyzer configuration.
	DefaultChannels        = 2            // Stereo input, mixed to mono for analysis
	DefaultDeviceID        = MinDeviceID  // System default input device
	DefaultFramesPerBuffer = 512          // Balanced latency/performance
	DefaultLowLatency      = false        // Standard latency mode
	DefaultSampleRate      = 48000        // Studio-rate audio
	DefaultFFTSize         = 8192         // Analysis window length (power of 2)
	DefaultMode            = ModeChannel  // Measure locally, report upstream
	DefaultChannelID       = 0            // First registry slot
	DefaultListenAddress   = ""           // No inbound telemetry unless set
	DefaultTargetAddress   = ""           // No outbound telemetry unless set
	DefaultRecord          = false        // Don't capture the input by default
	DefaultOutputFile      = ""           // Auto-generated filename
	DefaultVerbosity       = false        // Quiet operation

	// Hardware and processing limits.
	MinDeviceID   = -1     // -1 represents the system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxFFTSize    = 32768  // Largest supported analysis window

	// ChannelCount is the number of registry slots. Telemetry messages
	// addressing slots outside [0, ChannelCount) are discarded.
	ChannelCount = 8
)

// Mode selects between the two analyzer roles.
const (
	ModeChannel = "channel" // Channel strip: analyze locally, send telemetry
	ModeMaster  = "master"  // Master brain: aggregate telemetry from strips
)

// ChannelPreset carries the persisted per-channel UI state. The engine
// treats name and color as opaque; only mute/solo affect aggregation.
type ChannelPreset struct {
	ID     int    `yaml:"id"`
	Name   string `yaml:"name"`
	Color  string `yaml:"color"`
	Muted  bool   `yaml:"muted"`
	Soloed bool   `yaml:"soloed"`
}

// Config holds all runtime configuration options for the analyzer.
type Config struct {
	// Analyzer role.
	Mode      string `yaml:"mode"`       // "channel" or "master"
	ChannelID int    `yaml:"channel_id"` // This instance's registry slot

	// Audio device settings.
	Channels        int     `yaml:"channels"`          // Input channels captured (mixed to mono)
	DeviceID        int     `yaml:"device"`            // Input device identifier
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Host block size in frames
	LowLatency      bool    `yaml:"low_latency"`       // Use low latency mode
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz
	FFTSize         int     `yaml:"fft_size"`          // Analysis window length (power of 2)

	// Telemetry transport.
	ListenAddress string `yaml:"listen_address"` // UDP address to receive frames (master)
	TargetAddress string `yaml:"target_address"` // UDP address to send frames (channel)

	// Snapshot publishing for UI consumers.
	WebSocketPort string `yaml:"websocket_port"` // Empty disables the broadcast server

	// Capture options.
	Record     bool   `yaml:"record"`      // Record the analyzed mono signal
	OutputFile string `yaml:"output_file"` // WAV output path

	// Persisted per-channel state.
	ChannelPresets []ChannelPreset `yaml:"channel_presets"`

	// Debug options.
	Verbose bool   `yaml:"verbose"`
	Command string `yaml:"-"` // One-off command to execute (not persisted)
	Run     bool   `yaml:"-"` // Whether to start the engine after flag parsing
}

// NewConfig creates a Config with default values, the base before
// applying a YAML file or command line arguments.
func NewConfig() *Config {
	return &Config{
		Mode:            DefaultMode,
		ChannelID:       DefaultChannelID,
		Channels:        DefaultChannels,
		DeviceID:        DefaultDeviceID,
		FramesPerBuffer: DefaultFramesPerBuffer,
		LowLatency:      DefaultLowLatency,
		SampleRate:      DefaultSampleRate,
		FFTSize:         DefaultFFTSize,
		ListenAddress:   DefaultListenAddress,
		TargetAddress:   DefaultTargetAddress,
		Record:          DefaultRecord,
		OutputFile:      DefaultOutputFile,
		Verbose:         DefaultVerbosity,
	}
}
