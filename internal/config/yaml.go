// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"thdscope/pkg/bitint"
)

// LoadConfig loads configuration from a YAML file specified by path.
// If path is empty it searches default locations ("thdscope.yaml").
// If no file is found, built-in defaults are used. Environment
// variable overrides are applied after loading, then the final
// configuration is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{"thdscope.yaml", "config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration against the engine's limits.
func (c *Config) Validate() error {
	if c.Mode != ModeChannel && c.Mode != ModeMaster {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeChannel, ModeMaster, c.Mode)
	}
	if c.ChannelID < 0 || c.ChannelID >= ChannelCount {
		return fmt.Errorf("channel_id must be in [0, %d), got %d", ChannelCount, c.ChannelID)
	}
	if !bitint.IsPowerOfTwo(c.FFTSize) || c.FFTSize > MaxFFTSize {
		return fmt.Errorf("fft_size must be a power of 2 <= %d, got %d", MaxFFTSize, c.FFTSize)
	}
	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		return fmt.Errorf("sample_rate must be in [%d, %d], got %g", MinSampleRate, MaxSampleRate, c.SampleRate)
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("frames_per_buffer must be positive, got %d", c.FramesPerBuffer)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	for _, preset := range c.ChannelPresets {
		if preset.ID < 0 || preset.ID >= ChannelCount {
			return fmt.Errorf("channel preset id %d out of range [0, %d)", preset.ID, ChannelCount)
		}
	}
	return nil
}

// applyEnvOverrides applies THDSCOPE_* environment variables on top of
// whatever the file or defaults provided.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("THDSCOPE_MODE"); ok {
		c.Mode = val
	}
	if val, ok := os.LookupEnv("THDSCOPE_CHANNEL_ID"); ok {
		if id, err := strconv.Atoi(val); err == nil {
			c.ChannelID = id
		}
	}
	if val, ok := os.LookupEnv("THDSCOPE_TARGET_ADDRESS"); ok {
		c.TargetAddress = val
	}
	if val, ok := os.LookupEnv("THDSCOPE_LISTEN_ADDRESS"); ok {
		c.ListenAddress = val
	}
	if val, ok := os.LookupEnv("THDSCOPE_VERBOSE"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Verbose = bVal
		}
	}
}
