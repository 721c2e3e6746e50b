// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "thdscope.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Mode != ModeChannel {
		t.Errorf("default mode = %q, want %q", cfg.Mode, ModeChannel)
	}
	if cfg.FFTSize != DefaultFFTSize {
		t.Errorf("default fft_size = %d, want %d", cfg.FFTSize, DefaultFFTSize)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FullFile(t *testing.T) {
	path := writeTempConfig(t, `
mode: master
channel_id: 3
sample_rate: 44100
fft_size: 32768
listen_address: "127.0.0.1:9470"
channel_presets:
  - id: 0
    name: "Kick"
    color: "#ff0000"
    muted: true
  - id: 5
    name: "Vox"
    soloed: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mode != ModeMaster {
		t.Errorf("mode = %q, want %q", cfg.Mode, ModeMaster)
	}
	if cfg.ChannelID != 3 {
		t.Errorf("channel_id = %d, want 3", cfg.ChannelID)
	}
	if cfg.FFTSize != 32768 {
		t.Errorf("fft_size = %d, want 32768", cfg.FFTSize)
	}
	if len(cfg.ChannelPresets) != 2 {
		t.Fatalf("presets = %d, want 2", len(cfg.ChannelPresets))
	}
	if !cfg.ChannelPresets[0].Muted || cfg.ChannelPresets[0].Name != "Kick" {
		t.Errorf("preset 0 = %+v, want muted Kick", cfg.ChannelPresets[0])
	}
	if !cfg.ChannelPresets[1].Soloed || cfg.ChannelPresets[1].ID != 5 {
		t.Errorf("preset 1 = %+v, want soloed slot 5", cfg.ChannelPresets[1])
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "hybrid" }},
		{"negative channel id", func(c *Config) { c.ChannelID = -1 }},
		{"channel id too large", func(c *Config) { c.ChannelID = ChannelCount }},
		{"fft size not power of two", func(c *Config) { c.FFTSize = 8191 }},
		{"fft size too large", func(c *Config) { c.FFTSize = MaxFFTSize * 2 }},
		{"sample rate too low", func(c *Config) { c.SampleRate = 4000 }},
		{"zero block size", func(c *Config) { c.FramesPerBuffer = 0 }},
		{"preset out of range", func(c *Config) {
			c.ChannelPresets = []ChannelPreset{{ID: ChannelCount}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("THDSCOPE_MODE", "master")
	t.Setenv("THDSCOPE_CHANNEL_ID", "2")
	t.Setenv("THDSCOPE_LISTEN_ADDRESS", "127.0.0.1:9470")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mode != ModeMaster {
		t.Errorf("mode = %q, want %q", cfg.Mode, ModeMaster)
	}
	if cfg.ChannelID != 2 {
		t.Errorf("channel_id = %d, want 2", cfg.ChannelID)
	}
	if cfg.ListenAddress != "127.0.0.1:9470" {
		t.Errorf("listen_address = %q", cfg.ListenAddress)
	}
}
