// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"

	"thdscope/internal/config"
)

// Mode selects the analyzer role. There are no internal transitions;
// the mode only changes through explicit configuration.
type Mode int

const (
	// ModeChannelStrip analyzes local input and reports telemetry
	// upstream.
	ModeChannelStrip Mode = iota
	// ModeMasterBrain aggregates telemetry from channel strips into
	// the registry.
	ModeMasterBrain
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeChannelStrip:
		return config.ModeChannel
	case ModeMasterBrain:
		return config.ModeMaster
	default:
		return "unknown"
	}
}

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case config.ModeChannel:
		return ModeChannelStrip, nil
	case config.ModeMaster:
		return ModeMasterBrain, nil
	default:
		return ModeChannelStrip, fmt.Errorf("unknown mode %q", s)
	}
}
