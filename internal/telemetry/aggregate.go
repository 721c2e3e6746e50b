// SPDX-License-Identifier: MIT
package telemetry

import "math"

// Aggregate is the master-side summary over all active channels.
type Aggregate struct {
	THD          float64 `json:"thd"`
	THDN         float64 `json:"thdN"`
	WorstChannel string  `json:"worstChannel"`
}

// ComputeAggregateTHD combines per-channel distortion into a single
// figure using the quadratic mean (root-sum-of-squares over the
// channel count), the standard way to combine independent distortion
// sources. Muted channels are excluded; if every channel is muted the
// result is zero with no worst channel.
//
// WorstChannel is the name of the channel with the highest raw THD
// among the included set, first maximum in slot order winning ties.
func ComputeAggregateTHD(channels []ChannelState) Aggregate {
	var agg Aggregate

	count := 0
	thdSum := 0.0
	thdnSum := 0.0
	worst := -1.0

	for i := range channels {
		ch := &channels[i]
		if ch.Muted {
			continue
		}
		count++
		thdSum += ch.THD * ch.THD
		thdnSum += ch.THDN * ch.THDN
		if ch.THD > worst {
			worst = ch.THD
			agg.WorstChannel = ch.Name
		}
	}

	if count == 0 {
		return Aggregate{}
	}

	agg.THD = math.Sqrt(thdSum / float64(count))
	agg.THDN = math.Sqrt(thdnSum / float64(count))
	return agg
}
