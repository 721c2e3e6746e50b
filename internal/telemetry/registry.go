// SPDX-License-Identifier: MIT
package telemetry

import (
	"fmt"
	"sync"
)

// ChannelState is one registry slot: the last-known measurements for
// a channel plus its UI-facing flags. Name and color are opaque to
// the measurement core.
type ChannelState struct {
	ChannelID int     `json:"channelId"`
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	THD       float64 `json:"thd"`
	THDN      float64 `json:"thdN"`
	Level     float64 `json:"level"`
	PeakLevel float64 `json:"peakLevel"`

	Harmonics [HarmonicCount]float64 `json:"harmonics"`

	Muted  bool `json:"muted"`
	Soloed bool `json:"soloed"`
}

// Registry holds the fixed table of per-channel measurement state.
// Slots are created once and never destroyed; measurements are
// overwritten by the audio callback (locally in channel-strip mode,
// from decoded telemetry in master mode) and flags only by explicit
// user toggles. Updates are last-writer-wins per slot, so message
// interleavings across channels are immaterial.
//
// Snapshot readers (UI, publishers) run off the audio thread, so the
// slots sit behind an RWMutex; writes hold it for a bounded copy of a
// few dozen words.
type Registry struct {
	mu    sync.RWMutex
	slots []ChannelState
}

// NewRegistry creates a registry with count default-initialized
// slots. Slot names default to "CH <n>".
func NewRegistry(count int) *Registry {
	slots := make([]ChannelState, count)
	for i := range slots {
		slots[i].ChannelID = i
		slots[i].Name = fmt.Sprintf("CH %d", i+1)
	}
	return &Registry{slots: slots}
}

// Len returns the slot count.
func (r *Registry) Len() int {
	return len(r.slots)
}

// Apply consumes a decoded telemetry message into its channel slot.
// Out-of-range channel ids are silently discarded and reported as
// false; processing of subsequent messages is unaffected.
func (r *Registry) Apply(msg Message) bool {
	id := int(msg.ChannelID)
	if id < 0 || id >= len(r.slots) {
		return false
	}

	r.mu.Lock()
	slot := &r.slots[id]
	slot.THD = float64(msg.THD)
	slot.THDN = float64(msg.THDN)
	slot.Level = float64(msg.Level)
	slot.PeakLevel = float64(msg.PeakLevel)
	for i, h := range msg.Harmonics {
		slot.Harmonics[i] = float64(h)
	}
	r.mu.Unlock()
	return true
}

// Configure sets the persisted UI state for a slot. Out-of-range ids
// are ignored, mirroring the restore path of the original sessions.
func (r *Registry) Configure(id int, name, color string, muted, soloed bool) {
	if id < 0 || id >= len(r.slots) {
		return
	}
	r.mu.Lock()
	slot := &r.slots[id]
	if name != "" {
		slot.Name = name
	}
	if color != "" {
		slot.Color = color
	}
	slot.Muted = muted
	slot.Soloed = soloed
	r.mu.Unlock()
}

// SetMuted toggles a slot's mute flag. Returns false for unknown ids.
func (r *Registry) SetMuted(id int, muted bool) bool {
	if id < 0 || id >= len(r.slots) {
		return false
	}
	r.mu.Lock()
	r.slots[id].Muted = muted
	r.mu.Unlock()
	return true
}

// SetSoloed toggles a slot's solo flag. Returns false for unknown ids.
func (r *Registry) SetSoloed(id int, soloed bool) bool {
	if id < 0 || id >= len(r.slots) {
		return false
	}
	r.mu.Lock()
	r.slots[id].Soloed = soloed
	r.mu.Unlock()
	return true
}

// Channel returns a copy of one slot. The second result is false for
// unknown ids; there is no way to obtain a reference into the table.
func (r *Registry) Channel(id int) (ChannelState, bool) {
	if id < 0 || id >= len(r.slots) {
		return ChannelState{}, false
	}
	r.mu.RLock()
	state := r.slots[id]
	r.mu.RUnlock()
	return state, true
}

// Snapshot copies all slots into dst, growing it if needed, and
// returns the filled slice. Passing a reused buffer keeps periodic
// publishers allocation-free after the first call.
func (r *Registry) Snapshot(dst []ChannelState) []ChannelState {
	if cap(dst) < len(r.slots) {
		dst = make([]ChannelState, len(r.slots))
	}
	dst = dst[:len(r.slots)]

	r.mu.RLock()
	copy(dst, r.slots)
	r.mu.RUnlock()
	return dst
}

// Reset zeroes all measurement fields so a restarted stream never
// observes stale data. Names, colors and mute/solo flags persist
// across resets; they belong to the session, not the stream.
func (r *Registry) Reset() {
	r.mu.Lock()
	for i := range r.slots {
		slot := &r.slots[i]
		slot.THD = 0
		slot.THDN = 0
		slot.Level = 0
		slot.PeakLevel = 0
		slot.Harmonics = [HarmonicCount]float64{}
	}
	r.mu.Unlock()
}
