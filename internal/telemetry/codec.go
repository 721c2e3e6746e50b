// SPDX-License-Identifier: MIT
/*
Package telemetry implements the fixed-format message protocol that
lets many analyzer instances report measurements to one aggregating
master, plus the channel registry that consumes decoded messages.

Wire format (49 bytes, little-endian floats):

	+--------------+-------------+--------------+------------------------------+
	| Field        | Data Type   | Size (Bytes) | Description                  |
	|--------------+-------------+--------------+------------------------------|
	| Frame start  | byte 0xF0   | 1            | Transport frame marker       |
	| Vendor       | byte 0x7D   | 1            | Application identifier       |
	| Message type | byte 0x01   | 1            | THD telemetry                |
	| Channel ID   | uint8       | 1            | Registry slot, 0..255        |
	| THD          | float32     | 4            | Percent, clamped [0, 100]    |
	| THD+N        | float32     | 4            | Percent, clamped [0, 100]    |
	| Level        | float32     | 4            | Linear RMS                   |
	| Peak level   | float32     | 4            | Linear peak since last send  |
	| Harmonics    | 7 x float32 | 28           | H2 first .. H8 last          |
	| Frame end    | byte 0xF7   | 1            | Transport frame marker       |
	+--------------+-------------+--------------+------------------------------+

Encode and Decode are pure functions over caller-owned buffers, so
they are freely reentrant and allocation-free on the audio path.
*/
package telemetry

import (
	"encoding/binary"
	"math"
)

// HarmonicCount is the number of harmonic magnitudes carried per
// message (H2 through H8).
const HarmonicCount = 7

// Frame layout constants.
const (
	frameStart  = 0xF0
	vendorID    = 0x7D
	typeTHDData = 0x01
	frameEnd    = 0xF7

	// FrameSize is the full encoded length: 3 identifier bytes, a
	// 45-byte payload (1 + 4*4 + 7*4) and the end marker.
	FrameSize = 49
)

// Frame is one encoded telemetry message. Fixed-size by value so
// frames can cross queue boundaries without heap allocation.
type Frame [FrameSize]byte

// Message is the decoded wire value. It has no identity beyond its
// fields; consumers copy it into registry state immediately.
type Message struct {
	ChannelID uint8
	THD       float32
	THDN      float32
	Level     float32
	PeakLevel float32
	Harmonics [HarmonicCount]float32
}

// Encode serializes msg into a fixed-length frame. It never fails.
func Encode(msg Message) Frame {
	var f Frame
	f[0] = frameStart
	f[1] = vendorID
	f[2] = typeTHDData
	f[3] = msg.ChannelID

	pos := 4
	putFloat := func(v float32) {
		binary.LittleEndian.PutUint32(f[pos:], math.Float32bits(v))
		pos += 4
	}

	putFloat(msg.THD)
	putFloat(msg.THDN)
	putFloat(msg.Level)
	putFloat(msg.PeakLevel)
	for _, h := range msg.Harmonics {
		putFloat(h)
	}

	f[pos] = frameEnd
	return f
}

// Decode parses a received byte buffer. It reports false for anything
// that is not a well-formed THD telemetry frame: wrong or missing
// identifier bytes, a truncated payload, or a missing end marker. A
// false return never carries a partially populated message.
//
// The channel id is returned without range validation; the registry
// update path is responsible for discarding out-of-range slots.
func Decode(data []byte) (Message, bool) {
	if len(data) < FrameSize {
		return Message{}, false
	}
	if data[0] != frameStart || data[1] != vendorID || data[2] != typeTHDData {
		return Message{}, false
	}
	if data[FrameSize-1] != frameEnd {
		return Message{}, false
	}

	var msg Message
	msg.ChannelID = data[3]

	pos := 4
	getFloat := func() float32 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
		return v
	}

	msg.THD = getFloat()
	msg.THDN = getFloat()
	msg.Level = getFloat()
	msg.PeakLevel = getFloat()
	for i := range msg.Harmonics {
		msg.Harmonics[i] = getFloat()
	}

	return msg, true
}
