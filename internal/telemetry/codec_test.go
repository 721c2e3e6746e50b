// SPDX-License-Identifier: MIT
package telemetry

import (
	"math/rand"
	"testing"
)

func TestEncodeFrameLayout(t *testing.T) {
	msg := Message{ChannelID: 5, THD: 1.5, THDN: 2.5, Level: 0.7, PeakLevel: 0.9}
	f := Encode(msg)

	if f[0] != 0xF0 {
		t.Errorf("frame start = %#x, want 0xF0", f[0])
	}
	if f[1] != 0x7D {
		t.Errorf("vendor id = %#x, want 0x7D", f[1])
	}
	if f[2] != 0x01 {
		t.Errorf("message type = %#x, want 0x01", f[2])
	}
	if f[3] != 5 {
		t.Errorf("channel id byte = %d, want 5", f[3])
	}
	if f[FrameSize-1] != 0xF7 {
		t.Errorf("frame end = %#x, want 0xF7", f[FrameSize-1])
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		msg := Message{
			ChannelID: uint8(rng.Intn(256)),
			THD:       rng.Float32() * 100,
			THDN:      rng.Float32() * 100,
			Level:     rng.Float32(),
			PeakLevel: rng.Float32(),
		}
		for i := range msg.Harmonics {
			msg.Harmonics[i] = rng.Float32()
		}

		f := Encode(msg)
		got, ok := Decode(f[:])
		if !ok {
			t.Fatalf("Decode rejected a valid frame: %+v", msg)
		}
		if got != msg {
			t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, msg)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	valid := Encode(Message{ChannelID: 1, THD: 3})

	wrongVendor := valid
	wrongVendor[1] = 0x42

	wrongType := valid
	wrongType[2] = 0x02

	wrongStart := valid
	wrongStart[0] = 0x00

	noTerminator := valid
	noTerminator[FrameSize-1] = 0x00

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"single byte", []byte{0xF0}},
		{"truncated frame", valid[:FrameSize-1]},
		{"wrong start marker", wrongStart[:]},
		{"wrong vendor id", wrongVendor[:]},
		{"wrong message type", wrongType[:]},
		{"missing end marker", noTerminator[:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := Decode(tt.data)
			if ok {
				t.Fatal("Decode accepted a malformed frame")
			}
			if msg != (Message{}) {
				t.Errorf("rejected decode partially populated a message: %+v", msg)
			}
		})
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	msg := Message{ChannelID: 2, Level: 0.5}
	f := Encode(msg)

	padded := append(f[:], 0xDE, 0xAD)
	got, ok := Decode(padded)
	if !ok {
		t.Fatal("Decode rejected a frame with trailing bytes")
	}
	if got != msg {
		t.Errorf("got %+v, want %+v", got, msg)
	}
}

func TestCodecZeroAllocs(t *testing.T) {
	msg := Message{ChannelID: 3, THD: 1.2, THDN: 2.3, Level: 0.4, PeakLevel: 0.5}

	allocs := testing.AllocsPerRun(100, func() {
		f := Encode(msg)
		_, _ = Decode(f[:])
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in encode/decode, got %.1f", allocs)
	}
}
