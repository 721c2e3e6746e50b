// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync"
	"testing"
	"time"

	"thdscope/internal/config"
	"thdscope/internal/telemetry"
	"thdscope/pkg/siggen"
)

// mockTransport captures sent payloads and signals each delivery so
// tests can wait for the sender goroutine without sleeping.
type mockTransport struct {
	mu        sync.Mutex
	payloads  [][]byte
	delivered chan struct{}
	closed    bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{delivered: make(chan struct{}, 64)}
}

func (m *mockTransport) Send(data []byte) error {
	m.mu.Lock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.payloads = append(m.payloads, buf)
	m.mu.Unlock()

	select {
	case m.delivered <- struct{}{}:
	default:
	}
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payloads)
}

func (m *mockTransport) last() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.payloads) == 0 {
		return nil
	}
	return m.payloads[len(m.payloads)-1]
}

func (m *mockTransport) waitForDelivery(t *testing.T) {
	t.Helper()
	select {
	case <-m.delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for telemetry delivery")
	}
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.FFTSize = 1024
	cfg.FramesPerBuffer = 256
	cfg.Channels = 2
	return cfg
}

// feedWindow pushes exactly enough blocks to fill the analysis window
// once, returning after the final (analyzing) block.
func feedWindow(e *Engine, cfg *config.Config, mono []float64) {
	block := cfg.FramesPerBuffer
	for off := 0; off+block <= len(mono); off += block {
		e.ProcessBlock(siggen.Interleave(mono[off:off+block], cfg.Channels))
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = "broadcast"
	if _, err := NewEngine(cfg, nil, nil); err == nil {
		t.Error("expected error for unknown mode")
	}

	cfg = testConfig()
	cfg.ChannelID = config.ChannelCount
	if _, err := NewEngine(cfg, nil, nil); err == nil {
		t.Error("expected error for out-of-range channel id")
	}

	cfg = testConfig()
	cfg.FFTSize = 1000
	if _, err := NewEngine(cfg, nil, nil); err == nil {
		t.Error("expected error for non power-of-2 window")
	}
}

func TestChannelStripStagesTelemetry(t *testing.T) {
	cfg := testConfig()
	cfg.ChannelID = 3
	sink := newMockTransport()

	e, err := NewEngine(cfg, sink, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	// Bin-centered tone so the measurement is stable block to block.
	freq := 40 * cfg.SampleRate / float64(cfg.FFTSize)
	mono := siggen.Sine(cfg.FFTSize, cfg.SampleRate, freq, 0.5)
	feedWindow(e, cfg, mono)

	sink.waitForDelivery(t)

	payload := sink.last()
	if len(payload) != telemetry.FrameSize {
		t.Fatalf("payload size = %d, want %d", len(payload), telemetry.FrameSize)
	}

	msg, ok := telemetry.Decode(payload)
	if !ok {
		t.Fatal("sent payload did not decode")
	}
	if msg.ChannelID != 3 {
		t.Errorf("channel id = %d, want 3", msg.ChannelID)
	}
	if msg.THD > 0.1 {
		t.Errorf("pure tone THD = %f%%, want near zero", msg.THD)
	}
	wantRMS := 0.5 / math.Sqrt2
	if math.Abs(float64(msg.Level)-wantRMS) > 0.01 {
		t.Errorf("level = %f, want %f", msg.Level, wantRMS)
	}
	if msg.PeakLevel < 0.45 || msg.PeakLevel > 0.55 {
		t.Errorf("peak = %f, want about 0.5", msg.PeakLevel)
	}

	// The same values must land in this instance's own registry slot.
	state, ok := e.Registry().Channel(3)
	if !ok {
		t.Fatal("registry slot 3 missing")
	}
	if state.THD != float64(msg.THD) || state.Level != float64(msg.Level) {
		t.Errorf("registry mirror (thd %f, level %f) != sent (thd %f, level %f)",
			state.THD, state.Level, msg.THD, msg.Level)
	}
}

func TestMasterBrainAppliesInbound(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = config.ModeMaster

	inbound := make(chan telemetry.Frame, 8)
	inbound <- telemetry.Encode(telemetry.Message{ChannelID: 2, THD: 1.5, Level: 0.25})
	inbound <- telemetry.Encode(telemetry.Message{ChannelID: 2, THD: 2.5, Level: 0.30})
	inbound <- telemetry.Encode(telemetry.Message{ChannelID: 5, THD: 0.8, Level: 0.10})

	// Out-of-range channel ids must be discarded without disturbing
	// the rest of the batch.
	bad := telemetry.Encode(telemetry.Message{ChannelID: 200, THD: 99})
	inbound <- bad

	e, err := NewEngine(cfg, nil, inbound)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	e.ProcessBlock(make([]float32, cfg.FramesPerBuffer*cfg.Channels))

	state, _ := e.Registry().Channel(2)
	if state.THD != 2.5 || state.Level != 0.30 {
		t.Errorf("slot 2 = (thd %f, level %f), want last-written (2.5, 0.30)", state.THD, state.Level)
	}
	state, _ = e.Registry().Channel(5)
	if state.THD != 0.8 {
		t.Errorf("slot 5 thd = %f, want 0.8", state.THD)
	}
	for _, id := range []int{0, 1, 3, 4, 6, 7} {
		state, _ := e.Registry().Channel(id)
		if state.THD != 0 {
			t.Errorf("slot %d thd = %f, want untouched zero", id, state.THD)
		}
	}
}

func TestMasterBrainDoesNotSend(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = config.ModeMaster
	sink := newMockTransport()

	e, err := NewEngine(cfg, sink, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	freq := 40 * cfg.SampleRate / float64(cfg.FFTSize)
	mono := siggen.Sine(cfg.FFTSize, cfg.SampleRate, freq, 0.5)
	feedWindow(e, cfg, mono)

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sink.count() != 0 {
		t.Errorf("master mode sent %d frames, want 0", sink.count())
	}

	// Local analysis still runs for the master's own input.
	if e.LastResult().LevelRMS == 0 {
		t.Error("master mode produced no local analysis")
	}
}

func TestNoAnalysisBeforeWindowFull(t *testing.T) {
	cfg := testConfig()
	e, err := NewEngine(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	mono := siggen.Sine(cfg.FramesPerBuffer, cfg.SampleRate, 440, 0.5)
	e.ProcessBlock(siggen.Interleave(mono, cfg.Channels))

	if got := e.LastResult(); got.LevelRMS != 0 || got.THDPercent != 0 {
		t.Errorf("analysis ran before window filled: %+v", got)
	}
}

func TestResetClearsState(t *testing.T) {
	cfg := testConfig()
	e, err := NewEngine(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	freq := 40 * cfg.SampleRate / float64(cfg.FFTSize)
	mono := siggen.Sine(cfg.FFTSize, cfg.SampleRate, freq, 0.5)
	feedWindow(e, cfg, mono)

	if e.LastResult().LevelRMS == 0 {
		t.Fatal("expected analysis before reset")
	}

	e.Reset()

	if got := e.LastResult(); got.LevelRMS != 0 {
		t.Errorf("last result survived reset: %+v", got)
	}
	state, _ := e.Registry().Channel(0)
	if state.THD != 0 || state.Level != 0 {
		t.Errorf("registry measurements survived reset: %+v", state)
	}

	// The next window must be built entirely from fresh samples.
	e.ProcessBlock(siggen.Interleave(siggen.Silence(cfg.FramesPerBuffer), cfg.Channels))
	if got := e.LastResult(); got.LevelRMS != 0 {
		t.Errorf("analysis ran on a partially refilled window: %+v", got)
	}
}

func TestProcessBlockZeroAlloc(t *testing.T) {
	cfg := testConfig()
	e, err := NewEngine(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	freq := 40 * cfg.SampleRate / float64(cfg.FFTSize)
	mono := siggen.Sine(cfg.FramesPerBuffer, cfg.SampleRate, freq, 0.5)
	block := siggen.Interleave(mono, cfg.Channels)

	// Warm-up fills the window so the measured runs include analysis
	// and telemetry staging.
	feedWindow(e, cfg, siggen.Sine(cfg.FFTSize, cfg.SampleRate, freq, 0.5))

	allocs := testing.AllocsPerRun(100, func() {
		e.ProcessBlock(block)
	})
	if allocs > 0 {
		t.Errorf("ProcessBlock allocated %f times per run, want 0", allocs)
	}
}

func BenchmarkProcessBlock(b *testing.B) {
	cfg := testConfig()
	cfg.FFTSize = config.DefaultFFTSize
	e, err := NewEngine(cfg, nil, nil)
	if err != nil {
		b.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Close()

	mono := siggen.Sine(cfg.FramesPerBuffer, cfg.SampleRate, 1000, 0.5)
	block := siggen.Interleave(mono, cfg.Channels)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		e.ProcessBlock(block)
	}
}
