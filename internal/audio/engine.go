// SPDX-License-Identifier: MIT
/*
Package audio implements the real-time analyzer engine:
- Lock-free audio capture using PortAudio
- Multi-channel mixdown feeding a fixed-size THD analysis window
- Telemetry staging and draining once per block
- WAV capture of the analyzed signal with atomic state management

Thread safety:
- All measurement state is mutated only on the audio callback
- Buffers are pre-allocated so the hot path never allocates
- Telemetry hand-off uses bounded channels with drop-on-full
*/
package audio

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"thdscope/internal/analysis"
	"thdscope/internal/config"
	applog "thdscope/internal/log"
	"thdscope/internal/telemetry"
	"thdscope/internal/transport"
)

// outboundDepth bounds the staging queue between the audio callback
// and the telemetry sender goroutine.
const outboundDepth = 64

// Engine owns one analyzer instance's processing state. Its lifecycle
// is prepare (NewEngine), process (one call per host block) and reset.
type Engine struct {
	// Core configuration and role.
	cfg        *config.Config
	mode       Mode
	channelID  int
	sampleRate float64
	channels   int

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Analysis pipeline, all pre-allocated.
	mono      []float64 // mixdown buffer, one host block
	ring      *analysis.Ring
	windowBuf []float64 // ordered window handed to the analyzer
	analyzer  *analysis.Analyzer
	registry  *telemetry.Registry

	// Peak tracking since the last telemetry send (block peaks are a
	// host-level concern, not the analyzer's).
	peakSinceSend float64

	// Telemetry hand-off.
	outbound   chan telemetry.Frame
	inbound    <-chan telemetry.Frame
	sink       transport.Transport
	senderStop chan struct{}
	senderWG   sync.WaitGroup

	// Last local analysis, readable off the audio thread.
	lastMu     sync.RWMutex
	lastResult analysis.Result

	// Recording state and buffers.
	isRecording int32 // atomic flag
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer
}

// NewEngine allocates all processing state up front. sink receives
// encoded telemetry frames in channel-strip mode (nil disables
// sending); inbound delivers received frames in master mode (nil
// disables receiving). Opening the capture stream is a separate step.
func NewEngine(cfg *config.Config, sink transport.Transport, inbound <-chan telemetry.Frame) (*Engine, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if cfg.ChannelID < 0 || cfg.ChannelID >= config.ChannelCount {
		return nil, fmt.Errorf("channel id %d out of range [0, %d)", cfg.ChannelID, config.ChannelCount)
	}

	analyzer, err := analysis.NewAnalyzer(cfg.FFTSize)
	if err != nil {
		return nil, err
	}

	registry := telemetry.NewRegistry(config.ChannelCount)
	for _, preset := range cfg.ChannelPresets {
		registry.Configure(preset.ID, preset.Name, preset.Color, preset.Muted, preset.Soloed)
	}

	e := &Engine{
		cfg:        cfg,
		mode:       mode,
		channelID:  cfg.ChannelID,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		mono:       make([]float64, cfg.FramesPerBuffer),
		ring:       analysis.NewRing(cfg.FFTSize),
		windowBuf:  make([]float64, cfg.FFTSize),
		analyzer:   analyzer,
		registry:   registry,
		outbound:   make(chan telemetry.Frame, outboundDepth),
		inbound:    inbound,
		sink:       sink,
		senderStop: make(chan struct{}),
	}

	if sink != nil {
		e.senderWG.Add(1)
		go e.drainOutbound()
	}

	applog.Infof("Engine: prepared (mode: %s, channel: %d, window: %d, rate: %.0f Hz)",
		mode, e.channelID, cfg.FFTSize, cfg.SampleRate)
	return e, nil
}

// Registry exposes the channel table for read-only consumers and the
// documented mute/solo setters.
func (e *Engine) Registry() *telemetry.Registry {
	return e.registry
}

// Mode returns the current analyzer role.
func (e *Engine) Mode() Mode {
	return e.mode
}

// ChannelID returns this instance's registry slot.
func (e *Engine) ChannelID() int {
	return e.channelID
}

// LastResult returns a copy of the most recent local analysis.
func (e *Engine) LastResult() analysis.Result {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	return e.lastResult
}

// StartInputStream resolves the configured device and begins capture.
// The first callback marks the start of the hot path.
func (e *Engine) StartInputStream() error {
	inputDevice, err := InputDevice(e.cfg.DeviceID)
	if err != nil {
		return err
	}
	e.inputDevice = inputDevice

	if e.cfg.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   inputDevice,
			Latency:  e.inputLatency,
		},
		FramesPerBuffer: e.cfg.FramesPerBuffer,
		SampleRate:      e.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	return nil
}

// StopInputStream stops and closes the capture stream.
func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}
		if err := e.inputStream.Close(); err != nil {
			return err
		}
		e.inputStream = nil
	}
	return nil
}

// processInputStream is the real-time capture callback.
// Performance critical:
// - Runs on a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No allocations, no blocking, no logging
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.ProcessBlock(in)
}

// ProcessBlock is the host call contract: one synchronous call per
// interleaved input block. It mixes down, accumulates the analysis
// window, analyzes when full and routes telemetry according to mode.
func (e *Engine) ProcessBlock(in []float32) {
	frames := len(in) / e.channels
	if frames > len(e.mono) {
		frames = len(e.mono)
	}
	if frames == 0 {
		return
	}

	// Mix all input channels to mono, normalized by channel count.
	inv := 1.0 / float64(e.channels)
	for i := 0; i < frames; i++ {
		sum := 0.0
		base := i * e.channels
		for c := 0; c < e.channels; c++ {
			sum += float64(in[base+c])
		}
		mixed := sum * inv
		e.mono[i] = mixed

		if a := math.Abs(mixed); a > e.peakSinceSend {
			e.peakSinceSend = a
		}
	}

	e.ring.Push(e.mono[:frames])

	// Master mode consumes whatever telemetry arrived since the last
	// block, before producing this block's own numbers.
	if e.mode == ModeMasterBrain {
		e.drainInbound()
	}

	if e.ring.Full() {
		e.ring.CopyOrdered(e.windowBuf)
		result := e.analyzer.Analyze(e.windowBuf, e.sampleRate)

		e.lastMu.Lock()
		e.lastResult = result
		e.lastMu.Unlock()

		if e.mode == ModeChannelStrip {
			e.stageTelemetry(result)
		}
	}

	if atomic.LoadInt32(&e.isRecording) == 1 && e.wavEncoder != nil {
		e.writeRecording(frames)
	}
}

// stageTelemetry encodes the analysis result and queues it for the
// sender goroutine, mirroring the same values into this instance's
// own registry slot. The queue hand-off never blocks; a full queue
// drops the frame (the next block supersedes it anyway).
func (e *Engine) stageTelemetry(result analysis.Result) {
	msg := telemetry.Message{
		ChannelID: uint8(e.channelID),
		THD:       float32(result.THDPercent),
		THDN:      float32(result.THDNPercent),
		Level:     float32(result.LevelRMS),
		PeakLevel: float32(e.peakSinceSend),
	}
	for i, h := range result.Harmonics {
		msg.Harmonics[i] = float32(h)
	}

	e.registry.Apply(msg)

	select {
	case e.outbound <- telemetry.Encode(msg):
		e.peakSinceSend = 0
	default:
	}
}

// drainInbound decodes and applies every frame delivered since the
// last block. Malformed frames and out-of-range channel ids are
// dropped silently; the rest of the batch still applies.
func (e *Engine) drainInbound() {
	if e.inbound == nil {
		return
	}
	for {
		select {
		case frame, ok := <-e.inbound:
			if !ok {
				e.inbound = nil
				return
			}
			if msg, ok := telemetry.Decode(frame[:]); ok {
				e.registry.Apply(msg)
			}
		default:
			return
		}
	}
}

// drainOutbound runs on its own goroutine, moving staged frames to
// the transport so socket writes never happen on the audio thread.
func (e *Engine) drainOutbound() {
	defer e.senderWG.Done()
	for {
		select {
		case frame := <-e.outbound:
			if err := e.sink.Send(frame[:]); err != nil {
				applog.Debugf("Engine: telemetry send failed: %v", err)
			}
		case <-e.senderStop:
			return
		}
	}
}

// Reset zeroes the ring, window, registry measurements and peak state
// so a restarted stream never observes stale data.
func (e *Engine) Reset() {
	e.ring.Reset()
	for i := range e.windowBuf {
		e.windowBuf[i] = 0
	}
	e.peakSinceSend = 0
	e.registry.Reset()

	e.lastMu.Lock()
	e.lastResult = analysis.Result{}
	e.lastMu.Unlock()
}

// Close tears down the stream, recording and telemetry sender.
func (e *Engine) Close() error {
	if err := e.StopInputStream(); err != nil {
		applog.Errorf("Engine: error stopping input stream: %v", err)
	}

	if err := e.StopRecording(); err != nil {
		applog.Errorf("Engine: error stopping recording: %v", err)
	}

	close(e.senderStop)
	if e.sink != nil {
		e.senderWG.Wait()
		if err := e.sink.Close(); err != nil {
			return err
		}
	}
	return nil
}
