// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	applog "thdscope/internal/log"
	"thdscope/internal/telemetry"
)

// Snapshot is the JSON payload published to UI consumers: the full
// channel table plus the master-side aggregate.
type Snapshot struct {
	Sequence  uint32                   `json:"sequence"`
	Timestamp int64                    `json:"timestamp"`
	Channels  []telemetry.ChannelState `json:"channels"`
	Aggregate telemetry.Aggregate      `json:"aggregate"`
}

// SnapshotPublisher periodically copies the channel registry, computes
// the aggregate and sends the JSON-encoded snapshot over a Transport.
// It runs in its own goroutine managed by Start and Stop; the audio
// callback never touches it.
type SnapshotPublisher struct {
	registry *telemetry.Registry
	sink     Transport
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan during Start/Stop

	sequenceNum uint32

	// Reused buffers so steady-state publishing does not allocate
	// beyond JSON encoding itself.
	snapshotBuf []telemetry.ChannelState
	encodeBuf   *bytes.Buffer
}

// NewSnapshotPublisher wires a registry to a transport. An interval
// <= 0 defaults to 33ms (~30 Hz).
func NewSnapshotPublisher(interval time.Duration, registry *telemetry.Registry, sink Transport) (*SnapshotPublisher, error) {
	if registry == nil {
		return nil, fmt.Errorf("snapshot publisher: registry cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("snapshot publisher: transport cannot be nil")
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}

	return &SnapshotPublisher{
		registry:  registry,
		sink:      sink,
		interval:  interval,
		encodeBuf: new(bytes.Buffer),
	}, nil
}

// Start begins periodic publishing. Safe to call once per Start/Stop
// cycle; repeated calls while running are no-ops.
func (p *SnapshotPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("SnapshotPublisher: Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("SnapshotPublisher: started (interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publishOnce()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it.
// Safe to call multiple times.
func (p *SnapshotPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("SnapshotPublisher: stopped")
	return nil
}

// publishOnce builds and sends one snapshot.
func (p *SnapshotPublisher) publishOnce() {
	p.snapshotBuf = p.registry.Snapshot(p.snapshotBuf)

	p.sequenceNum++
	snap := Snapshot{
		Sequence:  p.sequenceNum,
		Timestamp: time.Now().UnixNano(),
		Channels:  p.snapshotBuf,
		Aggregate: telemetry.ComputeAggregateTHD(p.snapshotBuf),
	}

	p.encodeBuf.Reset()
	if err := json.NewEncoder(p.encodeBuf).Encode(&snap); err != nil {
		applog.Errorf("SnapshotPublisher: encode error: %v", err)
		return
	}

	if err := p.sink.Send(p.encodeBuf.Bytes()); err != nil {
		applog.Debugf("SnapshotPublisher: send error: %v", err)
	}
}

// Close implements io.Closer by stopping the publisher.
func (p *SnapshotPublisher) Close() error {
	return p.Stop()
}
