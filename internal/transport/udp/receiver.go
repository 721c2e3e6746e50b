// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "thdscope/internal/log"
	"thdscope/internal/telemetry"
)

// Receiver listens for telemetry datagrams and hands complete frames
// to a bounded queue that the engine drains once per block. Datagrams
// shorter than a frame are dropped here; everything else is validated
// by the codec on the consuming side.
type Receiver struct {
	conn   *net.UDPConn
	frames chan telemetry.Frame

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewReceiver binds to listenAddress ("host:port") and starts the
// read loop. The queue holds up to queueDepth frames; when the engine
// falls behind, the oldest unread frames are simply superseded by
// dropping new ones (per-slot updates are idempotent).
func NewReceiver(listenAddress string, queueDepth int) (*Receiver, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", listenAddress)
	if err != nil {
		return nil, fmt.Errorf("udp receiver: resolve %q: %w", listenAddress, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp receiver: listen %q: %w", listenAddress, err)
	}

	if queueDepth <= 0 {
		queueDepth = 64
	}

	r := &Receiver{
		conn:   conn,
		frames: make(chan telemetry.Frame, queueDepth),
	}

	r.wg.Add(1)
	go r.readLoop()

	applog.Infof("UDP receiver: listening for telemetry on %s", conn.LocalAddr())
	return r, nil
}

// Frames returns the inbound frame queue.
func (r *Receiver) Frames() <-chan telemetry.Frame {
	return r.frames
}

func (r *Receiver) readLoop() {
	defer r.wg.Done()

	buf := make([]byte, 2*telemetry.FrameSize)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			applog.Warnf("UDP receiver: read error: %v", err)
			continue
		}
		if n < telemetry.FrameSize {
			applog.Debugf("UDP receiver: dropping short datagram (%d bytes)", n)
			continue
		}

		var frame telemetry.Frame
		copy(frame[:], buf[:telemetry.FrameSize])

		select {
		case r.frames <- frame:
		default:
			// Queue full: drop. The next frame for the same channel
			// carries fresher data anyway.
		}
	}
}

// Close stops the read loop and closes the socket.
func (r *Receiver) Close() error {
	var err error
	r.stopOnce.Do(func() {
		err = r.conn.Close()
		r.wg.Wait()
		close(r.frames)
	})
	return err
}

// LocalAddr returns the bound address, useful when listening on an
// ephemeral port.
func (r *Receiver) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}
