// SPDX-License-Identifier: MIT
//
// Package udp links analyzer instances over the loopback or LAN: a
// Sender transmits encoded telemetry frames from channel-strip
// instances, a Receiver feeds a master instance's inbound queue.
// Datagrams are fire-and-forget; the telemetry registry is
// last-writer-wins per slot, so a lost frame is overwritten by the
// next one.
package udp

import (
	"fmt"
	"net"
	"sync"

	applog "thdscope/internal/log"
)

// Sender transmits telemetry frames to a fixed target address.
type Sender struct {
	conn       *net.UDPConn
	targetAddr *net.UDPAddr
	mu         sync.Mutex // protects conn during Close
	closed     bool
}

// NewSender creates a Sender targeting "host:port".
func NewSender(targetAddress string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("udp sender: resolve %q: %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp sender: dial %q: %w", targetAddress, err)
	}

	applog.Infof("UDP sender: telemetry target %s", udpAddr)
	return &Sender{conn: conn, targetAddr: udpAddr}, nil
}

// Send writes one datagram. Errors are returned but a failed send is
// not fatal to the stream; the caller may keep sending.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("udp sender: closed")
	}

	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("udp sender: write: %w", err)
	}
	return nil
}

// Close shuts down the underlying socket. Safe to call twice.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
