// SPDX-License-Identifier: MIT
//
// Package transport carries encoded telemetry and registry snapshots
// between analyzer instances and to UI consumers. Implementations
// must be safe for concurrent use and must never block the caller;
// when a channel is saturated, messages are dropped.
package transport

// Transport defines a generic interface for sending an encoded
// message. The payload is an opaque byte frame; framing and
// validation belong to the telemetry codec.
type Transport interface {
	Send(data []byte) error
	Close() error
}
