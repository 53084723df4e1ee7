// Package core holds the transport-facing contracts shared by the app
// layer and the adapters.
package core

// Frame is one serialized JSON message.
type Frame []byte

type SessionID string

// Conn abstracts the transport endpoint of one participant.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	// TrySend queues a frame without blocking. It fails on a closed
	// connection or on backpressure; the caller treats both as a
	// dropped delivery.
	TrySend(Frame) error
	// Ping sends a transport-level liveness probe.
	Ping() error
	Close()
}
