// Package connection provides the per-device connection lifecycle for
// HaLink sessions.
//
// This package handles:
//   - The connection state machine (Disconnected, Connecting,
//     AwaitingHandshake, Active, BackoffWait, Closed)
//   - Exponential backoff with jitter between connect attempts
//
// # State Machine
//
//	Disconnected --connect--> Connecting --established--> AwaitingHandshake
//	AwaitingHandshake --handshake (valid CONFIG)--> Active
//	Connecting | AwaitingHandshake | Active --fail--> BackoffWait
//	BackoffWait --retry--> Connecting
//	any --close--> Closed
//
// A device is available only while Active.
//
// # Reconnection Strategy
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful
//  5. Reset to 1s on every entry into Active
//
// A TCP connection that never delivers a valid CONFIG within the handshake
// window does NOT reset backoff.
//
// # Jitter
//
//	actual_delay = base_delay + random(0, base_delay * jitter)
package connection
