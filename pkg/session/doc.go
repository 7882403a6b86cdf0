// Package session runs the client side of one HaLink device connection.
//
// A Session owns the socket, the connection state machine, the entity
// registry and the outbound SET queue of a single device:
//
//	DISCONNECTED -> CONNECTING -> AWAITING_HANDSHAKE -> ACTIVE
//	                    ^                |                 |
//	                    +-- BACKOFF_WAIT <-----------------+
//
// After the socket comes up the device must send a valid CONFIG within
// the handshake timeout. Any socket failure, or a handshake timeout, moves
// the session to BACKOFF_WAIT and schedules a reconnect with exponential
// backoff. The backoff resets each time the session becomes Active.
//
// Inbound messages are delivered to a Handler on a dedicated goroutine in
// the order they were received. Handlers may call SendSet.
//
// Read handling, timers and SendSet are serialized by one per-session
// mutex. Every timer callback checks the connection epoch it was armed
// for, so nothing fires against a replaced or closed connection.
package session
