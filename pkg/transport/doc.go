// Package transport provides the HaLink transport layer.
//
// The transport layer handles:
//   - TCP connections to devices (the device is the server)
//   - NUL-terminated text framing with a bounded reassembly buffer
//   - Keepalive: OS-level TCP keepalive plus an application ping
//   - Serialized writes so frames never interleave
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│  JSON / key=value text         │
//	├────────────────────────────────┤
//	│  NUL (0x00) terminated frames  │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Framing
//
// Every frame ends with a single 0x00 byte; there is no length prefix.
// A frame that grows past the maximum size (default 4096 bytes) without a
// terminator is discarded together with the rest of the buffered input,
// and reassembly restarts with the next bytes received.
//
// # Keep-Alive
//
//   - TCP keepalive: idle 15s, interval 5s, 2 probes
//   - Application ping ":" after 15 seconds without traffic
//   - Keepalive frames (":") received from the device are dropped
package transport
