// Package wire defines the HaLink wire format and its normalizers.
//
// HaLink devices speak JSON text frames terminated by a single NUL byte.
// Inbound frames carry one of three top-level shapes:
//   - CONFIG: protocol version, device metadata and entity declarations
//   - STATE: partial value/attribute updates keyed by entity
//   - EVENT: one-shot occurrences that need no prior declaration
//
// Outbound SET commands use either the compact light form ("key=value",
// one entry per frame) or the object form ({"set": {...}}), as negotiated
// by the device's CONFIG.
//
// # Short Keys
//
// Devices may abbreviate keys to save bytes. Aliases are resolved by
// nesting context: "s" at the root is state, inside a config object it
// is the sensor platform. Expand rewrites every alias to its canonical
// name and is idempotent.
//
// # Key Order
//
// JSON objects are decoded into Object, which preserves member order.
// STATE deltas and entity declarations are emitted in message order.
//
// # Null vs Absent
//
// STATE updates distinguish absent fields (no change) from fields present
// with a null value. StateDelta carries explicit presence flags.
package wire
