// Package log provides structured protocol tracing for HaLink sessions.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, session).
// It is separate from operational logging (slog) - the protocol trace is a
// complete machine-readable record of what went over the wire.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/halink/boiler.hlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(adapter, fileLogger)
//
// # Event Types
//
//   - Transport: raw frame text (FrameEvent), keepalive (ControlMsgEvent)
//   - Wire: parsed CONFIG/STATE/EVENT and outbound SET (MessageEvent)
//   - Session: connection state transitions and CONFIG acceptance
//     (StateChangeEvent)
//
// Frame overflows, parse errors and SET expiry are recorded as
// ErrorEventData with a machine-readable Reason.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .hlog extension.
// The halink-log tool views, filters and summarizes them.
package log
