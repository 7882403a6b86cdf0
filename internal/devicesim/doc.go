// Package devicesim implements a simulated HaLink device: a TCP server
// that sends a CONFIG on connect, records SET commands and reports
// STATE changes. It backs the halink-sim command and end-to-end tests.
package devicesim
