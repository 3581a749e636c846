// Package output renders envelopes for humans and machines.
//
// Supported output formats:
//   - Console: colored one-line summaries, with headers and body in verbose mode
//   - JSON: one JSON document per envelope
//
// Formatters can be attached to a client with Monitor.
package output
