// Package octo bridges the pipeline to external association and relocation
// engines running as subprocesses.
//
// Protocol: every message is a msgpack map preceded by its length as a
// 4-byte big-endian integer, written to the engine's stdin and read back
// from its stdout. The Go side sends a request {op, seq, body} and blocks
// for the response {seq, error, body}. Operations:
//
//	configure  stations, velocity model and search limits (once, at setup)
//	associate  a batch of picks; returns zero or more events with assignments
//	relocate   one origin with its picks and an optional fixed depth
//
// Engine stderr is forwarded to slog. Arrival distances and azimuths are
// computed on the Go side from the configured station table.
package octo
