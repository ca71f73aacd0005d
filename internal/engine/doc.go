// Package engine implements the incremental association and
// deduplication pipeline.
//
// Data flow:
//
//	StreamFilter -> PickStore -> Scheduler -> WindowBuilder ->
//	Associator -> RelocationController -> Catalog -> Publisher
//
// ARCHITECTURE:
//
// Single-Writer Processing:
// One trigger pick is processed completely, through publication, before the
// next one starts. The pick store, pending queue and event catalog are
// owned by the pipeline and only mutated from its serialized context.
//
// Online, picks arrive asynchronously from the transport and a ticker
// drives the scheduler; Pipeline.Run serializes both. Playback and offline
// processing call Feed, Tick and RunBatch directly from one goroutine.
//
// Engine and transport calls are synchronous. There is no timeout or
// cancellation of an in-flight call.
//
// Determinism:
// Playback replaces the wall clock with PlaybackClock, whose time is the
// latest pick creation time seen. Identifiers come from SequenceGenerator.
// Given the same picks and configuration, playback publishes the same
// origins with the same identifiers in the same order.
//
// Errors:
// Nothing in the pipeline is fatal. Every trigger ends in an Outcome;
// engine and transport failures are logged and never retried.
package engine
