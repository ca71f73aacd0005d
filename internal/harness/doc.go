// Package harness runs pipeline scenarios: a declarative pick stream is
// played back through the full pipeline against a scripted association
// engine, and the published origins are checked against assertions and
// golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: single_event
//	description: "Five stations record one earthquake"
//	config:
//	  delay: 10             # seconds
//	  minPickCount: 4
//	  authors: [scautopick]
//	  whitelist: "GE"
//	stations: {count: 8, latitude: 37.0, longitude: 25.0}
//	engine:
//	  minPicks: 4
//	  clusters:
//	    ev1: {time: 0, latitude: 37.0, longitude: 25.0, depth: 10}
//	relocation:             # optional
//	  methodID: LOCSAT
//	  depth: 12
//	picks:
//	  - {id: ev1-1, station: S01, time: 0, latency: 2}
//	assertions:
//	  - {type: origin_count, count: 1}
//	  - {type: outcome_count, outcome: published, count: 1}
//
// Stations are placed on a ring around the given centre and named S01,
// S02, ... Pick times are seconds after a fixed reference epoch.
//
// # Scripted Engine
//
// The engine nucleates one origin per cluster: a pick belongs to cluster
// "ev1" when its ID starts with "ev1-". A cluster needs at least minPicks
// of its picks in the window. The relocation engine, when configured,
// returns the origin at the given depth.
//
// # Assertion Types
//
//   - origin_count: number of published origins, optionally of one method
//   - event_count: number of events in the catalog
//   - outcome_count: number of trigger picks with the given outcome
//   - rejected: the listed picks were refused at intake
//   - origin_picks: published origin at index references exactly picks
//
// # Deterministic Testing
//
// Scenarios run in playback mode with a sequence identifier generator, so
// repeated runs publish byte-identical origin sequences. Golden files
// under testdata/golden capture the trigger outcomes and published
// origins in canonical JSON.
package harness
