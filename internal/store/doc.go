// Package store provides SQLite-backed storage for picks and published
// origins.
//
// The database holds:
//   - Picks: the pick archive, read back by arrival time span for offline
//     and playback runs
//   - Origins: every published origin in publication order
//   - Arrivals: the ordered arrivals of each archived origin
//
// # Ordering
//
// Reads are deterministic. Picks are ordered by arrival time, then ID
// (binary collation). Origins are ordered by their archive sequence number,
// which is assigned at insert time and never reused, so reading the
// archive back reproduces the published sequence.
//
// # Time
//
// Times are stored as integer microseconds since the Unix epoch, the
// precision of the pick and origin documents.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
