// Package model provides the seismological data types shared by every
// scoctoloc package: picks, origins, arrivals and the station table.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Picks are immutable once accepted; origins are immutable once recorded
//     in an event.
//   - Arrivals reference picks by identifier only. A pick referenced by an
//     arrival is never assumed to be present in any pick store.
//   - The generating method of an origin is a closed enum (Method), not a
//     free-form string.
//   - All times are UTC.
package model
