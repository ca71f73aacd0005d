package model

import (
	"path"
	"sort"
)

// Station is a sensor location configured into the association engine.
type Station struct {
	Network   string  `json:"network" yaml:"network" msgpack:"network"`
	Station   string  `json:"station" yaml:"station" msgpack:"station"`
	Location  string  `json:"location" yaml:"location" msgpack:"location"`
	Latitude  float64 `json:"latitude" yaml:"latitude" msgpack:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude" msgpack:"longitude"`
	Elevation float64 `json:"elevation" yaml:"elevation" msgpack:"elevation"`
}

// NSL returns the network.station.location key of the station.
func (s Station) NSL() string {
	return s.Network + "." + s.Station + "." + s.Location
}

// StationTable is the set of stations the association engine was configured
// with, plus the author allow-list it enforces. It is built once at setup
// and read-only afterwards.
type StationTable struct {
	stations []Station
	index    map[string]int
	authors  []string
}

// NewStationTable builds a table from stations. Duplicate NSL keys keep the
// first entry. Stations are kept sorted by NSL.
func NewStationTable(stations []Station, authors []string) *StationTable {
	t := &StationTable{
		index:   make(map[string]int, len(stations)),
		authors: append([]string(nil), authors...),
	}
	for _, s := range stations {
		if _, dup := t.index[s.NSL()]; dup {
			continue
		}
		t.index[s.NSL()] = -1
		t.stations = append(t.stations, s)
	}
	sort.Slice(t.stations, func(i, j int) bool {
		return t.stations[i].NSL() < t.stations[j].NSL()
	})
	for i, s := range t.stations {
		t.index[s.NSL()] = i
	}
	return t
}

// Stations returns the stations in NSL order.
func (t *StationTable) Stations() []Station {
	return t.stations
}

// Len returns the number of stations.
func (t *StationTable) Len() int {
	return len(t.stations)
}

// Lookup returns the station for an NSL key.
func (t *StationTable) Lookup(nsl string) (Station, bool) {
	i, ok := t.index[nsl]
	if !ok {
		return Station{}, false
	}
	return t.stations[i], true
}

// Accepts is the engine-side acceptance predicate: the pick must come from
// a configured station and, when an author list is set, from an allowed
// author.
func (t *StationTable) Accepts(p Pick) bool {
	if _, ok := t.index[p.Stream.NSL()]; !ok {
		return false
	}
	if len(t.authors) == 0 {
		return true
	}
	return AuthorAllowed(t.authors, p.Author)
}

// AuthorAllowed reports whether author matches one of the patterns.
// Patterns are shell globs, so "scautopick*" matches "scautopick@host".
func AuthorAllowed(patterns []string, author string) bool {
	for _, pattern := range patterns {
		if pattern == author {
			return true
		}
		if ok, err := path.Match(pattern, author); err == nil && ok {
			return true
		}
	}
	return false
}
