package model

import (
	"fmt"
	"strings"
	"time"
)

// StreamID identifies a sensor stream by network, station, location and
// channel code.
type StreamID struct {
	Network  string `json:"network" yaml:"network" msgpack:"network"`
	Station  string `json:"station" yaml:"station" msgpack:"station"`
	Location string `json:"location" yaml:"location" msgpack:"location"`
	Channel  string `json:"channel" yaml:"channel" msgpack:"channel"`
}

// ParseStreamID parses "NET.STA.LOC.CHA". Missing trailing fields are left
// empty; a location of "--" is read as the empty location code.
func ParseStreamID(s string) (StreamID, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 4 {
		return StreamID{}, fmt.Errorf("invalid stream id %q", s)
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	loc := parts[2]
	if loc == "--" {
		loc = ""
	}
	return StreamID{Network: parts[0], Station: parts[1], Location: loc, Channel: parts[3]}, nil
}

// NSL returns the network.station.location code used to key stations.
func (s StreamID) NSL() string {
	return s.Network + "." + s.Station + "." + s.Location
}

// String returns "NET.STA.LOC.CHA".
func (s StreamID) String() string {
	return s.Network + "." + s.Station + "." + s.Location + "." + s.Channel
}

// Pick is a single phase detection at a station.
type Pick struct {
	ID           string    `json:"id" yaml:"id"`
	Stream       StreamID  `json:"stream" yaml:"stream"`
	PhaseHint    string    `json:"phase_hint,omitempty" yaml:"phaseHint,omitempty"`
	Time         time.Time `json:"time" yaml:"time"`
	CreationTime time.Time `json:"creation_time" yaml:"creationTime"`
	Author       string    `json:"author" yaml:"author"`
	AgencyID     string    `json:"agency_id,omitempty" yaml:"agencyID,omitempty"`
}

// Phase returns the phase hint, defaulting to "P" when none was given.
func (p Pick) Phase() string {
	if p.PhaseHint == "" {
		return "P"
	}
	return p.PhaseHint
}

// Validate checks the fields every accepted pick must carry.
func (p Pick) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("pick: id is required")
	}
	if p.Stream.Network == "" || p.Stream.Station == "" {
		return fmt.Errorf("pick %s: network and station codes are required", p.ID)
	}
	if p.Time.IsZero() {
		return fmt.Errorf("pick %s: time is required", p.ID)
	}
	return nil
}

// Created returns the creation time, falling back to the arrival time for
// picks that carry no creation info.
func (p Pick) Created() time.Time {
	if p.CreationTime.IsZero() {
		return p.Time
	}
	return p.CreationTime
}

// Same reports whether p and o carry identical content. Redelivered picks
// are recognised by it.
func (p Pick) Same(o Pick) bool {
	return p.ID == o.ID &&
		p.Stream == o.Stream &&
		p.PhaseHint == o.PhaseHint &&
		p.Time.Equal(o.Time) &&
		p.CreationTime.Equal(o.CreationTime) &&
		p.Author == o.Author &&
		p.AgencyID == o.AgencyID
}
