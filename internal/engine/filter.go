package engine

import "github.com/scocto/scoctoloc/internal/model"

// Reason explains why the stream filter rejected a pick.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonInvalid Reason = "invalid"
	ReasonAuthor  Reason = "author"
	ReasonStream  Reason = "stream"
	ReasonStation Reason = "station"
)

// StreamMatcher admits or denies sensor streams. *whitelist.Whitelist
// implements it.
type StreamMatcher interface {
	Matches(id model.StreamID) bool
}

// StreamFilter decides whether a pick may enter the pick store. The checks
// run in a fixed order: author allow-list, stream whitelist, then the
// association engine's own station table.
//
// Accept has no side effects; a rejected pick is simply never stored.
type StreamFilter struct {
	authors  []string
	streams  StreamMatcher
	stations *model.StationTable
}

// NewStreamFilter builds a filter. An empty author list admits every
// author; a nil matcher or table skips that check.
func NewStreamFilter(authors []string, streams StreamMatcher, stations *model.StationTable) *StreamFilter {
	return &StreamFilter{
		authors:  append([]string(nil), authors...),
		streams:  streams,
		stations: stations,
	}
}

// Accept reports whether the pick passes, and if not, the first check it
// failed.
func (f *StreamFilter) Accept(p model.Pick) (bool, Reason) {
	if err := p.Validate(); err != nil {
		return false, ReasonInvalid
	}
	if len(f.authors) > 0 && !model.AuthorAllowed(f.authors, p.Author) {
		return false, ReasonAuthor
	}
	if f.streams != nil && !f.streams.Matches(p.Stream) {
		return false, ReasonStream
	}
	if f.stations != nil && !f.stations.Accepts(p) {
		return false, ReasonStation
	}
	return true, ReasonNone
}
