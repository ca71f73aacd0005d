// Package whitelist parses stream whitelists: NET.STA.LOC.CHA glob
// patterns that restrict which sensor streams the pipeline accepts.
//
// Entries are separated by whitespace or newlines; lines starting with
// '#' are comments. Missing trailing fields are wildcards and an empty
// location code is written "--":
//
//	# all of IU plus one GEOFON station
//	IU GE.FALKS
//	GE.APE.--.BHZ
package whitelist

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/scocto/scoctoloc/internal/model"
)

// Whitelist is an ordered set of stream patterns. The zero value admits
// every stream.
type Whitelist struct {
	patterns []string
}

// Parse reads whitelist entries from text.
func Parse(text string) (*Whitelist, error) {
	w := &Whitelist{}
	for lineNo, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, item := range strings.Fields(line) {
			pattern, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
			}
			w.patterns = append(w.patterns, pattern)
		}
	}
	return w, nil
}

// Load reads a whitelist file.
func Load(filename string) (*Whitelist, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read whitelist: %w", err)
	}
	w, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return w, nil
}

// normalize pads an entry to four fields and validates the glob syntax.
func normalize(item string) (string, error) {
	fields := strings.Split(item, ".")
	if len(fields) > 4 {
		return "", fmt.Errorf("invalid whitelist entry %q: more than four fields", item)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	for len(fields) < 4 {
		fields = append(fields, "*")
	}
	if fields[2] == "" {
		fields[2] = "--"
	}
	pattern := strings.Join(fields, ".")
	if _, err := path.Match(pattern, ""); err != nil {
		return "", fmt.Errorf("invalid whitelist entry %q: %w", item, err)
	}
	return pattern, nil
}

// Len returns the number of patterns.
func (w *Whitelist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.patterns)
}

// Patterns returns the normalized patterns in file order.
func (w *Whitelist) Patterns() []string {
	if w == nil {
		return nil
	}
	return w.patterns
}

// Matches reports whether the stream matches any pattern. An empty
// whitelist matches everything.
func (w *Whitelist) Matches(id model.StreamID) bool {
	if w.Len() == 0 {
		return true
	}
	code := streamCode(id.Network, id.Station, id.Location, id.Channel)
	for _, pattern := range w.patterns {
		if ok, _ := path.Match(pattern, code); ok {
			return true
		}
	}
	return false
}

// MatchesStation reports whether any pattern admits some stream of the
// sensor location, ignoring the channel field. It selects stations from an
// inventory before channels are known.
func (w *Whitelist) MatchesStation(network, station, location string) bool {
	if w.Len() == 0 {
		return true
	}
	code := streamCode(network, station, location, "")
	code = strings.TrimSuffix(code, ".")
	for _, pattern := range w.patterns {
		nsl := pattern[:strings.LastIndexByte(pattern, '.')]
		if ok, _ := path.Match(nsl, code); ok {
			return true
		}
	}
	return false
}

func streamCode(network, station, location, channel string) string {
	if location == "" {
		location = "--"
	}
	return network + "." + station + "." + location + "." + channel
}
