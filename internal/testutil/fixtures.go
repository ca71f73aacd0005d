// Package testutil provides fixtures and fakes shared by the pipeline's
// tests: a manual clock, pick and station builders, and scripted engine and
// transport doubles.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/scocto/scoctoloc/internal/model"
)

// Epoch is the reference time used by fixtures.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Network is the network code used by fixture stations.
const Network = "GE"

// Stations returns n stations on a ring of radius ~0.5 deg around
// (lat, lon), named S01, S02, ...
func Stations(n int, lat, lon float64) []model.Station {
	offsets := [][2]float64{{0.5, 0}, {0, 0.5}, {-0.5, 0}, {0, -0.5}, {0.35, 0.35}, {-0.35, -0.35}, {0.35, -0.35}, {-0.35, 0.35}}
	out := make([]model.Station, n)
	for i := range out {
		o := offsets[i%len(offsets)]
		out[i] = model.Station{
			Network:   Network,
			Station:   StationCode(i),
			Latitude:  lat + o[0],
			Longitude: lon + o[1],
		}
	}
	return out
}

// StationCode returns the code of the i-th fixture station.
func StationCode(i int) string {
	return fmt.Sprintf("S%02d", i+1)
}

// Pick builds an automatic pick at Epoch+offset on the given station,
// created latency after its arrival time.
func Pick(id, station string, offset, latency time.Duration) model.Pick {
	at := Epoch.Add(offset)
	return model.Pick{
		ID:           id,
		Stream:       model.StreamID{Network: Network, Station: station, Channel: "HHZ"},
		PhaseHint:    "P",
		Time:         at,
		CreationTime: at.Add(latency),
		Author:       "scautopick",
		AgencyID:     "GFZ",
	}
}

// Origin builds an association origin at Epoch+offset with one used
// P arrival per pick ID.
func Origin(id string, offset time.Duration, lat, lon, depth float64, pickIDs ...string) model.Origin {
	o := model.Origin{
		ID:               id,
		Time:             Epoch.Add(offset),
		Latitude:         model.Quantity{Value: lat},
		Longitude:        model.Quantity{Value: lon},
		Depth:            model.Quantity{Value: depth},
		Method:           model.MethodAssociation,
		MethodID:         "PyOcto",
		EvaluationStatus: model.StatusPreliminary,
	}
	for i, pid := range pickIDs {
		o.Arrivals = append(o.Arrivals, model.Arrival{
			PickID:   pid,
			Phase:    "P",
			Distance: 0.5,
			Azimuth:  float64(i*90) + 10,
			Used:     true,
			Weight:   1,
		})
	}
	return o
}

// ScriptedAssociator returns canned responses, one per call, and records
// the batches it was given. Once the script is exhausted it returns no
// origins.
type ScriptedAssociator struct {
	mu        sync.Mutex
	responses [][]model.Origin
	errs      []error
	batches   [][]model.Pick
}

// NewScriptedAssociator creates an associator that answers the n-th call
// with responses[n].
func NewScriptedAssociator(responses ...[]model.Origin) *ScriptedAssociator {
	return &ScriptedAssociator{responses: responses}
}

// FailOn makes call n (0-based) return err instead of its response.
func (a *ScriptedAssociator) FailOn(n int, err error) *ScriptedAssociator {
	a.mu.Lock()
	defer a.mu.Unlock()
	for len(a.errs) <= n {
		a.errs = append(a.errs, nil)
	}
	a.errs[n] = err
	return a
}

// Associate implements engine.Associator.
func (a *ScriptedAssociator) Associate(_ context.Context, picks []model.Pick) ([]model.Origin, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.batches)
	a.batches = append(a.batches, append([]model.Pick(nil), picks...))
	if n < len(a.errs) && a.errs[n] != nil {
		return nil, a.errs[n]
	}
	if n >= len(a.responses) {
		return nil, nil
	}
	out := make([]model.Origin, len(a.responses[n]))
	for i := range a.responses[n] {
		out[i] = *a.responses[n][i].Clone()
	}
	return out, nil
}

// Calls returns the number of Associate calls.
func (a *ScriptedAssociator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batches)
}

// Batch returns the picks passed to call n.
func (a *ScriptedAssociator) Batch(n int) []model.Pick {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.batches[n]
}

// ClusterAssociator nucleates one origin per cluster of picks. A pick
// belongs to a cluster when its ID starts with the cluster key followed by
// '-'. Clusters with fewer than MinPicks picks in the batch are ignored.
// Origins reference exactly the cluster's picks in the batch.
type ClusterAssociator struct {
	MinPicks int
	Clusters map[string]model.Origin

	mu    sync.Mutex
	calls int
}

// Associate implements engine.Associator.
func (a *ClusterAssociator) Associate(_ context.Context, picks []model.Pick) ([]model.Origin, error) {
	a.mu.Lock()
	a.calls++
	call := a.calls
	a.mu.Unlock()

	members := make(map[string][]string)
	var keys []string
	for _, p := range picks {
		key, _, ok := strings.Cut(p.ID, "-")
		if !ok {
			continue
		}
		if _, known := a.Clusters[key]; !known {
			continue
		}
		if members[key] == nil {
			keys = append(keys, key)
		}
		members[key] = append(members[key], p.ID)
	}

	var out []model.Origin
	for _, key := range keys {
		if len(members[key]) < a.MinPicks {
			continue
		}
		tmpl := a.Clusters[key]
		o := Origin(fmt.Sprintf("engine/%s/%d", key, call), tmpl.Time.Sub(Epoch),
			tmpl.Latitude.Value, tmpl.Longitude.Value, tmpl.Depth.Value, members[key]...)
		out = append(out, o)
	}
	return out, nil
}

// Calls returns the number of Associate calls.
func (a *ClusterAssociator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// RecordingTransport records sent batches. Set Err to make Send fail.
type RecordingTransport struct {
	mu      sync.Mutex
	Err     error
	batches [][]model.Origin
}

// Send implements engine.Transport.
func (t *RecordingTransport) Send(_ context.Context, origins []model.Origin) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	t.batches = append(t.batches, append([]model.Origin(nil), origins...))
	return nil
}

// Batches returns the recorded batches.
func (t *RecordingTransport) Batches() [][]model.Origin {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.batches
}
