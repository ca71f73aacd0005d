package model

import (
	"fmt"
	"slices"
	"time"
)

// Method identifies which collaborator generated an origin.
type Method int

const (
	// MethodAssociation marks origins nucleated by the association engine.
	MethodAssociation Method = iota
	// MethodRelocation marks origins refined by the relocation engine.
	MethodRelocation

	// MethodCount is the number of methods; per-method tables are sized by it.
	MethodCount
)

// String returns the method name used in logs and documents.
func (m Method) String() string {
	switch m {
	case MethodAssociation:
		return "association"
	case MethodRelocation:
		return "relocation"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod is the inverse of Method.String.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "association":
		return MethodAssociation, nil
	case "relocation":
		return MethodRelocation, nil
	default:
		return 0, fmt.Errorf("unknown origin method %q", s)
	}
}

// Evaluation modes and statuses stamped on origins.
const (
	EvaluationAutomatic = "automatic"
	StatusPreliminary   = "preliminary"
	StatusConfirmed     = "confirmed"
)

// Quantity is a value with an optional uncertainty.
type Quantity struct {
	Value       float64 `json:"value" yaml:"value"`
	Uncertainty float64 `json:"uncertainty,omitempty" yaml:"uncertainty,omitempty"`
}

// Arrival references a pick from an origin, together with the values the
// engine computed for it.
type Arrival struct {
	PickID       string  `json:"pick_id" yaml:"pickID"`
	Phase        string  `json:"phase" yaml:"phase"`
	TimeResidual float64 `json:"time_residual" yaml:"timeResidual"`
	Distance     float64 `json:"distance" yaml:"distance"` // degrees
	Azimuth      float64 `json:"azimuth" yaml:"azimuth"`   // degrees
	Used         bool    `json:"used" yaml:"used"`
	Weight       float64 `json:"weight" yaml:"weight"`
}

// Quality holds aggregate location statistics.
type Quality struct {
	StandardError         float64 `json:"standard_error" yaml:"standardError"`
	UsedPhaseCount        int     `json:"used_phase_count" yaml:"usedPhaseCount"`
	AssociatedPhaseCount  int     `json:"associated_phase_count" yaml:"associatedPhaseCount"`
	MinimumDistance       float64 `json:"minimum_distance" yaml:"minimumDistance"`
	MedianDistance        float64 `json:"median_distance" yaml:"medianDistance"`
	MaximumDistance       float64 `json:"maximum_distance" yaml:"maximumDistance"`
	AzimuthalGap          float64 `json:"azimuthal_gap" yaml:"azimuthalGap"`
	SecondaryAzimuthalGap float64 `json:"secondary_azimuthal_gap" yaml:"secondaryAzimuthalGap"`
	// TGap is the sum of the two largest azimuthal gaps, adjacent or not.
	TGap float64 `json:"t_gap" yaml:"tGap"`
}

// CreationInfo records who produced an object and when.
type CreationInfo struct {
	AgencyID     string    `json:"agency_id" yaml:"agencyID"`
	Author       string    `json:"author" yaml:"author"`
	CreationTime time.Time `json:"creation_time" yaml:"creationTime"`
}

// Origin is a location and time hypothesis with supporting arrivals.
type Origin struct {
	ID               string       `json:"id" yaml:"id"`
	Time             time.Time    `json:"time" yaml:"time"`
	Latitude         Quantity     `json:"latitude" yaml:"latitude"`
	Longitude        Quantity     `json:"longitude" yaml:"longitude"`
	Depth            Quantity     `json:"depth" yaml:"depth"` // km
	DepthFixed       bool         `json:"depth_fixed,omitempty" yaml:"depthFixed,omitempty"`
	Method           Method       `json:"method" yaml:"method"`
	MethodID         string       `json:"method_id" yaml:"methodID"`
	EvaluationMode   string       `json:"evaluation_mode,omitempty" yaml:"evaluationMode,omitempty"`
	EvaluationStatus string       `json:"evaluation_status,omitempty" yaml:"evaluationStatus,omitempty"`
	Quality          *Quality     `json:"quality,omitempty" yaml:"quality,omitempty"`
	CreationInfo     CreationInfo `json:"creation_info" yaml:"creationInfo"`
	Arrivals         []Arrival    `json:"arrivals" yaml:"arrivals"`
}

// PickIDs returns the sorted, de-duplicated identifiers of all picks the
// origin references.
func (o *Origin) PickIDs() []string {
	ids := make([]string, 0, len(o.Arrivals))
	for _, a := range o.Arrivals {
		ids = append(ids, a.PickID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// ReferencesPick reports whether any arrival references the pick.
func (o *Origin) ReferencesPick(pickID string) bool {
	for _, a := range o.Arrivals {
		if a.PickID == pickID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Arrivals and quality are not shared.
func (o *Origin) Clone() *Origin {
	c := *o
	c.Arrivals = slices.Clone(o.Arrivals)
	if o.Quality != nil {
		q := *o.Quality
		c.Quality = &q
	}
	return &c
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	if m < 0 || m >= MethodCount {
		return nil, fmt.Errorf("invalid origin method %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
