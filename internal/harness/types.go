package harness

import "github.com/scocto/scoctoloc/internal/model"

// TriggerRecord is the processing record of one trigger pick.
type TriggerRecord struct {
	Pick    string   `json:"pick"`
	Outcome string   `json:"outcome"`
	Origins []string `json:"origins,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates that every assertion held.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Triggers lists every processed trigger pick in processing order.
	Triggers []TriggerRecord `json:"triggers"`

	// Origins are the published origins in publication order.
	Origins []model.Origin `json:"origins"`

	// OriginEvents maps each published origin ID to its event key.
	OriginEvents map[string]int64 `json:"origin_events"`

	// Events is the number of events in the catalog after the run.
	Events int `json:"events"`

	// Rejected lists the picks refused at intake, in input order.
	Rejected []string `json:"rejected"`

	// Digest is the sequence digest of Origins.
	Digest string `json:"digest"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:         true,
		Errors:       []string{},
		Triggers:     []TriggerRecord{},
		Origins:      []model.Origin{},
		OriginEvents: make(map[string]int64),
		Rejected:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
