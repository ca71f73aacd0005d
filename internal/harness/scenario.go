package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scocto/scoctoloc/internal/engine"
	"github.com/scocto/scoctoloc/internal/model"
)

// Scenario defines a pipeline test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Config     ScenarioConfig    `yaml:"config"`
	Stations   StationRing       `yaml:"stations"`
	Engine     EngineScript      `yaml:"engine"`
	Relocation *RelocationScript `yaml:"relocation,omitempty"`

	// Picks is the input stream, in any order. Playback orders it.
	Picks []PickStep `yaml:"picks"`

	// Assertions validate the run.
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioConfig holds the pipeline settings. Durations are seconds.
type ScenarioConfig struct {
	Delay                   float64  `yaml:"delay"`
	BaseWindow              float64  `yaml:"baseWindow,omitempty"`
	MinPickCount            int      `yaml:"minPickCount"`
	Authors                 []string `yaml:"authors,omitempty"`
	Whitelist               string   `yaml:"whitelist,omitempty"`
	UsePickTime             bool     `yaml:"usePickTime,omitempty"`
	DiscardAssociatorOrigin bool     `yaml:"discardAssociatorOrigin,omitempty"`
}

// StationRing places Count stations around a centre.
type StationRing struct {
	Count     int     `yaml:"count"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// EngineScript configures the scripted association engine.
type EngineScript struct {
	MinPicks int                   `yaml:"minPicks"`
	Clusters map[string]Hypocentre `yaml:"clusters"`
}

// Hypocentre is the origin a cluster nucleates. Time is seconds after the
// reference epoch, depth is km.
type Hypocentre struct {
	Time      float64 `yaml:"time"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Depth     float64 `yaml:"depth"`
}

// RelocationScript configures the scripted relocation engine.
type RelocationScript struct {
	MethodID string  `yaml:"methodID"`
	Depth    float64 `yaml:"depth"`
	MinDepth float64 `yaml:"minDepth,omitempty"`
}

// PickStep is one input pick.
type PickStep struct {
	ID string `yaml:"id"`

	// Station is the fixture station code; Network defaults to the
	// fixture network.
	Station string `yaml:"station"`
	Network string `yaml:"network,omitempty"`
	Channel string `yaml:"channel,omitempty"`
	Author  string `yaml:"author,omitempty"`

	// Time is the arrival time in seconds after the reference epoch.
	Time float64 `yaml:"time"`

	// Latency is the delay between arrival and pick creation in seconds.
	Latency float64 `yaml:"latency,omitempty"`
}

// Assertion validates the run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "origin_count": Count published origins (of Method, if set)
	// - "event_count": Count catalog events
	// - "outcome_count": Count triggers with Outcome
	// - "rejected": Picks were refused at intake
	// - "origin_picks": Origin at Index references exactly Picks
	Type string `yaml:"type"`

	Count   int      `yaml:"count,omitempty"`
	Method  string   `yaml:"method,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
	Index   int      `yaml:"index,omitempty"`
	Picks   []string `yaml:"picks,omitempty"`
}

// Assertion type constants.
const (
	AssertOriginCount  = "origin_count"
	AssertEventCount   = "event_count"
	AssertOutcomeCount = "outcome_count"
	AssertRejected     = "rejected"
	AssertOriginPicks  = "origin_picks"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Config.Delay < 0 {
		return fmt.Errorf("config.delay must be non-negative")
	}
	if s.Stations.Count <= 0 {
		return fmt.Errorf("stations.count must be positive")
	}
	if len(s.Picks) == 0 {
		return fmt.Errorf("picks list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Relocation != nil && s.Relocation.MethodID == "" {
		return fmt.Errorf("relocation.methodID is required")
	}

	for key := range s.Engine.Clusters {
		if key == "" || strings.Contains(key, "-") {
			return fmt.Errorf("engine.clusters: invalid cluster key %q", key)
		}
	}

	seen := make(map[string]bool)
	for i, p := range s.Picks {
		if p.ID == "" {
			return fmt.Errorf("picks[%d]: id is required", i)
		}
		if p.Station == "" {
			return fmt.Errorf("picks[%d]: station is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("picks[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOriginCount:
		if a.Method != "" {
			if _, err := model.ParseMethod(a.Method); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertEventCount:
	case AssertOutcomeCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome_count", index)
		}
		if !knownOutcome(engine.Outcome(a.Outcome)) {
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	case AssertRejected:
		if len(a.Picks) == 0 {
			return fmt.Errorf("assertions[%d]: picks list is required for rejected", index)
		}
	case AssertOriginPicks:
		if len(a.Picks) == 0 {
			return fmt.Errorf("assertions[%d]: picks list is required for origin_picks", index)
		}
		if a.Index < 0 {
			return fmt.Errorf("assertions[%d]: index must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}

func knownOutcome(o engine.Outcome) bool {
	switch o {
	case engine.OutcomeInsufficient, engine.OutcomeEngineFailure, engine.OutcomeNoOrigin,
		engine.OutcomePublished, engine.OutcomeTransportFailure, engine.OutcomeAnomaly:
		return true
	}
	return false
}
