// Package inventory loads station metadata and selects the stations the
// association engine is configured with.
//
// The inventory file is YAML (or JSON) with the network/station/location
// hierarchy:
//
//	networks:
//	  - code: GE
//	    stations:
//	      - code: APE
//	        latitude: 37.0689
//	        longitude: 25.5306
//	        elevation: 620
//	        locations: ["", "00"]
package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scocto/scoctoloc/internal/geo"
	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/whitelist"
)

// Inventory is the parsed station inventory.
type Inventory struct {
	Networks []Network `yaml:"networks" json:"networks"`
}

// Network groups stations under a network code.
type Network struct {
	Code     string    `yaml:"code" json:"code"`
	Stations []Station `yaml:"stations" json:"stations"`
}

// Station is one station entry. Locations lists the sensor location codes
// at the station; an empty list means a single empty location code.
type Station struct {
	Code      string     `yaml:"code" json:"code"`
	Latitude  float64    `yaml:"latitude" json:"latitude"`
	Longitude float64    `yaml:"longitude" json:"longitude"`
	Elevation float64    `yaml:"elevation" json:"elevation"`
	Locations []string   `yaml:"locations,omitempty" json:"locations,omitempty"`
	Start     *time.Time `yaml:"start,omitempty" json:"start,omitempty"`
	End       *time.Time `yaml:"end,omitempty" json:"end,omitempty"`
}

// Operational reports whether the station epoch covers t. A zero t
// disables the check.
func (s Station) Operational(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	if s.Start != nil && t.Before(*s.Start) {
		return false
	}
	if s.End != nil && !t.Before(*s.End) {
		return false
	}
	return true
}

// Load reads an inventory file.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	inv, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inv, nil
}

// Parse decodes an inventory document, rejecting unknown fields.
func Parse(data []byte) (*Inventory, error) {
	var inv Inventory
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&inv); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	if err := inv.validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (inv *Inventory) validate() error {
	for i, n := range inv.Networks {
		if n.Code == "" {
			return fmt.Errorf("networks[%d]: code is required", i)
		}
		for j, s := range n.Stations {
			if s.Code == "" {
				return fmt.Errorf("%s.stations[%d]: code is required", n.Code, j)
			}
			if s.Latitude < -90 || s.Latitude > 90 {
				return fmt.Errorf("%s.%s: latitude %v out of range", n.Code, s.Code, s.Latitude)
			}
			if s.Longitude < -180 || s.Longitude > 180 {
				return fmt.Errorf("%s.%s: longitude %v out of range", n.Code, s.Code, s.Longitude)
			}
		}
	}
	return nil
}

// Selection restricts which sensor locations are configured into the
// engine.
type Selection struct {
	// CenterLatitude and CenterLongitude locate the network centre.
	CenterLatitude  float64
	CenterLongitude float64

	// MaxDistanceKm drops sensor locations farther from the centre.
	MaxDistanceKm float64

	// Whitelist, when non-empty, drops sensor locations it does not admit.
	Whitelist *whitelist.Whitelist

	// At, when non-zero, drops stations not operational at that time.
	At time.Time
}

// Select returns one model.Station per sensor location passing the
// selection, in inventory order.
func (inv *Inventory) Select(sel Selection) []model.Station {
	var out []model.Station
	for _, n := range inv.Networks {
		for _, s := range n.Stations {
			if !s.Operational(sel.At) {
				continue
			}
			locations := s.Locations
			if len(locations) == 0 {
				locations = []string{""}
			}
			for _, loc := range locations {
				if !sel.Whitelist.MatchesStation(n.Code, s.Code, loc) {
					continue
				}
				dist := geo.DistanceKm(sel.CenterLatitude, sel.CenterLongitude, s.Latitude, s.Longitude)
				if dist > sel.MaxDistanceKm {
					continue
				}
				out = append(out, model.Station{
					Network:   n.Code,
					Station:   s.Code,
					Location:  loc,
					Latitude:  s.Latitude,
					Longitude: s.Longitude,
					Elevation: s.Elevation,
				})
			}
		}
	}
	return out
}
