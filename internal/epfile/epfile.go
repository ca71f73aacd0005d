// Package epfile reads and writes event parameter documents: pick and
// origin lists in YAML or JSON, used as offline and playback input and as
// collected output.
package epfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scocto/scoctoloc/internal/model"
)

// Format is a document encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "yaml"
}

// FormatFor selects the format from a file extension. Anything other than
// .json is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Document is the content of an event parameter file.
type Document struct {
	Picks   []model.Pick   `json:"picks,omitempty" yaml:"picks,omitempty"`
	Origins []model.Origin `json:"origins,omitempty" yaml:"origins,omitempty"`
}

// Load reads a document from path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := Decode(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode parses a document. Unknown fields are errors, every pick must be
// valid and pick IDs must be unique.
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("invalid JSON document: %w", err)
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid YAML document: %w", err)
		}
	}

	seen := make(map[string]bool, len(doc.Picks))
	for _, p := range doc.Picks {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate pick %s", p.ID)
		}
		seen[p.ID] = true
	}
	return &doc, nil
}

// Encode writes a document.
func Encode(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
}

// Save writes a document to path in the format its extension selects.
func Save(path string, doc *Document) error {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, FormatFor(path)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Span returns the picks with start <= time <= end, preserving order. A
// zero bound is open.
func Span(picks []model.Pick, start, end time.Time) []model.Pick {
	var out []model.Pick
	for _, p := range picks {
		if !start.IsZero() && p.Time.Before(start) {
			continue
		}
		if !end.IsZero() && p.Time.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}
