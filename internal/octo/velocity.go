package octo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Velocity model kinds.
const (
	KindConstant = "constant"
	KindLayered  = "layered"
)

// DefaultConstantModel is used when no model is configured.
const DefaultConstantModel = "6.0"

// ErrConflictingModels is returned when both a constant and a layered
// model are given.
var ErrConflictingModels = errors.New("constant and layered velocity models are mutually exclusive")

// Layer is one row of a layered velocity model.
type Layer struct {
	Depth float64 `msgpack:"depth"` // km, top of layer
	VP    float64 `msgpack:"vp"`    // km/s
	VS    float64 `msgpack:"vs"`    // km/s
}

// VelocityModel is sent to the engine in the configure handshake.
type VelocityModel struct {
	Kind string `msgpack:"kind"`

	// Constant model. RH is the association tolerance radius in km.
	VP float64 `msgpack:"vp,omitempty"`
	VS float64 `msgpack:"vs,omitempty"`
	RH float64 `msgpack:"rh,omitempty"`

	Layers []Layer `msgpack:"layers,omitempty"`
}

// NewVelocityModel builds the model from the configured constant spec or
// CSV path. Neither selects DefaultConstantModel.
func NewVelocityModel(constant, csvPath string) (VelocityModel, error) {
	switch {
	case constant != "" && csvPath != "":
		return VelocityModel{}, ErrConflictingModels
	case csvPath != "":
		return LoadLayered(csvPath)
	case constant != "":
		return ParseConstant(constant)
	}
	return ParseConstant(DefaultConstantModel)
}

// ParseConstant parses "vp[,vs[,rh]]". A missing vs defaults to vp/sqrt(3),
// a missing rh to 0.77 + 0.32*vp (Bertheussen, 1977).
func ParseConstant(spec string) (VelocityModel, error) {
	fields := strings.Split(spec, ",")
	if len(fields) > 3 {
		return VelocityModel{}, fmt.Errorf("velocity model %q: expected vp[,vs[,rh]]", spec)
	}

	values := make([]float64, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return VelocityModel{}, fmt.Errorf("velocity model %q: %w", spec, err)
		}
		if v <= 0 {
			return VelocityModel{}, fmt.Errorf("velocity model %q: values must be positive", spec)
		}
		values[i] = v
	}
	if values[0] == 0 {
		return VelocityModel{}, fmt.Errorf("velocity model %q: vp is required", spec)
	}

	m := VelocityModel{Kind: KindConstant, VP: values[0]}
	if len(values) > 1 {
		m.VS = values[1]
	}
	if len(values) > 2 {
		m.RH = values[2]
	}
	if m.VS == 0 {
		m.VS = m.VP / math.Sqrt(3)
	}
	if m.RH == 0 {
		m.RH = 0.77 + 0.32*m.VP
	}
	return m, nil
}

// LoadLayered reads a layered model CSV file.
func LoadLayered(filename string) (VelocityModel, error) {
	f, err := os.Open(filename)
	if err != nil {
		return VelocityModel{}, fmt.Errorf("failed to open velocity model: %w", err)
	}
	defer f.Close()

	m, err := ParseLayered(f)
	if err != nil {
		return VelocityModel{}, fmt.Errorf("%s: %w", filename, err)
	}
	return m, nil
}

// ParseLayered reads CSV with a header naming the columns depth, vp and
// vs in any order. Extra columns are ignored. Depths must increase.
func ParseLayered(r io.Reader) (VelocityModel, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		return VelocityModel{}, fmt.Errorf("failed to read header: %w", err)
	}
	col := map[string]int{"depth": -1, "vp": -1, "vs": -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := col[name]; ok {
			col[name] = i
		}
	}
	for name, i := range col {
		if i < 0 {
			return VelocityModel{}, fmt.Errorf("missing column %q", name)
		}
	}

	m := VelocityModel{Kind: KindLayered}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return VelocityModel{}, err
		}
		line, _ := cr.FieldPos(0)
		var layer Layer
		fields := []struct {
			name string
			dst  *float64
		}{{"depth", &layer.Depth}, {"vp", &layer.VP}, {"vs", &layer.VS}}
		for _, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col[f.name]]), 64)
			if err != nil {
				return VelocityModel{}, fmt.Errorf("line %d: %s: %w", line, f.name, err)
			}
			*f.dst = v
		}
		if n := len(m.Layers); n > 0 && layer.Depth <= m.Layers[n-1].Depth {
			return VelocityModel{}, fmt.Errorf("line %d: depth %g does not increase", line, layer.Depth)
		}
		m.Layers = append(m.Layers, layer)
	}
	if len(m.Layers) == 0 {
		return VelocityModel{}, errors.New("no layers")
	}
	return m, nil
}
