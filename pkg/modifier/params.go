package modifier

import (
	"fmt"

	"github.com/vjranagit/scandata/pkg/value"
)

// AverageMode selects which axes Average collapses
type AverageMode string

const (
	AverageUnset AverageMode = ""
	// AverageImage collapses time into an Image
	AverageImage AverageMode = "Image"
	// AverageRoi collapses x and y into a Trace
	AverageRoi AverageMode = "Roi"
)

// ScaleMode selects the Scale transform
type ScaleMode string

const (
	ScaleOriginal  ScaleMode = "Original"
	ScaleDFoF      ScaleMode = "DFoF"
	ScaleNormalize ScaleMode = "Normalize"
)

// BlCompMode selects the baseline model
type BlCompMode string

const (
	BlCompDisable     BlCompMode = "Disable"
	BlCompPolyVal     BlCompMode = "PolyVal"
	BlCompExponential BlCompMode = "Exponential"
)

// BlCompParams is the full BlComp state
type BlCompParams struct {
	Mode BlCompMode
	// Cut restricts the baseline to a window before fitting
	Cut value.TimeWindowVal
}

// RoiUpdate is a partial Roi change. Nil X or Y keeps the current position
// and a set one replaces it. Nil Width or Height keeps the current size and
// a set one is added to it.
//
// An update with all four fields set replaces the rectangle outright.
type RoiUpdate struct {
	X, Y, Width, Height *int
}

// Int returns a pointer to v, for building a RoiUpdate
func Int(v int) *int { return &v }

// Tags are descriptor tags TagMaker merges into its output
type Tags map[string]string

func (t Tags) clone() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// ParseParam converts a settings value (decoded YAML) into the typed
// parameter a stage of category c accepts
func ParseParam(c Category, raw any) (any, error) {
	switch c {
	case CategoryTimeWindow, CategoryDifImage:
		n, err := ints(raw, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
		return value.NewTimeWindowVal(n[0], n[1])
	case CategoryRoi:
		n, err := ints(raw, 4)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
		return value.NewRoiVal(n[0], n[1], n[2], n[3])
	case CategoryAverage:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s: want a mode name, got %T", c, raw)
		}
		return AverageMode(s), nil
	case CategoryScale:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s: want a mode name, got %T", c, raw)
		}
		return ScaleMode(s), nil
	case CategoryBlComp:
		if s, ok := raw.(string); ok {
			return BlCompMode(s), nil
		}
		n, err := ints(raw, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: want a mode name or a cutting window: %w", c, err)
		}
		return value.NewTimeWindowVal(n[0], n[1])
	case CategoryTagMaker:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: want a tag map, got %T", c, raw)
		}
		tags := make(Tags, len(m))
		for k, v := range m {
			tags[k] = fmt.Sprint(v)
		}
		return tags, nil
	}
	return nil, fmt.Errorf("%s takes no parameters", c)
}

func ints(raw any, n int) ([]int, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("want a list of %d integers, got %T", n, raw)
	}
	if len(list) != n {
		return nil, fmt.Errorf("want %d integers, got %d", n, len(list))
	}
	out := make([]int, n)
	for i, v := range list {
		switch x := v.(type) {
		case int:
			out[i] = x
		case int64:
			out[i] = int(x)
		case float64:
			if x != float64(int(x)) {
				return nil, fmt.Errorf("element %d: %v is not an integer", i, x)
			}
			out[i] = int(x)
		default:
			return nil, fmt.Errorf("element %d: want an integer, got %T", i, v)
		}
	}
	return out, nil
}
