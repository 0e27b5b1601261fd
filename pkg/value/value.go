// Package value holds the immutable data containers produced by decoding and by
// the modifier chain: frame stacks, images, traces and structured text.
//
// Constructors take ownership of the slices they are given. Accessors that
// return slices return copies, so a value that has been stored can be shared
// freely between readers.
package value

import (
	"fmt"

	"github.com/vjranagit/scandata/pkg/types"
)

// Object is any value stored in the repository
type Object interface {
	Descriptor() types.Descriptor
	// Shape returns the array dimensions; nil for non-numeric values
	Shape() []int
	// WithDescriptor returns a copy carrying d. Payloads are shared.
	WithDescriptor(d types.Descriptor) Object
}

// Numeric is implemented by array-backed values
type Numeric interface {
	Object
	Values() []float64
	Neg() Numeric
}

// Renderable values can be drawn by a presentation layer
type Renderable interface {
	Numeric
	Len() int
}

func checkLen(kind string, data []float64, want int) error {
	if len(data) != want {
		return fmt.Errorf("%s: payload has %d values, shape needs %d", kind, len(data), want)
	}
	return nil
}

func negate(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = -v
	}
	return out
}

func copyOf(in []float64) []float64 {
	return append([]float64(nil), in...)
}
