package value

import (
	"fmt"

	"github.com/vjranagit/scandata/pkg/types"
)

// Image is a single 2-D frame, index = x*ny + y
type Image struct {
	desc      types.Descriptor
	nx, ny    int
	data      []float64
	pixelSize float64
}

func NewImage(data []float64, nx, ny int, d types.Descriptor, pixelSize float64) (*Image, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("image: dimensions must be positive, got %dx%d", nx, ny)
	}
	if err := checkLen("image", data, nx*ny); err != nil {
		return nil, err
	}
	return &Image{desc: d.Clone(), nx: nx, ny: ny, data: data, pixelSize: pixelSize}, nil
}

func (m *Image) Descriptor() types.Descriptor { return m.desc.Clone() }

func (m *Image) Shape() []int { return []int{m.nx, m.ny} }

func (m *Image) Dims() (nx, ny int) { return m.nx, m.ny }

func (m *Image) Len() int { return len(m.data) }

func (m *Image) PixelSize() float64 { return m.pixelSize }

func (m *Image) At(x, y int) float64 { return m.data[x*m.ny+y] }

func (m *Image) Values() []float64 { return copyOf(m.data) }

func (m *Image) WithDescriptor(d types.Descriptor) Object {
	out := *m
	out.desc = d.Clone()
	return &out
}

func (m *Image) Neg() Numeric {
	out := *m
	out.data = negate(m.data)
	return &out
}
