package value

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vjranagit/scandata/pkg/types"
)

// Frames is a stack of 2-D frames on axes (x, y, t).
// Storage is frame-major: index = t*nx*ny + x*ny + y.
type Frames struct {
	desc      types.Descriptor
	nx, ny    int
	nt        int
	data      []float64
	interval  float64 // ms
	pixelSize float64 // um, 0 when unknown
}

// NewFrames wraps data laid out frame-major with dimensions nx, ny, nt
func NewFrames(data []float64, nx, ny, nt int, d types.Descriptor, interval, pixelSize float64) (*Frames, error) {
	if nx < 1 || ny < 1 || nt < 1 {
		return nil, fmt.Errorf("frames: dimensions must be positive, got %dx%dx%d", nx, ny, nt)
	}
	if err := checkLen("frames", data, nx*ny*nt); err != nil {
		return nil, err
	}
	return &Frames{desc: d.Clone(), nx: nx, ny: ny, nt: nt, data: data, interval: interval, pixelSize: pixelSize}, nil
}

func (f *Frames) Descriptor() types.Descriptor { return f.desc.Clone() }

func (f *Frames) Shape() []int { return []int{f.nx, f.ny, f.nt} }

// Dims returns the three axis lengths
func (f *Frames) Dims() (nx, ny, nt int) { return f.nx, f.ny, f.nt }

// Len returns the number of frames
func (f *Frames) Len() int { return f.nt }

func (f *Frames) Interval() float64 { return f.interval }

func (f *Frames) PixelSize() float64 { return f.pixelSize }

// At returns the sample at (x, y, t)
func (f *Frames) At(x, y, t int) float64 {
	return f.data[t*f.nx*f.ny+x*f.ny+y]
}

// Plane returns a copy of frame t as an x-major slice
func (f *Frames) Plane(t int) []float64 {
	n := f.nx * f.ny
	return copyOf(f.data[t*n : (t+1)*n])
}

// Values returns a copy of the payload
func (f *Frames) Values() []float64 { return copyOf(f.data) }

func (f *Frames) WithDescriptor(d types.Descriptor) Object {
	out := *f
	out.desc = d.Clone()
	return &out
}

// Neg returns the stack with every sample negated
func (f *Frames) Neg() Numeric {
	out := *f
	out.data = negate(f.data)
	return &out
}

// Window returns frames [start, start+width) along t
func (f *Frames) Window(w TimeWindowVal, d types.Descriptor) (*Frames, error) {
	start, end, err := w.Bounds(f.nt)
	if err != nil {
		return nil, err
	}
	n := f.nx * f.ny
	data := copyOf(f.data[start*n : end*n])
	return NewFrames(data, f.nx, f.ny, end-start, d, f.interval, f.pixelSize)
}

// Crop returns the sub-stack covering the rectangle in r, clipped to the frame
func (f *Frames) Crop(r RoiVal, d types.Descriptor) (*Frames, error) {
	x0, y0 := r.X(), r.Y()
	x1, y1 := x0+r.Width(), y0+r.Height()
	if x0 >= f.nx || y0 >= f.ny {
		return nil, &ParameterValidationError{
			Param:  "roi",
			Value:  r.String(),
			Reason: fmt.Sprintf("origin outside %dx%d frame", f.nx, f.ny),
		}
	}
	if x1 > f.nx {
		x1 = f.nx
	}
	if y1 > f.ny {
		y1 = f.ny
	}
	w, h := x1-x0, y1-y0
	data := make([]float64, 0, w*h*f.nt)
	for t := 0; t < f.nt; t++ {
		base := t * f.nx * f.ny
		for x := x0; x < x1; x++ {
			row := base + x*f.ny
			data = append(data, f.data[row+y0:row+y1]...)
		}
	}
	return NewFrames(data, w, h, f.nt, d, f.interval, f.pixelSize)
}

// MeanImage averages along t
func (f *Frames) MeanImage(d types.Descriptor) *Image {
	n := f.nx * f.ny
	sum := make([]float64, n)
	for t := 0; t < f.nt; t++ {
		floats.Add(sum, f.data[t*n:(t+1)*n])
	}
	floats.Scale(1/float64(f.nt), sum)
	return &Image{desc: d.Clone(), nx: f.nx, ny: f.ny, data: sum, pixelSize: f.pixelSize}
}

// MeanTrace averages over x and y for every frame
func (f *Frames) MeanTrace(d types.Descriptor) *Trace {
	n := f.nx * f.ny
	out := make([]float64, f.nt)
	for t := 0; t < f.nt; t++ {
		out[t] = stat.Mean(f.data[t*n:(t+1)*n], nil)
	}
	return newTrace(out, d, f.interval)
}
