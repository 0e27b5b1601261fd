package modifier

import (
	"go.uber.org/zap"

	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

// DefaultRoi is the rectangle a Roi stage starts with
var DefaultRoi = [4]int{40, 40, 1, 1}

// Roi crops frames to a rectangle
type Roi struct {
	*base
	roi value.RoiVal
}

// Set accepts a value.RoiVal, a [4]int or a RoiUpdate. Values outside the
// RoiVal domain are clamped with a warning.
func (s *Roi) Set(p any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.roi.Values()
	var next [4]int
	switch v := p.(type) {
	case value.RoiVal:
		next = v.Values()
	case [4]int:
		next = v
	case RoiUpdate:
		next = cur
		if v.X != nil && v.Y != nil && v.Width != nil && v.Height != nil {
			next = [4]int{*v.X, *v.Y, *v.Width, *v.Height}
			break
		}
		if v.X != nil {
			next[0] = *v.X
		}
		if v.Y != nil {
			next[1] = *v.Y
		}
		if v.Width != nil {
			next[2] += *v.Width
		}
		if v.Height != nil {
			next[3] += *v.Height
		}
	default:
		return s.badParam(p)
	}

	s.roi = s.clamp(next)
	return nil
}

func (s *Roi) clamp(r [4]int) value.RoiVal {
	in := r
	if r[0] < 0 {
		r[0] = 0
	}
	if r[1] < 0 {
		r[1] = 0
	}
	if r[2] < 1 {
		r[2] = 1
	}
	if r[3] < 1 {
		r[3] = 1
	}
	if r != in {
		s.logger.Warn("roi clamped", zap.String("stage", s.name), zap.Ints("requested", in[:]), zap.Ints("used", r[:]))
	}
	roi, _ := value.NewRoiVal(r[0], r[1], r[2], r[3])
	return roi
}

func (s *Roi) Params() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roi
}

func (s *Roi) Reset() {
	s.mu.Lock()
	s.roi, _ = value.NewRoiVal(DefaultRoi[0], DefaultRoi[1], DefaultRoi[2], DefaultRoi[3])
	s.mu.Unlock()
}

func (s *Roi) notifiesOnSet() bool { return true }

// Apply crops to the rectangle. A rectangle reaching past the frame is cut
// back to it and an origin outside the frame moves to the last pixel.
func (s *Roi) Apply(v value.Object, _ Fetch) (value.Object, error) {
	f, ok := v.(*value.Frames)
	if !ok {
		return nil, unsupported(s.name, v)
	}
	roi := s.Params().(value.RoiVal)
	nx, ny, _ := f.Dims()

	x, y, w, h := roi.X(), roi.Y(), roi.Width(), roi.Height()
	if x >= nx {
		x = nx - 1
	}
	if y >= ny {
		y = ny - 1
	}
	if x+w > nx {
		w = nx - x
	}
	if y+h > ny {
		h = ny - y
	}
	if [4]int{x, y, w, h} != roi.Values() {
		s.logger.Warn("roi exceeds frame, clamped",
			zap.String("stage", s.name),
			zap.Stringer("roi", roi),
			zap.Ints("frame", []int{nx, ny}),
			zap.Ints("used", []int{x, y, w, h}))
		roi, _ = value.NewRoiVal(x, y, w, h)
	}

	out, err := f.Crop(roi, v.Descriptor().With(types.KeyProvenance, s.name))
	if err != nil {
		return nil, err
	}
	return out, nil
}
