package modifier

import (
	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

// Average collapses a frame stack into an Image (mode Image) or a Trace (mode Roi)
type Average struct {
	*base
	mode AverageMode
}

func (s *Average) Set(p any) error {
	var mode AverageMode
	switch v := p.(type) {
	case AverageMode:
		mode = v
	case string:
		mode = AverageMode(v)
	default:
		return s.badParam(p)
	}
	if mode != AverageImage && mode != AverageRoi {
		return &value.ParameterValidationError{Param: s.name, Value: string(mode), Reason: "mode must be Image or Roi"}
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

func (s *Average) Params() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Average) Reset() {
	s.mu.Lock()
	s.mode = AverageUnset
	s.mu.Unlock()
}

func (s *Average) Apply(v value.Object, _ Fetch) (value.Object, error) {
	f, ok := v.(*value.Frames)
	if !ok {
		return nil, unsupported(s.name, v)
	}
	d := v.Descriptor()
	switch mode := s.Params().(AverageMode); mode {
	case AverageImage:
		d.Kind = types.KindFluoImage
		return f.MeanImage(d), nil
	case AverageRoi:
		d.Kind = types.KindFluoTrace
		return f.MeanTrace(d), nil
	default:
		return nil, &value.ParameterValidationError{Param: s.name, Value: string(mode), Reason: "averaging mode not set"}
	}
}
