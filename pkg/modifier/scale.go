package modifier

import (
	"gonum.org/v1/gonum/floats"

	"go.uber.org/zap"

	"github.com/vjranagit/scandata/pkg/value"
)

// FWindow is the number of leading samples averaged into F for dF/F and
// baseline rescaling
const FWindow = 4

// Scale rescales a trace
type Scale struct {
	*base
	mode ScaleMode
}

func (s *Scale) Set(p any) error {
	var mode ScaleMode
	switch v := p.(type) {
	case ScaleMode:
		mode = v
	case string:
		mode = ScaleMode(v)
	default:
		return s.badParam(p)
	}
	switch mode {
	case ScaleOriginal, ScaleDFoF, ScaleNormalize:
	default:
		return &value.ParameterValidationError{Param: s.name, Value: string(mode), Reason: "mode must be Original, DFoF or Normalize"}
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

func (s *Scale) Params() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Scale) Reset() {
	s.mu.Lock()
	s.mode = ScaleOriginal
	s.mu.Unlock()
}

func (s *Scale) Apply(v value.Object, _ Fetch) (value.Object, error) {
	mode := s.Params().(ScaleMode)
	if mode == ScaleOriginal {
		return v, nil
	}
	tr, ok := v.(*value.Trace)
	if !ok {
		return nil, unsupported(s.name, v)
	}

	switch mode {
	case ScaleDFoF:
		return s.dfof(tr)
	case ScaleNormalize:
		return s.normalize(tr), nil
	}
	return v, nil
}

// dfof computes (trace / F - 1) * 100
func (s *Scale) dfof(tr *value.Trace) (value.Object, error) {
	f := tr.LeadingMean(FWindow)
	if f == 0 {
		return nil, &value.ParameterValidationError{Param: s.name, Value: "F=0", Reason: "dF/F undefined for a zero baseline"}
	}
	out, err := tr.DivScalar(f)
	if err != nil {
		return nil, err
	}
	return out.SubScalar(1).MulScalar(100), nil
}

// normalize maps the trace onto [0, 1]. The minimum is removed before the
// maximum is taken.
func (s *Scale) normalize(tr *value.Trace) value.Object {
	vals := tr.Values()
	shifted := tr.SubScalar(floats.Min(vals))
	top := floats.Max(shifted.Values())
	if top == 0 {
		s.logger.Warn("normalizing a constant trace", zap.String("stage", s.name), zap.Stringer("descriptor", tr.Descriptor()))
		return shifted
	}
	out, _ := shifted.DivScalar(top)
	return out
}
