package modifier

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vjranagit/scandata/pkg/value"
)

// BlComp removes slow drift from a trace. The drift model is fitted to a
// baseline trace fetched through the stage's provider, restricted to the
// cutting window, then rescaled to the target's own F before subtraction.
type BlComp struct {
	*base
	params BlCompParams

	lastBaseline *value.Trace
	lastFit      *value.Trace
}

// Set accepts a BlCompMode (or its name), a cutting window, or BlCompParams
func (s *BlComp) Set(p any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := p.(type) {
	case BlCompMode:
		return s.setMode(v)
	case string:
		return s.setMode(BlCompMode(v))
	case value.TimeWindowVal:
		s.params.Cut = v
	case BlCompParams:
		if err := s.setMode(v.Mode); err != nil {
			return err
		}
		s.params.Cut = v.Cut
	default:
		return s.badParam(p)
	}
	return nil
}

func (s *BlComp) setMode(m BlCompMode) error {
	switch m {
	case BlCompDisable, BlCompPolyVal, BlCompExponential:
		s.params.Mode = m
		return nil
	}
	return &value.ParameterValidationError{Param: s.name, Value: string(m), Reason: "mode must be Disable, PolyVal or Exponential"}
}

func (s *BlComp) Params() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

func (s *BlComp) Reset() {
	s.mu.Lock()
	cut, _ := value.NewTimeWindowVal(0, 0)
	s.params = BlCompParams{Mode: BlCompDisable, Cut: cut}
	s.lastBaseline, s.lastFit = nil, nil
	s.mu.Unlock()
}

func (s *BlComp) fetchesSecond() bool { return true }

// LastFit returns the baseline window and fitted curve from the most recent
// fit, or nils before the first one
func (s *BlComp) LastFit() (baseline, fit *value.Trace) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBaseline, s.lastFit
}

func (s *BlComp) Apply(v value.Object, fetch Fetch) (value.Object, error) {
	params := s.Params().(BlCompParams)
	if params.Mode == BlCompDisable {
		return v, nil
	}
	tr, ok := v.(*value.Trace)
	if !ok {
		return nil, unsupported(s.name, v)
	}

	d := tr.Descriptor()
	second, err := fetch(Request{
		Stage:   s.name,
		Kind:    d.Kind.SourceKind(),
		Channel: d.Channel,
		Target:  d,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: baseline: %w", s.name, err)
	}
	bl, ok := second.(*value.Trace)
	if !ok {
		return nil, unsupported(s.name+" baseline", second)
	}
	cut, err := bl.Window(params.Cut, bl.Descriptor())
	if err != nil {
		return nil, fmt.Errorf("%s: cutting window: %w", s.name, err)
	}

	var model curve
	switch params.Mode {
	case BlCompPolyVal:
		model, err = fitPoly2(cut.Time(), cut.Values())
	case BlCompExponential:
		model, err = fitExp(cut.Time(), cut.Values())
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	times := tr.Time()
	fitVals := make([]float64, len(times))
	for i, t := range times {
		fitVals[i] = model(t)
	}
	fit, err := value.NewTrace(fitVals, bl.Descriptor(), tr.Interval())
	if err != nil {
		return nil, err
	}

	fTarget := tr.LeadingMean(FWindow)
	fFit := fit.LeadingMean(FWindow)
	if fFit == 0 {
		return nil, &value.ParameterValidationError{Param: s.name, Value: "F(fit)=0", Reason: "cannot rescale a baseline fit with zero F"}
	}
	ratio := fTarget / fFit

	y := tr.Values()
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] - fitVals[i]*ratio + fTarget
	}
	result, err := value.NewTrace(out, d, tr.Interval())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastBaseline, s.lastFit = cut, fit
	s.mu.Unlock()

	s.logger.Debug("baseline compensated",
		zap.String("stage", s.name),
		zap.String("mode", string(params.Mode)),
		zap.Int("baseline_len", cut.Len()),
		zap.Float64("ratio", ratio))
	return result, nil
}
