package modifier

import (
	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

// TimeWindow slices frames or a trace along time
type TimeWindow struct {
	*base
	win value.TimeWindowVal
}

func (s *TimeWindow) Set(p any) error {
	var win value.TimeWindowVal
	switch v := p.(type) {
	case value.TimeWindowVal:
		win = v
	case [2]int:
		w, err := value.NewTimeWindowVal(v[0], v[1])
		if err != nil {
			return err
		}
		win = w
	default:
		return s.badParam(p)
	}
	s.mu.Lock()
	s.win = win
	s.mu.Unlock()
	return nil
}

func (s *TimeWindow) Params() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.win
}

func (s *TimeWindow) Reset() {
	s.mu.Lock()
	s.win = value.WholeAxis()
	s.mu.Unlock()
}

func (s *TimeWindow) notifiesOnSet() bool { return true }

func (s *TimeWindow) Apply(v value.Object, _ Fetch) (value.Object, error) {
	win := s.Params().(value.TimeWindowVal)
	d := v.Descriptor().With(types.KeyProvenance, s.name)

	switch x := v.(type) {
	case *value.Frames:
		out, err := x.Window(win, d)
		if err != nil {
			return nil, err
		}
		return out, nil
	case *value.Trace:
		out, err := x.Window(win, d)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, unsupported(s.name, v)
}
