package modifier

import "github.com/vjranagit/scandata/pkg/value"

// Invert negates numeric data. It has no parameter.
type Invert struct {
	*base
}

func (s *Invert) Set(p any) error {
	if p == nil {
		return nil
	}
	return s.badParam(p)
}

func (s *Invert) Params() any { return nil }

func (s *Invert) Reset() {}

func (s *Invert) Apply(v value.Object, _ Fetch) (value.Object, error) {
	n, ok := v.(value.Numeric)
	if !ok {
		return nil, unsupported(s.name, v)
	}
	return n.Neg(), nil
}
