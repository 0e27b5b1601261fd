package modifier

import (
	"fmt"

	"github.com/vjranagit/scandata/pkg/value"
)

// DifImage subtracts a reference image, fetched through the stage's provider,
// from an image or from every frame of a stack
type DifImage struct {
	*base
	win value.TimeWindowVal
}

// Set takes the reference window forwarded to the provider
func (s *DifImage) Set(p any) error {
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

func (s *DifImage) Params() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.win
}

func (s *DifImage) Reset() {
	s.mu.Lock()
	s.win = value.WholeAxis()
	s.mu.Unlock()
}

func (s *DifImage) fetchesSecond() bool { return true }

func (s *DifImage) Apply(v value.Object, fetch Fetch) (value.Object, error) {
	switch v.(type) {
	case *value.Image, *value.Frames:
	default:
		return nil, unsupported(s.name, v)
	}

	win := s.Params().(value.TimeWindowVal)
	d := v.Descriptor()
	second, err := fetch(Request{
		Stage:   s.name,
		Kind:    d.Kind.SourceKind(),
		Channel: d.Channel,
		Target:  d,
		Window:  &win,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: reference: %w", s.name, err)
	}

	switch cur := v.(type) {
	case *value.Image:
		ref, ok := second.(*value.Image)
		if !ok {
			return nil, unsupported(s.name+" reference", second)
		}
		return subtractImage(cur, ref)
	case *value.Frames:
		switch ref := second.(type) {
		case *value.Image:
			return subtractFromFrames(cur, ref)
		case *value.Frames:
			return subtractFrames(cur, ref)
		}
		return nil, unsupported(s.name+" reference", second)
	}
	return nil, unsupported(s.name, v)
}

func sameDims(a, b []int) error {
	if len(a) != len(b) {
		return fmt.Errorf("shape %v does not match %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			return fmt.Errorf("shape %v does not match %v", a, b)
		}
	}
	return nil
}

func subtractImage(cur, ref *value.Image) (value.Object, error) {
	if err := sameDims(cur.Shape(), ref.Shape()); err != nil {
		return nil, err
	}
	a, b := cur.Values(), ref.Values()
	for i := range a {
		a[i] -= b[i]
	}
	nx, ny := cur.Dims()
	return value.NewImage(a, nx, ny, cur.Descriptor(), cur.PixelSize())
}

func subtractFromFrames(cur *value.Frames, ref *value.Image) (value.Object, error) {
	nx, ny, nt := cur.Dims()
	if err := sameDims([]int{nx, ny}, ref.Shape()); err != nil {
		return nil, err
	}
	a, b := cur.Values(), ref.Values()
	for i := range a {
		a[i] -= b[i%len(b)]
	}
	return value.NewFrames(a, nx, ny, nt, cur.Descriptor(), cur.Interval(), cur.PixelSize())
}

func subtractFrames(cur, ref *value.Frames) (value.Object, error) {
	if err := sameDims(cur.Shape(), ref.Shape()); err != nil {
		return nil, err
	}
	a, b := cur.Values(), ref.Values()
	for i := range a {
		a[i] -= b[i]
	}
	nx, ny, nt := cur.Dims()
	return value.NewFrames(a, nx, ny, nt, cur.Descriptor(), cur.Interval(), cur.PixelSize())
}
