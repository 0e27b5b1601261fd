package modifier

import (
	"github.com/vjranagit/scandata/pkg/value"
)

// TagMaker merges tags into the descriptor of whatever passes through it.
// The payload is untouched.
type TagMaker struct {
	*base
	tags Tags
}

// Set replaces the tag set. Accepts Tags or map[string]string.
func (s *TagMaker) Set(p any) error {
	var tags Tags
	switch v := p.(type) {
	case Tags:
		tags = v.clone()
	case map[string]string:
		tags = Tags(v).clone()
	default:
		return s.badParam(p)
	}
	s.mu.Lock()
	s.tags = tags
	s.mu.Unlock()
	return nil
}

func (s *TagMaker) Params() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tags.clone()
}

func (s *TagMaker) Reset() {
	s.mu.Lock()
	s.tags = Tags{}
	s.mu.Unlock()
}

func (s *TagMaker) Apply(v value.Object, _ Fetch) (value.Object, error) {
	tags := s.Params().(Tags)
	if len(tags) == 0 {
		return v, nil
	}
	return v.WithDescriptor(v.Descriptor().WithTags(tags)), nil
}
