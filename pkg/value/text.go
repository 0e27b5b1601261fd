package value

import "github.com/vjranagit/scandata/pkg/types"

// Text carries a structured, non-numeric record such as a file header or
// default settings
type Text struct {
	desc types.Descriptor
	data any
}

func NewText(data any, d types.Descriptor) *Text {
	return &Text{desc: d.Clone(), data: data}
}

func (t *Text) Descriptor() types.Descriptor { return t.desc.Clone() }

func (t *Text) Shape() []int { return nil }

// Data returns the record. Callers must not modify it.
func (t *Text) Data() any { return t.data }

func (t *Text) WithDescriptor(d types.Descriptor) Object {
	return &Text{desc: d.Clone(), data: t.data}
}
