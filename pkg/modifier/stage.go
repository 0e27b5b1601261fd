package modifier

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vjranagit/scandata/pkg/value"
)

// Fetch pulls a second value object through the stage's provider
type Fetch func(req Request) (value.Object, error)

// Stage is one named, parameterized transform in a Chain
type Stage interface {
	Name() string
	Category() Category
	// Apply transforms v. Stages that need a sibling value call fetch.
	Apply(v value.Object, fetch Fetch) (value.Object, error)
	// Set changes the parameter; the accepted types depend on the category
	Set(param any) error
	// Params returns a copy of the current parameter
	Params() any
	// Reset restores the built-in default
	Reset()
	Observer() *Observer
}

// notifier is implemented by stages whose parameter changes are announced
// to listeners
type notifier interface {
	notifiesOnSet() bool
}

// fetcher is implemented by stages that pull second objects
type fetcher interface {
	fetchesSecond() bool
}

// base carries what every stage shares
type base struct {
	mu       sync.RWMutex
	name     string
	cat      Category
	observer *Observer
	logger   *zap.Logger
}

func newBase(name string, cat Category, logger *zap.Logger) *base {
	return &base{name: name, cat: cat, observer: newObserver(), logger: logger}
}

func (b *base) Name() string         { return b.name }
func (b *base) Category() Category   { return b.cat }
func (b *base) Observer() *Observer  { return b.observer }
func (b *base) badParam(p any) error { return badParam(b.name, p) }

func badParam(stage string, p any) error {
	return &value.ParameterValidationError{
		Param:  stage,
		Value:  fmt.Sprintf("%T", p),
		Reason: "unsupported parameter type",
	}
}

// newStage constructs a stage of category c with its default parameter
func newStage(c Category, name string, logger *zap.Logger) Stage {
	b := newBase(name, c, logger)
	var s Stage
	switch c {
	case CategoryTimeWindow:
		s = &TimeWindow{base: b}
	case CategoryRoi:
		s = &Roi{base: b}
	case CategoryAverage:
		s = &Average{base: b}
	case CategoryBlComp:
		s = &BlComp{base: b}
	case CategoryScale:
		s = &Scale{base: b}
	case CategoryDifImage:
		s = &DifImage{base: b}
	case CategoryInvert:
		s = &Invert{base: b}
	case CategoryTagMaker:
		s = &TagMaker{base: b}
	default:
		return nil
	}
	s.Reset()
	return s
}
