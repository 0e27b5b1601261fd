package modifier

import (
	"sync"

	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

// Listener is told that a stage's output may be stale. It is not given the
// new value; it pulls again when it wants one.
type Listener interface {
	StageChanged(stage string)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(stage string)

func (f ListenerFunc) StageChanged(stage string) { f(stage) }

// Request asks a provider for the sibling value a stage needs
type Request struct {
	// Stage is the requesting stage's name
	Stage string
	// Kind and Channel identify the value to fetch
	Kind    types.Kind
	Channel types.Channel
	// Target describes the value being transformed
	Target types.Descriptor
	// Window is the reference window DifImage averages over; nil for BlComp
	Window *value.TimeWindowVal
}

// Provider computes a second value object outside the main chain pass.
// BlComp fetches its baseline through it and DifImage its reference image.
type Provider func(req Request) (value.Object, error)

// Observer fans stale notifications out to listeners
type Observer struct {
	mu        sync.Mutex
	listeners map[uint64]Listener
	next      uint64
	stale     bool
}

func newObserver() *Observer {
	return &Observer{listeners: make(map[uint64]Listener)}
}

// Register adds l and returns a func that removes it
func (o *Observer) Register(l Listener) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.next
	o.next++
	o.listeners[id] = l
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}

// Notify marks the stage stale and informs every listener. Listeners run
// synchronously, outside the observer's lock.
func (o *Observer) Notify(stage string) {
	o.mu.Lock()
	o.stale = true
	ls := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		ls = append(ls, l)
	}
	o.mu.Unlock()

	for _, l := range ls {
		l.StageChanged(stage)
	}
}

// Stale reports whether the stage changed since it last ran
func (o *Observer) Stale() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stale
}

func (o *Observer) clear() {
	o.mu.Lock()
	o.stale = false
	o.mu.Unlock()
}

// Len returns the number of registered listeners
func (o *Observer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.listeners)
}
