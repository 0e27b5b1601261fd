// Package modifier implements the category-ordered transform chain applied to
// value objects on their way out of the repository.
//
// A Chain holds named stages. Stage names are a category plus an index
// ("Roi1"); whatever order stages are added or requested in, they run in
// category order: TimeWindow, Roi, Average, BlComp, Scale, DifImage, Invert,
// TagMaker. A request naming a stage the chain does not run is an error, so a
// transform is never skipped silently.
package modifier

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/vjranagit/scandata/pkg/value"
)

type slot struct {
	stage Stage
	index int
}

// Chain is an ordered set of stages with per-stage second-object providers
type Chain struct {
	mu        sync.RWMutex
	slots     []slot
	providers map[string]Provider
	defaults  map[string]any
	version   uint64
	logger    *zap.Logger
}

// ChainOption configures a Chain
type ChainOption func(*Chain)

// WithLogger sets the chain's logger; stages inherit it
func WithLogger(l *zap.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// WithDefaults sets parameter defaults keyed by stage name or category name.
// A stage name entry wins over a category entry.
func WithDefaults(defaults map[string]any) ChainOption {
	return func(c *Chain) {
		c.defaults = make(map[string]any, len(defaults))
		for k, v := range defaults {
			c.defaults[k] = v
		}
	}
}

// NewChain creates an empty chain
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{
		providers: make(map[string]Provider),
		defaults:  map[string]any{},
		logger:    zap.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewChainFrom creates a chain holding the named stages, with defaults
// applied to each
func NewChainFrom(stages []string, defaults map[string]any, opts ...ChainOption) (*Chain, error) {
	c := NewChain(append([]ChainOption{WithDefaults(defaults)}, opts...)...)
	for _, name := range stages {
		if _, err := c.Add(name); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add inserts a stage and returns its name. A bare category name takes the
// smallest unused index; an explicit index that is taken is an error.
func (c *Chain) Add(name string) (string, error) {
	cat, index, indexed, err := ParseStageName(name)
	if err != nil {
		return "", &ChainConsistencyError{Op: "add", Names: []string{name}, Reason: err.Error()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	used := make(map[int]bool)
	for _, sl := range c.slots {
		if sl.stage.Category() == cat {
			used[sl.index] = true
		}
	}
	if indexed {
		if used[index] {
			return "", &ChainConsistencyError{Op: "add", Names: []string{name}, Reason: "stage already exists"}
		}
	} else {
		for used[index] {
			index++
		}
	}

	s := newStage(cat, stageName(cat, index), c.logger)
	if err := c.applyDefault(s); err != nil {
		return "", err
	}
	c.slots = append(c.slots, slot{stage: s, index: index})
	sort.SliceStable(c.slots, func(i, j int) bool {
		a, b := c.slots[i], c.slots[j]
		if a.stage.Category() != b.stage.Category() {
			return a.stage.Category() < b.stage.Category()
		}
		return a.index < b.index
	})
	c.version++

	c.logger.Debug("stage added", zap.String("stage", s.Name()))
	return s.Name(), nil
}

// Remove deletes a stage and its provider
func (c *Chain) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, sl := range c.slots {
		if sl.stage.Name() == name {
			c.slots = append(c.slots[:i], c.slots[i+1:]...)
			delete(c.providers, name)
			c.version++
			return nil
		}
	}
	return &ChainConsistencyError{Op: "remove", Names: []string{name}, Reason: "no such stage"}
}

// Set changes a stage parameter. TimeWindow and Roi stages notify their
// listeners afterwards.
func (c *Chain) Set(name string, param any) error {
	s, err := c.Stage(name)
	if err != nil {
		return err
	}
	if err := s.Set(param); err != nil {
		return err
	}
	c.bump()
	c.notify(s)
	return nil
}

// Reset restores a stage to its built-in default, then applies the
// configured default when there is one
func (c *Chain) Reset(name string) error {
	s, err := c.Stage(name)
	if err != nil {
		return err
	}
	s.Reset()
	c.mu.RLock()
	err = c.applyDefault(s)
	c.mu.RUnlock()
	if err != nil {
		return err
	}
	c.bump()
	c.notify(s)
	return nil
}

// Stage returns the named stage
func (c *Chain) Stage(name string) (Stage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sl := range c.slots {
		if sl.stage.Name() == name {
			return sl.stage, nil
		}
	}
	return nil, &ChainConsistencyError{Op: "lookup", Names: []string{name}, Reason: "no such stage"}
}

// Names returns stage names in evaluation order
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.slots))
	for i, sl := range c.slots {
		out[i] = sl.stage.Name()
	}
	return out
}

// Version changes whenever a stage, parameter or provider changes. Cached
// results computed under an older version are stale.
func (c *Chain) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Listen registers l on the named stage's observer
func (c *Chain) Listen(name string, l Listener) (func(), error) {
	s, err := c.Stage(name)
	if err != nil {
		return nil, err
	}
	return s.Observer().Register(l), nil
}

// SetProvider registers the second-object provider for a BlComp or DifImage
// stage, replacing any earlier one. A nil provider unregisters.
func (c *Chain) SetProvider(name string, p Provider) error {
	s, err := c.Stage(name)
	if err != nil {
		return err
	}
	if f, ok := s.(fetcher); !ok || !f.fetchesSecond() {
		return &ChainConsistencyError{Op: "provider", Names: []string{name}, Reason: "stage does not fetch second objects"}
	}

	c.mu.Lock()
	if p == nil {
		delete(c.providers, name)
	} else {
		c.providers[name] = p
	}
	c.version++
	c.mu.Unlock()
	return nil
}

// StageInfo describes one stage in a Snapshot
type StageInfo struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Params   any    `json:"params,omitempty" yaml:"params,omitempty"`
}

// Snapshot is a point-in-time view of the chain
type Snapshot struct {
	Version uint64      `json:"version" yaml:"version"`
	Stages  []StageInfo `json:"stages" yaml:"stages"`
}

// Snapshot captures every stage's name and parameter
func (c *Chain) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Version: c.version, Stages: make([]StageInfo, len(c.slots))}
	for i, sl := range c.slots {
		snap.Stages[i] = StageInfo{
			Name:     sl.stage.Name(),
			Category: sl.stage.Category().String(),
			Params:   describeParam(sl.stage.Params()),
		}
	}
	return snap
}

func describeParam(p any) any {
	switch v := p.(type) {
	case value.RoiVal:
		return v.Values()
	case value.TimeWindowVal:
		return [2]int{v.Start(), v.Width()}
	case BlCompParams:
		return map[string]any{"mode": string(v.Mode), "cut": [2]int{v.Cut.Start(), v.Cut.Width()}}
	}
	return p
}

// Apply runs v through the named stages in category order. Every name must
// be consumed; leftovers mean a requested transform was never applied and
// are reported as a ChainConsistencyError. An empty name list returns v.
func (c *Chain) Apply(v value.Object, names []string) (value.Object, error) {
	if len(names) == 0 {
		return v, nil
	}

	c.mu.RLock()
	slots := append([]slot(nil), c.slots...)
	providers := make(map[string]Provider, len(c.providers))
	for k, p := range c.providers {
		providers[k] = p
	}
	c.mu.RUnlock()

	pending := make(map[string]int, len(names))
	for _, n := range names {
		pending[n]++
	}

	out := v
	for _, sl := range slots {
		s := sl.stage
		name := s.Name()
		if pending[name] == 0 {
			continue
		}
		pending[name]--
		if pending[name] == 0 {
			delete(pending, name)
		}

		provider := providers[name]
		fetch := func(req Request) (value.Object, error) {
			if provider == nil {
				return nil, &MissingSecondObjectProviderError{Stage: name}
			}
			return provider(req)
		}

		next, err := s.Apply(out, fetch)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		s.Observer().clear()
		out = next
	}

	if len(pending) > 0 {
		left := make([]string, 0, len(pending))
		for _, n := range names {
			if pending[n] > 0 {
				left = append(left, n)
				pending[n]--
			}
		}
		return nil, &ChainConsistencyError{Op: "apply", Names: left, Reason: "requested stages were not consumed"}
	}
	if tr, ok := out.(*value.Trace); ok && tr.Short() {
		c.logger.Warn("short trace, leading-window scaling may be unreliable",
			zap.Stringer("descriptor", tr.Descriptor()), zap.Int("len", tr.Len()), zap.Int("min", value.MinTraceLen))
	}
	return out, nil
}

func (c *Chain) bump() {
	c.mu.Lock()
	c.version++
	c.mu.Unlock()
}

func (c *Chain) notify(s Stage) {
	if n, ok := s.(notifier); ok && n.notifiesOnSet() {
		s.Observer().Notify(s.Name())
	}
}

// applyDefault sets the configured default on s. Defaults from settings
// files arrive as decoded YAML and are parsed; typed values are set as is.
func (c *Chain) applyDefault(s Stage) error {
	raw, ok := c.defaults[s.Name()]
	if !ok {
		raw, ok = c.defaults[s.Category().String()]
	}
	if !ok {
		return nil
	}

	p, err := ParseParam(s.Category(), raw)
	if err != nil {
		if serr := s.Set(raw); serr == nil {
			return nil
		}
		return fmt.Errorf("default for %s: %w", s.Name(), err)
	}
	if err := s.Set(p); err != nil {
		return fmt.Errorf("default for %s: %w", s.Name(), err)
	}
	return nil
}
