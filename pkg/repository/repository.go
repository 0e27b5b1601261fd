// Package repository stores value objects keyed by descriptor.
//
// Lookups are subset matches: a query descriptor selects every stored item
// that carries all of the query's set fields. Saving an item replaces every
// stored item whose descriptor is a subset of the new one, so a stage that
// relabels a product overwrites its previous output instead of duplicating it.
//
// Returned objects are the stored instances, not copies. Value objects are
// immutable, so sharing them is safe as long as callers do not mutate slices
// they obtained by other means.
package repository

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

type entry struct {
	id  uint64
	seq uint64
	obj value.Object
}

// Repository is an in-memory, concurrency-safe value object store
type Repository struct {
	mu      sync.RWMutex
	items   map[uint64]*entry
	index   *index
	seq     uint64
	version atomic.Uint64
	logger  *zap.Logger
}

// Option configures a Repository
type Option func(*Repository)

// WithLogger sets the logger used for lookup misses
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// New creates an empty repository
func New(opts ...Option) *Repository {
	r := &Repository{
		items:  make(map[uint64]*entry),
		index:  newIndex(),
		logger: zap.L(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save inserts obj, first removing every stored item whose descriptor is a
// subset of obj's
func (r *Repository) Save(obj value.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveLocked(obj)
	r.version.Add(1)
}

// SaveAll saves every item in order
func (r *Repository) SaveAll(objs []value.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, obj := range objs {
		r.saveLocked(obj)
	}
	r.version.Add(1)
}

func (r *Repository) saveLocked(obj value.Object) {
	d := obj.Descriptor()
	for id, e := range r.items {
		if e.obj.Descriptor().SubsetOf(d) {
			r.removeLocked(id)
		}
	}

	id := fingerprint(d)
	// distinct descriptors with equal hashes probe forward
	for {
		if _, taken := r.items[id]; !taken {
			break
		}
		id++
	}

	r.seq++
	r.items[id] = &entry{id: id, seq: r.seq, obj: obj}
	r.index.add(id, d)
}

func (r *Repository) removeLocked(id uint64) {
	e, ok := r.items[id]
	if !ok {
		return
	}
	r.index.remove(id, e.obj.Descriptor())
	delete(r.items, id)
}

// Find returns every item whose descriptor is a superset of target, in
// insertion order. With except set, items sharing any of its field values
// are left out. No match is not an error: the result is empty and the miss
// is logged.
func (r *Repository) Find(target types.Descriptor, except ...types.Descriptor) []value.Object {
	r.mu.RLock()
	entries := r.matchLocked(target, except)
	r.mu.RUnlock()

	if len(entries) == 0 {
		r.logger.Info("no data matches descriptor", zap.Stringer("target", target))
		return nil
	}
	out := make([]value.Object, len(entries))
	for i, e := range entries {
		out[i] = e.obj
	}
	return out
}

// Descriptors lists the descriptors Find would return objects for
func (r *Repository) Descriptors(target types.Descriptor, except ...types.Descriptor) []types.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.matchLocked(target, except)
	out := make([]types.Descriptor, len(entries))
	for i, e := range entries {
		out[i] = e.obj.Descriptor()
	}
	return out
}

func (r *Repository) matchLocked(target types.Descriptor, except []types.Descriptor) []*entry {
	var out []*entry
	for _, id := range r.index.find(target) {
		e := r.items[id]
		if excluded(e.obj.Descriptor(), except) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func excluded(d types.Descriptor, except []types.Descriptor) bool {
	for _, x := range except {
		if x.SharesAny(d) {
			return true
		}
	}
	return false
}

// Delete removes every item whose descriptor is a superset of target and
// returns how many were removed
func (r *Repository) Delete(target types.Descriptor) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.index.find(target)
	for _, id := range ids {
		r.removeLocked(id)
	}
	if len(ids) > 0 {
		r.version.Add(1)
	}
	return len(ids)
}

// ReplaceSource swaps every item from source for objs in one step, so readers
// never observe a half-reloaded recording
func (r *Repository) ReplaceSource(source string, objs []value.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.index.find(types.Descriptor{Source: source}) {
		r.removeLocked(id)
	}
	for _, obj := range objs {
		r.saveLocked(obj)
	}
	r.version.Add(1)
}

// Len returns the number of stored items
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Version changes on every mutation
func (r *Repository) Version() uint64 {
	return r.version.Load()
}

// Clear removes every item
func (r *Repository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[uint64]*entry)
	r.index.clear()
	r.version.Add(1)
}
