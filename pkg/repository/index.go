package repository

import (
	"bytes"
	"sort"

	"github.com/vjranagit/scandata/pkg/types"
)

// index is an inverted index over descriptor fields:
// field key -> field value -> item IDs
type index struct {
	postings map[string]map[string][]uint64
	all      map[uint64]struct{}
}

func newIndex() *index {
	return &index{
		postings: make(map[string]map[string][]uint64),
		all:      make(map[uint64]struct{}),
	}
}

func (idx *index) add(id uint64, d types.Descriptor) {
	idx.all[id] = struct{}{}
	for _, p := range d.Pairs() {
		if idx.postings[p[0]] == nil {
			idx.postings[p[0]] = make(map[string][]uint64)
		}
		idx.postings[p[0]][p[1]] = append(idx.postings[p[0]][p[1]], id)
	}
}

func (idx *index) remove(id uint64, d types.Descriptor) {
	delete(idx.all, id)
	for _, p := range d.Pairs() {
		values := idx.postings[p[0]]
		ids := values[p[1]]
		for i, v := range ids {
			if v == id {
				ids = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(ids) == 0 {
			delete(values, p[1])
		} else {
			values[p[1]] = ids
		}
		if len(values) == 0 {
			delete(idx.postings, p[0])
		}
	}
}

// find returns the IDs of every item carrying all set fields of target
func (idx *index) find(target types.Descriptor) []uint64 {
	pairs := target.Pairs()
	if len(pairs) == 0 {
		result := make([]uint64, 0, len(idx.all))
		for id := range idx.all {
			result = append(result, id)
		}
		return result
	}

	var result []uint64
	for i, p := range pairs {
		ids, ok := idx.postings[p[0]][p[1]]
		if !ok {
			return nil
		}
		if i == 0 {
			result = append([]uint64(nil), ids...)
		} else {
			result = intersect(result, append([]uint64(nil), ids...))
		}
		if len(result) == 0 {
			return nil
		}
	}
	return result
}

func (idx *index) clear() {
	idx.postings = make(map[string]map[string][]uint64)
	idx.all = make(map[uint64]struct{})
}

// fingerprint hashes the set fields of d. Equal descriptors share a fingerprint.
func fingerprint(d types.Descriptor) uint64 {
	buf := new(bytes.Buffer)
	for _, p := range d.Pairs() {
		buf.WriteString(p[0])
		buf.WriteByte(0) // Separator
		buf.WriteString(p[1])
		buf.WriteByte(0)
	}
	return hashBytes(buf.Bytes())
}

// hashBytes is FNV-1a
func hashBytes(data []byte) uint64 {
	var hash uint64 = 14695981039346656037 // FNV-1a offset basis
	for _, b := range data {
		hash ^= uint64(b)
		hash *= 1099511628211 // FNV-1a prime
	}
	return hash
}

// intersect finds common elements in two slices. Both are sorted in place,
// so callers pass copies of posting lists.
func intersect(a, b []uint64) []uint64 {
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })

	result := make([]uint64, 0)
	i, j := 0, 0

	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			i++
		} else if a[i] > b[j] {
			j++
		} else {
			result = append(result, a[i])
			i++
			j++
		}
	}

	return result
}
