package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Category classifies what a stored item is for
type Category string

// Categories written by the builder. Stages may introduce others (e.g. Baseline).
const (
	CategoryData     Category = "Data"
	CategoryHeader   Category = "Header"
	CategoryDefault  Category = "Default"
	CategoryText     Category = "Text"
	CategoryBaseline Category = "Baseline"
)

// Kind names the physical signal a value object carries
type Kind string

// Known kinds
const (
	KindFluoFrames Kind = "FluoFrames"
	KindFluoImage  Kind = "FluoImage"
	KindFluoTrace  Kind = "FluoTrace"
	KindElecTrace  Kind = "ElecTrace"
	KindText       Kind = "Text"
)

// SourceKind returns the kind a derived kind is computed from.
// Fluorescence traces and images are both reductions of a frame stack.
func (k Kind) SourceKind() Kind {
	switch k {
	case KindFluoTrace, KindFluoImage:
		return KindFluoFrames
	default:
		return k
	}
}

// Channel identifies a logical acquisition channel ("Ch0" is the multiplexed full stack)
type Channel string

// ChannelOf returns the channel label for index n
func ChannelOf(n int) Channel {
	return Channel("Ch" + strconv.Itoa(n))
}

// Index returns the numeric channel index, or -1 when unset or malformed
func (c Channel) Index() int {
	n, err := strconv.Atoi(strings.TrimPrefix(string(c), "Ch"))
	if err != nil || !strings.HasPrefix(string(c), "Ch") {
		return -1
	}
	return n
}

// ProvenanceRaw marks data read straight from a recording file
const ProvenanceRaw = "Raw"

// Descriptor is the tag set attached to every value object.
// Empty fields act as wildcards when the descriptor is used as a query.
type Descriptor struct {
	Source     string
	Category   Category
	Kind       Kind
	Channel    Channel
	Provenance string
	// Extra holds tags added by stages (TagMaker)
	Extra map[string]string
}

// Field keys accepted by With and WithTags
const (
	KeySource     = "Source"
	KeyCategory   = "Category"
	KeyKind       = "Kind"
	KeyChannel    = "Channel"
	KeyProvenance = "Provenance"
)

// fields returns the fixed fields as key/value pairs in a stable order
func (d Descriptor) fields() [5][2]string {
	return [5][2]string{
		{KeySource, d.Source},
		{KeyCategory, string(d.Category)},
		{KeyKind, string(d.Kind)},
		{KeyChannel, string(d.Channel)},
		{KeyProvenance, d.Provenance},
	}
}

// Pairs returns every set field, fixed fields first, then extras sorted by key
func (d Descriptor) Pairs() [][2]string {
	pairs := make([][2]string, 0, 5+len(d.Extra))
	for _, f := range d.fields() {
		if f[1] != "" {
			pairs = append(pairs, f)
		}
	}
	keys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if d.Extra[k] != "" {
			pairs = append(pairs, [2]string{k, d.Extra[k]})
		}
	}
	return pairs
}

// Get returns the value stored under key, either a fixed field or an extra tag
func (d Descriptor) Get(key string) string {
	switch key {
	case KeySource:
		return d.Source
	case KeyCategory:
		return string(d.Category)
	case KeyKind:
		return string(d.Kind)
	case KeyChannel:
		return string(d.Channel)
	case KeyProvenance:
		return d.Provenance
	}
	return d.Extra[key]
}

// With returns a copy of d with key set to value
func (d Descriptor) With(key, value string) Descriptor {
	out := d.Clone()
	switch key {
	case KeySource:
		out.Source = value
	case KeyCategory:
		out.Category = Category(value)
	case KeyKind:
		out.Kind = Kind(value)
	case KeyChannel:
		out.Channel = Channel(value)
	case KeyProvenance:
		out.Provenance = value
	default:
		if out.Extra == nil {
			out.Extra = make(map[string]string)
		}
		out.Extra[key] = value
	}
	return out
}

// WithTags merges tags into a copy of d
func (d Descriptor) WithTags(tags map[string]string) Descriptor {
	out := d.Clone()
	for k, v := range tags {
		out = out.With(k, v)
	}
	return out
}

// Clone returns a deep copy
func (d Descriptor) Clone() Descriptor {
	out := d
	if d.Extra != nil {
		out.Extra = make(map[string]string, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// IsEmpty reports whether no field is set
func (d Descriptor) IsEmpty() bool {
	return len(d.Pairs()) == 0
}

// SubsetOf reports whether every field set in d is set to the same value in other.
// Comparison is per field, so equal strings under different keys never match.
func (d Descriptor) SubsetOf(other Descriptor) bool {
	for _, f := range d.fields() {
		if f[1] != "" && other.Get(f[0]) != f[1] {
			return false
		}
	}
	for k, v := range d.Extra {
		if v == "" {
			continue
		}
		if other.Extra[k] != v {
			return false
		}
	}
	return true
}

// Equal reports whether both descriptors carry the same set fields
func (d Descriptor) Equal(other Descriptor) bool {
	return d.SubsetOf(other) && other.SubsetOf(d)
}

// SharesAny reports whether any field set in d has the same value in other.
// Used for exclusion filters.
func (d Descriptor) SharesAny(other Descriptor) bool {
	for _, p := range d.Pairs() {
		if other.Get(p[0]) == p[1] {
			return true
		}
	}
	return false
}

// Label returns the kind with its channel, e.g. "FluoFramesCh1"
func (d Descriptor) Label() string {
	return string(d.Kind) + string(d.Channel)
}

func (d Descriptor) String() string {
	parts := make([]string, 0, 5+len(d.Extra))
	for _, p := range d.Pairs() {
		parts = append(parts, fmt.Sprintf("%s=%s", p[0], p[1]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
