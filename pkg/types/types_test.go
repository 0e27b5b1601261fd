package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func frames(ch int) Descriptor {
	return Descriptor{
		Source:     "20408B002.tsm",
		Category:   CategoryData,
		Kind:       KindFluoFrames,
		Channel:    ChannelOf(ch),
		Provenance: ProvenanceRaw,
	}
}

func TestSubsetOfIsPerField(t *testing.T) {
	item := frames(1)

	assert.True(t, Descriptor{Kind: KindFluoFrames}.SubsetOf(item))
	assert.True(t, Descriptor{Category: CategoryData, Channel: "Ch1"}.SubsetOf(item))
	assert.True(t, Descriptor{}.SubsetOf(item))
	assert.False(t, Descriptor{Channel: "Ch2"}.SubsetOf(item))

	// Same string under a different key must not match.
	assert.False(t, Descriptor{Provenance: "Data"}.SubsetOf(item))
	assert.False(t, Descriptor{Extra: map[string]string{"Role": "Raw"}}.SubsetOf(item))
}

func TestSubsetOfExtraTags(t *testing.T) {
	item := frames(1).With("Role", "Baseline")

	assert.True(t, Descriptor{Extra: map[string]string{"Role": "Baseline"}}.SubsetOf(item))
	assert.False(t, item.SubsetOf(frames(1)))
	assert.True(t, frames(1).SubsetOf(item))
}

func TestWithDoesNotMutate(t *testing.T) {
	orig := frames(1).With("Role", "x")
	changed := orig.With(KeyCategory, "Baseline").With("Role", "y")

	assert.Equal(t, CategoryData, orig.Category)
	assert.Equal(t, "x", orig.Extra["Role"])
	assert.Equal(t, CategoryBaseline, changed.Category)
	assert.Equal(t, "y", changed.Extra["Role"])
}

func TestWithTags(t *testing.T) {
	got := frames(2).WithTags(map[string]string{
		KeyCategory: "Baseline",
		KeyKind:     "FluoTrace",
		"Roi":       "Roi1",
	})
	want := Descriptor{
		Source:     "20408B002.tsm",
		Category:   CategoryBaseline,
		Kind:       KindFluoTrace,
		Channel:    "Ch2",
		Provenance: ProvenanceRaw,
		Extra:      map[string]string{"Roi": "Roi1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WithTags mismatch (-want +got):\n%s", diff)
	}
}

func TestSharesAny(t *testing.T) {
	item := frames(1)
	assert.True(t, Descriptor{Channel: "Ch1"}.SharesAny(item))
	assert.True(t, Descriptor{Kind: KindElecTrace, Provenance: ProvenanceRaw}.SharesAny(item))
	assert.False(t, Descriptor{Kind: KindElecTrace}.SharesAny(item))
	assert.False(t, Descriptor{}.SharesAny(item))
}

func TestChannelIndex(t *testing.T) {
	assert.Equal(t, 0, ChannelOf(0).Index())
	assert.Equal(t, 12, ChannelOf(12).Index())
	assert.Equal(t, -1, Channel("").Index())
	assert.Equal(t, -1, Channel("Roi1").Index())
}

func TestSourceKind(t *testing.T) {
	assert.Equal(t, KindFluoFrames, KindFluoTrace.SourceKind())
	assert.Equal(t, KindFluoFrames, KindFluoImage.SourceKind())
	assert.Equal(t, KindElecTrace, KindElecTrace.SourceKind())
}

func TestStringAndLabel(t *testing.T) {
	d := frames(1)
	assert.Equal(t, "FluoFramesCh1", d.Label())
	assert.Equal(t, "{Source=20408B002.tsm Category=Data Kind=FluoFrames Channel=Ch1 Provenance=Raw}", d.String())
}
