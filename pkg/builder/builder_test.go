package builder

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/scandata/internal/config"
	"github.com/vjranagit/scandata/internal/fixture"
	"github.com/vjranagit/scandata/pkg/decoder"
	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

func settings(t *testing.T) *config.Settings {
	t.Helper()
	s, err := config.DefaultSettings()
	require.NoError(t, err)
	s.DA.ElecChannelCount = 2
	return s
}

func writeDA(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run1.da")
	require.NoError(t, fixture.WriteDA(path, fixture.Recording{
		Rows: 4, Cols: 5, Frames: frames,
		Pixel:        func(x, y, tt int) int16 { return int16(tt) },
		IntervalUS:   1000,
		Ratio:        2,
		ElecChannels: 2,
		Elec:         func(ch, i int) float64 { return float64(i) },
	}))
	return path
}

func TestBuildDA(t *testing.T) {
	res, err := Build(writeDA(t, 10), settings(t), nil)
	require.NoError(t, err)

	assert.Equal(t, decoder.FormatDA, res.Format)
	assert.Equal(t, 10, res.Header.Frames)

	labels := make([]string, 0, len(res.Objects))
	for _, o := range res.Objects {
		d := o.Descriptor()
		assert.Equal(t, "run1.da", d.Source)
		if d.Category == types.CategoryData {
			assert.Equal(t, types.ProvenanceRaw, d.Provenance)
		}
		labels = append(labels, string(d.Category)+"/"+d.Label())
	}
	assert.Equal(t, []string{
		"Data/FluoFramesCh0",
		"Data/FluoFramesCh1",
		"Data/FluoFramesCh2",
		"Data/ElecTraceCh1",
		"Data/ElecTraceCh2",
		"Header/Text",
		"Default/Text",
	}, labels)

	ch2 := res.Objects[2].(*value.Frames)
	assert.Equal(t, []int{4, 5, 5}, ch2.Shape())
	assert.Equal(t, 3.0, ch2.At(0, 0, 1))
	assert.InDelta(t, 2.0, ch2.Interval(), 1e-12)

	def := res.Objects[6].(*value.Text).Data().(config.FormatSettings)
	assert.Equal(t, 2, def.ChannelCount)
}

func TestBuildTSMSplitsTwoChannelsByDefault(t *testing.T) {
	s := settings(t)
	s.TSM.ElecChannelCount = 2
	path := filepath.Join(t.TempDir(), "run2.tsm")
	require.NoError(t, fixture.WriteTSM(path, fixture.Recording{
		Rows: 3, Cols: 3, Frames: 6,
		Pixel:        func(x, y, tt int) int16 { return int16(tt) },
		Exposure:     0.001,
		Ratio:        1,
		ElecChannels: 2,
	}))

	res, err := Build(path, s, nil)
	require.NoError(t, err)
	assert.Equal(t, decoder.FormatTSM, res.Format)
	assert.Equal(t, 2, res.Header.Channels)

	labels := make([]string, 0, len(res.Objects))
	for _, o := range res.Objects {
		labels = append(labels, o.Descriptor().Label())
	}
	assert.Equal(t, []string{
		"FluoFramesCh0", "FluoFramesCh1", "FluoFramesCh2",
		"ElecTraceCh1", "ElecTraceCh2", "Text", "Text",
	}, labels)

	ch2 := res.Objects[2].(*value.Frames)
	assert.Equal(t, []int{3, 3, 3}, ch2.Shape())
	assert.Equal(t, 5.0, ch2.At(1, 1, 2))
	assert.InDelta(t, 2.0, ch2.Interval(), 1e-12)
}

func TestBuildUnsupported(t *testing.T) {
	_, err := Build("/data/run1.fits", settings(t), nil)
	var ue *UnsupportedFormatError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, ".fits", ue.Ext)
	assert.Empty(t, ue.Hint)
}

func TestBuildSidecarHint(t *testing.T) {
	_, err := Build("/data/run1.TBN", settings(t), nil)
	var ue *UnsupportedFormatError
	require.True(t, errors.As(err, &ue))
	assert.Contains(t, ue.Error(), ".tsm")
}

func TestBuildNonDivisibleFails(t *testing.T) {
	_, err := Build(writeDA(t, 9), settings(t), nil)
	var de *decoder.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "frames", de.Field)
}

func TestFormat(t *testing.T) {
	f, err := Format("x.TSM")
	require.NoError(t, err)
	assert.Equal(t, decoder.FormatTSM, f)

	_, err = Format("x.txt")
	assert.Error(t, err)
}
