package decoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/scandata/internal/fixture"
)

func pixel(x, y, t int) int16 { return int16(100*t + 10*x + y) }
func dark(x, y int) int16     { return int16(7 + x) }

func tsmRecording() fixture.Recording {
	return fixture.Recording{
		Rows: 3, Cols: 4, Frames: 6,
		Pixel:        pixel,
		Dark:         dark,
		Exposure:     0.002,
		Ratio:        5,
		ElecChannels: 2,
		Elec:         func(ch, i int) float64 { return float64(ch*1000 + i) },
	}
}

func requireDecodeError(t *testing.T, err error, field string) *DecodeError {
	t.Helper()
	var de *DecodeError
	require.True(t, errors.As(err, &de), "want DecodeError, got %v", err)
	assert.Equal(t, field, de.Field)
	return de
}

func TestDecodeTSM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.tsm")
	require.NoError(t, fixture.WriteTSM(path, tsmRecording()))

	rec, err := DecodeTSM(path, Params{Channels: 2, ElecChannels: 2})
	require.NoError(t, err)

	h := rec.Header
	assert.Equal(t, FormatTSM, h.Format)
	assert.Equal(t, 3, h.Rows)
	assert.Equal(t, 4, h.Cols)
	assert.Equal(t, 6, h.Frames)
	assert.Equal(t, 5, h.Ratio)
	assert.InDelta(t, 2.0, h.FrameInterval, 1e-12)
	assert.Equal(t, "T", h.Fields["SIMPLE"])

	full := rec.Full
	assert.Equal(t, [3]int{3, 4, 6}, [3]int{full.NX, full.NY, full.NT})
	// dark offset removed
	assert.Equal(t, float64(pixel(2, 3, 5)), full.Data[5*12+2*4+3])

	require.Len(t, rec.Channels, 2)
	ch2 := rec.Channels[1]
	assert.Equal(t, 3, ch2.NT)
	assert.InDelta(t, 4.0, ch2.Interval, 1e-12)
	// channel 2 holds frames 1, 3, 5
	assert.Equal(t, float64(pixel(1, 1, 3)), ch2.Data[1*12+1*4+1])

	require.Len(t, rec.Elec, 2)
	e := rec.Elec[1]
	assert.Len(t, e.Data, 30)
	assert.InDelta(t, 0.4, e.Interval, 1e-12)
	assert.InDelta(t, float64(1000+7)/10*20*1000, e.Data[7], 1e-6)
	assert.InDelta(t, 3.0/10*1000, rec.Elec[0].Data[3], 1e-6)
}

func TestDecodeTSMWithoutElecIgnoresMissingSidecar(t *testing.T) {
	r := tsmRecording()
	r.ElecChannels = 0
	path := filepath.Join(t.TempDir(), "rec.tsm")
	require.NoError(t, fixture.WriteTSM(path, r))

	rec, err := DecodeTSM(path, Params{Channels: 1})
	require.NoError(t, err)
	assert.Empty(t, rec.Elec)
	assert.Len(t, rec.Channels, 1)
}

func TestDecodeTSMMissingSidecar(t *testing.T) {
	r := tsmRecording()
	r.ElecChannels = 0
	path := filepath.Join(t.TempDir(), "rec.tsm")
	require.NoError(t, fixture.WriteTSM(path, r))

	_, err := DecodeTSM(path, Params{Channels: 1, ElecChannels: 1})
	requireDecodeError(t, err, "sidecar")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDecodeTSMTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.tsm")
	require.NoError(t, fixture.WriteTSM(path, tsmRecording()))
	require.NoError(t, fixture.Truncate(path, 10))

	_, err := DecodeTSM(path, Params{Channels: 2, ElecChannels: 2})
	requireDecodeError(t, err, "payload")
	assert.ErrorIs(t, err, ErrTruncated)
}

// writeTSMHeader writes a bare header with the given cards followed by
// payload bytes of zeros
func writeTSMHeader(t *testing.T, path string, cards [][2]string, payload int) {
	t.Helper()
	var b bytes.Buffer
	for _, c := range cards {
		fmt.Fprintf(&b, "%-8s= %20s%50s", c[0], c[1], "")
	}
	fmt.Fprintf(&b, "%-80s", "END")
	b.Write(bytes.Repeat([]byte(" "), 2880-b.Len()))
	b.Write(make([]byte, payload))
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
}

func TestDecodeTSMHeaderLargerThanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.tsm")
	writeTSMHeader(t, path, [][2]string{
		{"NAXIS1", "100000"}, {"NAXIS2", "100000"}, {"NAXIS3", "100000"}, {"EXPOSURE", "0.001"},
	}, 64)

	_, err := DecodeTSM(path, Params{Channels: 1})
	requireDecodeError(t, err, "payload")
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeTSMHeaderOverflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.tsm")
	writeTSMHeader(t, path, [][2]string{
		{"NAXIS1", "9223372036854775807"}, {"NAXIS2", "3"}, {"NAXIS3", "1"}, {"EXPOSURE", "0.001"},
	}, 64)

	_, err := DecodeTSM(path, Params{Channels: 1})
	requireDecodeError(t, err, "payload")
}

func TestDecodeTSMSidecarLargerThanFile(t *testing.T) {
	r := tsmRecording()
	path := filepath.Join(t.TempDir(), "rec.tsm")
	require.NoError(t, fixture.WriteTSM(path, r))

	// -2 channels, ratio 30000, no samples
	side := new(bytes.Buffer)
	require.NoError(t, binary.Write(side, binary.LittleEndian, []int16{-2, 30000}))
	require.NoError(t, os.WriteFile(SidecarPath(path), side.Bytes(), 0o644))

	_, err := DecodeTSM(path, Params{Channels: 2, ElecChannels: 2})
	requireDecodeError(t, err, "sidecar payload")
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeTSMNonDivisibleFrames(t *testing.T) {
	r := tsmRecording()
	r.Frames = 7
	path := filepath.Join(t.TempDir(), "rec.tsm")
	require.NoError(t, fixture.WriteTSM(path, r))

	_, err := DecodeTSM(path, Params{Channels: 2, ElecChannels: 2})
	requireDecodeError(t, err, "NAXIS3")
}

func TestDecodeTSMBadHeaderField(t *testing.T) {
	r := tsmRecording()
	r.Exposure = 0
	path := filepath.Join(t.TempDir(), "rec.tsm")
	require.NoError(t, fixture.WriteTSM(path, r))

	_, err := DecodeTSM(path, Params{Channels: 2, ElecChannels: 2})
	requireDecodeError(t, err, "EXPOSURE")
}

func TestDecodeDA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.da")
	r := fixture.Recording{
		Rows: 3, Cols: 2, Frames: 4,
		Pixel:        pixel,
		Dark:         dark,
		IntervalUS:   500,
		Ratio:        2,
		ElecChannels: 3,
		Elec:         func(ch, i int) float64 { return float64(10*ch + i) },
	}
	require.NoError(t, fixture.WriteDA(path, r))

	rec, err := DecodeDA(path, Params{Channels: 2, ElecChannels: 3})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, rec.Header.FrameInterval, 1e-12)
	assert.Equal(t, 2, rec.Header.Ratio)

	plane := 3 * 2
	for tt := 0; tt < 4; tt++ {
		for x := 0; x < 3; x++ {
			for y := 0; y < 2; y++ {
				assert.Equal(t, float64(pixel(x, y, tt)), rec.Full.Data[tt*plane+x*2+y])
			}
		}
	}

	require.Len(t, rec.Channels, 2)
	assert.InDelta(t, 1.0, rec.Channels[0].Interval, 1e-12)
	assert.Equal(t, float64(pixel(2, 1, 2)), rec.Channels[0].Data[1*plane+2*2+1])

	require.Len(t, rec.Elec, 3)
	assert.Len(t, rec.Elec[2].Data, 8)
	assert.InDelta(t, float64(25)*1000/32678, rec.Elec[2].Data[5], 1e-9)
	assert.InDelta(t, 0.25, rec.Elec[2].Interval, 1e-12)
}

func TestDecodeDATooManyElecChannels(t *testing.T) {
	_, err := DecodeDA("unused.da", Params{Channels: 1, ElecChannels: 9})
	requireDecodeError(t, err, "electrophysiology_channel_count")
}

func TestDecodeDATruncatedDark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.da")
	require.NoError(t, fixture.WriteDA(path, fixture.Recording{Rows: 2, Cols: 2, Frames: 2, IntervalUS: 1000, Ratio: 1}))
	require.NoError(t, fixture.Truncate(path, 2))

	_, err := DecodeDA(path, Params{Channels: 1})
	requireDecodeError(t, err, "dark_frame")
}

func TestDecodeDAHeaderLargerThanFile(t *testing.T) {
	h := make([]int16, 2560)
	h[4], h[384], h[385], h[388], h[391] = 32000, 32000, 32000, 1000, 1
	var b bytes.Buffer
	require.NoError(t, binary.Write(&b, binary.LittleEndian, h))
	b.Write(make([]byte, 128))
	path := filepath.Join(t.TempDir(), "rec.da")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))

	_, err := DecodeDA(path, Params{Channels: 1})
	requireDecodeError(t, err, "payload")
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeDATruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.da")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	_, err := DecodeDA(path, Params{Channels: 1})
	requireDecodeError(t, err, "header")
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeDAZeroRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.da")
	require.NoError(t, fixture.WriteDA(path, fixture.Recording{Rows: 0, Cols: 2, Frames: 2, IntervalUS: 1000, Ratio: 1}))

	_, err := DecodeDA(path, Params{Channels: 1})
	requireDecodeError(t, err, "rows")
}

func TestDeinterleave(t *testing.T) {
	full := Stack{Data: []float64{0, 1, 2, 3, 4, 5}, NX: 1, NY: 1, NT: 6, Interval: 1.5}

	chans, err := Deinterleave(FormatDA, full, 3)
	require.NoError(t, err)
	require.Len(t, chans, 3)
	assert.Equal(t, []float64{0, 3}, chans[0].Data)
	assert.Equal(t, []float64{2, 5}, chans[2].Data)
	assert.InDelta(t, 4.5, chans[1].Interval, 1e-12)

	_, err = Deinterleave(FormatDA, full, 4)
	requireDecodeError(t, err, "channel_count")
}

func TestSubtractDark(t *testing.T) {
	data := []float64{5, 6, 7, 8}
	require.NoError(t, SubtractDark(FormatTSM, data, []float64{1, 2}))
	assert.Equal(t, []float64{4, 4, 6, 6}, data)

	err := SubtractDark(FormatTSM, data, []float64{1, 2, 3})
	requireDecodeError(t, err, "dark_frame")
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "/data/run1.tbn", SidecarPath("/data/run1.tsm"))
}
