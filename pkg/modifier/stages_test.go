package modifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

func trValues(t *testing.T, v value.Object) []float64 {
	t.Helper()
	tr, ok := v.(*value.Trace)
	require.True(t, ok, "want *value.Trace, got %T", v)
	return tr.Values()
}

func TestTimeWindowWholeAxisKeepsTrace(t *testing.T) {
	c := testChain(t, "TimeWindow")
	tr := fluoTrace(t, 1, 2, 3, 4, 5, 6)

	out, err := c.Apply(tr, []string{"TimeWindow0"})
	require.NoError(t, err)
	assert.Equal(t, tr.Values(), trValues(t, out))
	assert.Equal(t, "TimeWindow0", out.Descriptor().Provenance)

	require.NoError(t, c.Set("TimeWindow0", [2]int{2, 3}))
	out, err = c.Apply(tr, []string{"TimeWindow0"})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 5}, trValues(t, out))

	require.NoError(t, c.Set("TimeWindow0", [2]int{4, 5}))
	_, err = c.Apply(tr, []string{"TimeWindow0"})
	var pve *value.ParameterValidationError
	require.ErrorAs(t, err, &pve)
}

func TestTimeWindowOnFrames(t *testing.T) {
	c := testChain(t, "TimeWindow")
	require.NoError(t, c.Set("TimeWindow0", [2]int{1, 2}))

	out, err := c.Apply(stack(t, 2, 2, 5), []string{"TimeWindow0"})
	require.NoError(t, err)
	f := out.(*value.Frames)
	assert.Equal(t, []int{2, 2, 2}, f.Shape())
	assert.Equal(t, 100.0, f.At(0, 0, 0))

	_, err = c.Apply(value.NewText("x", types.Descriptor{}), []string{"TimeWindow0"})
	var uve *UnsupportedValueError
	require.ErrorAs(t, err, &uve)
}

func TestRoiPartialUpdate(t *testing.T) {
	c := testChain(t, "Roi")
	require.NoError(t, c.Set("Roi0", [4]int{10, 10, 5, 5}))
	require.NoError(t, c.Set("Roi0", RoiUpdate{Width: Int(2), Height: Int(2)}))

	s, err := c.Stage("Roi0")
	require.NoError(t, err)
	assert.Equal(t, [4]int{10, 10, 7, 7}, s.Params().(value.RoiVal).Values())

	require.NoError(t, c.Set("Roi0", RoiUpdate{X: Int(3)}))
	assert.Equal(t, [4]int{3, 10, 7, 7}, s.Params().(value.RoiVal).Values())

	require.NoError(t, c.Set("Roi0", RoiUpdate{X: Int(1), Y: Int(2), Width: Int(3), Height: Int(4)}))
	assert.Equal(t, [4]int{1, 2, 3, 4}, s.Params().(value.RoiVal).Values())
}

func TestRoiSetClamps(t *testing.T) {
	c := testChain(t, "Roi")
	require.NoError(t, c.Set("Roi0", [4]int{-3, 2, 0, 5}))

	s, err := c.Stage("Roi0")
	require.NoError(t, err)
	assert.Equal(t, [4]int{0, 2, 1, 5}, s.Params().(value.RoiVal).Values())

	require.NoError(t, c.Set("Roi0", RoiUpdate{Width: Int(-10)}))
	assert.Equal(t, [4]int{0, 2, 1, 5}, s.Params().(value.RoiVal).Values())
}

func TestRoiApplyClipsToFrame(t *testing.T) {
	c := testChain(t, "Roi")
	f := stack(t, 4, 4, 2)

	require.NoError(t, c.Set("Roi0", [4]int{2, 1, 5, 2}))
	out, err := c.Apply(f, []string{"Roi0"})
	require.NoError(t, err)
	crop := out.(*value.Frames)
	assert.Equal(t, []int{2, 2, 2}, crop.Shape())
	assert.Equal(t, 21.0, crop.At(0, 0, 0))
	assert.Equal(t, "Roi0", crop.Descriptor().Provenance)

	// The default rectangle sits far outside a small frame
	require.NoError(t, c.Reset("Roi0"))
	out, err = c.Apply(f, []string{"Roi0"})
	require.NoError(t, err)
	crop = out.(*value.Frames)
	assert.Equal(t, []int{1, 1, 2}, crop.Shape())
	assert.Equal(t, 33.0, crop.At(0, 0, 0))
}

func TestAverageModes(t *testing.T) {
	c := testChain(t, "Average")
	f := stack(t, 2, 2, 3)

	require.NoError(t, c.Set("Average0", AverageImage))
	out, err := c.Apply(f, []string{"Average0"})
	require.NoError(t, err)
	img := out.(*value.Image)
	assert.Equal(t, types.KindFluoImage, img.Descriptor().Kind)
	assert.Equal(t, 100.0, img.At(0, 0))
	assert.Equal(t, 111.0, img.At(1, 1))

	require.NoError(t, c.Set("Average0", "Roi"))
	out, err = c.Apply(f, []string{"Average0"})
	require.NoError(t, err)
	assert.Equal(t, types.KindFluoTrace, out.Descriptor().Kind)
	assert.Equal(t, []float64{5.5, 105.5, 205.5}, trValues(t, out))

	var pve *value.ParameterValidationError
	require.ErrorAs(t, c.Set("Average0", "Volume"), &pve)
	require.ErrorAs(t, c.Set("Average0", 3), &pve)
}

func TestScaleNormalize(t *testing.T) {
	c := testChain(t, "Scale")
	require.NoError(t, c.Set("Scale0", ScaleNormalize))

	out, err := c.Apply(fluoTrace(t, 7, 3, 11, 5, 9), []string{"Scale0"})
	require.NoError(t, err)
	vals := trValues(t, out)
	assert.InDelta(t, 0, minOf(vals), 1e-12)
	assert.InDelta(t, 1, maxOf(vals), 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0, 1, 0.25, 0.75}, vals, 1e-12)

	out, err = c.Apply(fluoTrace(t, 4, 4, 4, 4, 4), []string{"Scale0"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, trValues(t, out))
}

func TestScaleDFoF(t *testing.T) {
	c := testChain(t, "Scale")
	require.NoError(t, c.Set("Scale0", ScaleDFoF))

	out, err := c.Apply(fluoTrace(t, 10, 10, 10, 10, 10, 10), []string{"Scale0"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, trValues(t, out))

	out, err = c.Apply(fluoTrace(t, 10, 10, 10, 10, 12, 15), []string{"Scale0"})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0, 20, 50}, trValues(t, out), 1e-9)

	_, err = c.Apply(fluoTrace(t, 0, 0, 0, 0, 3), []string{"Scale0"})
	var pve *value.ParameterValidationError
	require.ErrorAs(t, err, &pve)

	require.NoError(t, c.Set("Scale0", ScaleOriginal))
	tr := fluoTrace(t, 1, 2, 3, 4, 5)
	out, err = c.Apply(tr, []string{"Scale0"})
	require.NoError(t, err)
	assert.Same(t, tr, out)
}

// quadratic returns 100 + 0.5*t + 0.01*t^2 sampled at t = 0..n-1
func quadratic(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		ti := float64(i)
		out[i] = 100 + 0.5*ti + 0.01*ti*ti
	}
	return out
}

func TestBlCompPolyValRemovesDrift(t *testing.T) {
	c := testChain(t, "BlComp")
	require.NoError(t, c.Set("BlComp0", BlCompPolyVal))

	target := fluoTrace(t, quadratic(40)...)
	var got []Request
	require.NoError(t, c.SetProvider("BlComp0", func(req Request) (value.Object, error) {
		got = append(got, req)
		return fluoTrace(t, quadratic(40)...), nil
	}))

	first, err := c.Apply(target, []string{"BlComp0"})
	require.NoError(t, err)
	second, err := c.Apply(target, []string{"BlComp0"})
	require.NoError(t, err)
	assert.Equal(t, trValues(t, first), trValues(t, second))

	f := target.LeadingMean(FWindow)
	for i, v := range trValues(t, first) {
		assert.InDelta(t, f, v, 1e-6, "sample %d", i)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "BlComp0", got[0].Stage)
	assert.Equal(t, types.KindFluoFrames, got[0].Kind)
	assert.Equal(t, types.Channel("Ch1"), got[0].Channel)
	assert.Nil(t, got[0].Window)

	s, err := c.Stage("BlComp0")
	require.NoError(t, err)
	baseline, fit := s.(*BlComp).LastFit()
	require.NotNil(t, baseline)
	require.NotNil(t, fit)
	assert.Equal(t, 40, fit.Len())
}

func TestBlCompRescalesToTargetF(t *testing.T) {
	c := testChain(t, "BlComp")
	require.NoError(t, c.Set("BlComp0", BlCompParams{Mode: BlCompPolyVal, Cut: mustWindow(t, 0, 30)}))
	// The baseline has the target's shape at half the amplitude
	half := quadratic(40)
	for i := range half {
		half[i] /= 2
	}
	require.NoError(t, c.SetProvider("BlComp0", func(Request) (value.Object, error) {
		return fluoTrace(t, half...), nil
	}))

	target := fluoTrace(t, quadratic(40)...)
	out, err := c.Apply(target, []string{"BlComp0"})
	require.NoError(t, err)
	f := target.LeadingMean(FWindow)
	for _, v := range trValues(t, out) {
		assert.InDelta(t, f, v, 1e-6)
	}
}

func TestBlCompDisableAndErrors(t *testing.T) {
	c := testChain(t, "BlComp")
	tr := fluoTrace(t, 1, 2, 3, 4, 5)

	out, err := c.Apply(tr, []string{"BlComp0"})
	require.NoError(t, err)
	assert.Same(t, tr, out)

	require.NoError(t, c.Set("BlComp0", "Exponential"))
	var pve *value.ParameterValidationError
	require.ErrorAs(t, c.Set("BlComp0", "Cubic"), &pve)
	require.NoError(t, c.SetProvider("BlComp0", func(Request) (value.Object, error) {
		return stack(t, 2, 2, 2), nil
	}))

	_, err = c.Apply(tr, []string{"BlComp0"})
	var uve *UnsupportedValueError
	require.ErrorAs(t, err, &uve)

	_, err = c.Apply(stack(t, 2, 2, 2), []string{"BlComp0"})
	require.ErrorAs(t, err, &uve)
}

func TestDifImageSubtractsReference(t *testing.T) {
	c := testChain(t, "DifImage")
	f := stack(t, 2, 2, 3)

	ref, err := value.NewImage([]float64{1, 2, 3, 4}, 2, 2, types.Descriptor{Kind: types.KindFluoImage}, 0)
	require.NoError(t, err)
	var got Request
	require.NoError(t, c.SetProvider("DifImage0", func(req Request) (value.Object, error) {
		got = req
		return ref, nil
	}))

	out, err := c.Apply(f, []string{"DifImage0"})
	require.NoError(t, err)
	diff := out.(*value.Frames)
	assert.Equal(t, f.Shape(), diff.Shape())
	assert.Equal(t, f.At(1, 0, 2)-3, diff.At(1, 0, 2))
	assert.Equal(t, f.At(0, 1, 1)-2, diff.At(0, 1, 1))

	require.NotNil(t, got.Window)
	assert.Equal(t, value.WholeAxis(), *got.Window)
	assert.Equal(t, types.KindFluoFrames, got.Kind)

	img := f.MeanImage(types.Descriptor{Kind: types.KindFluoImage})
	out, err = c.Apply(img, []string{"DifImage0"})
	require.NoError(t, err)
	assert.Equal(t, img.At(1, 1)-4, out.(*value.Image).At(1, 1))

	small, err := value.NewImage([]float64{1}, 1, 1, types.Descriptor{}, 0)
	require.NoError(t, err)
	require.NoError(t, c.SetProvider("DifImage0", func(Request) (value.Object, error) { return small, nil }))
	_, err = c.Apply(f, []string{"DifImage0"})
	assert.Error(t, err)
}

func TestDifImageFramesMinusFrames(t *testing.T) {
	c := testChain(t, "DifImage")
	f := stack(t, 2, 2, 3)
	require.NoError(t, c.SetProvider("DifImage0", func(Request) (value.Object, error) { return f, nil }))

	out, err := c.Apply(f, []string{"DifImage0"})
	require.NoError(t, err)
	for _, v := range out.(*value.Frames).Values() {
		assert.Zero(t, v)
	}
}

func TestInvert(t *testing.T) {
	c := testChain(t, "Invert")

	out, err := c.Apply(fluoTrace(t, 1, -2, 3, 0, 5), []string{"Invert0"})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 2, -3, 0, -5}, trValues(t, out), 0)

	out, err = c.Apply(stack(t, 2, 2, 2), []string{"Invert0"})
	require.NoError(t, err)
	assert.Equal(t, -111.0, out.(*value.Frames).At(1, 1, 1))

	_, err = c.Apply(value.NewText("hdr", types.Descriptor{}), []string{"Invert0"})
	var uve *UnsupportedValueError
	require.ErrorAs(t, err, &uve)

	require.Error(t, c.Set("Invert0", 1))
}

func TestTagMakerRelabels(t *testing.T) {
	c := testChain(t, "TagMaker")
	tr := fluoTrace(t, 1, 2, 3, 4, 5)

	out, err := c.Apply(tr, []string{"TagMaker0"})
	require.NoError(t, err)
	assert.Same(t, tr, out)

	require.NoError(t, c.Set("TagMaker0", Tags{"Category": "Baseline", "Cell": "A"}))
	out, err = c.Apply(tr, []string{"TagMaker0"})
	require.NoError(t, err)
	d := out.Descriptor()
	assert.Equal(t, types.CategoryBaseline, d.Category)
	assert.Equal(t, "A", d.Extra["Cell"])
	assert.Equal(t, tr.Values(), trValues(t, out))
	assert.Equal(t, types.CategoryData, tr.Descriptor().Category)
}

func TestFitPoly2Exact(t *testing.T) {
	ts := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	ys := make([]float64, len(ts))
	for i, x := range ts {
		ys[i] = 3 - 2*x + 0.5*x*x
	}
	model, err := fitPoly2(ts, ys)
	require.NoError(t, err)
	for i, x := range ts {
		assert.InDelta(t, ys[i], model(x), 1e-9)
	}
	assert.InDelta(t, 3-2*10+50.0, model(10), 1e-6)

	_, err = fitPoly2([]float64{1, 2}, []float64{1, 2})
	assert.Error(t, err)
	_, err = fitPoly2([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestFitExpDecay(t *testing.T) {
	ts := make([]float64, 60)
	ys := make([]float64, 60)
	for i := range ts {
		ts[i] = float64(i)
		ys[i] = 50*math.Exp(-0.05*ts[i]) + 100
	}
	model, err := fitExp(ts, ys)
	require.NoError(t, err)
	for i, x := range ts {
		assert.InDelta(t, ys[i], model(x), 1.0, "t=%v", x)
	}
}

func mustWindow(t *testing.T, start, width int) value.TimeWindowVal {
	t.Helper()
	w, err := value.NewTimeWindowVal(start, width)
	require.NoError(t, err)
	return w
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Max(m, x)
	}
	return m
}
