package value

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/vjranagit/scandata/pkg/types"
)

// MinTraceLen is the shortest trace the scale transforms handle well; they
// sample a fixed leading window.
const MinTraceLen = 5

// Trace is a 1-D signal sampled every interval ms
type Trace struct {
	desc     types.Descriptor
	data     []float64
	interval float64
}

// NewTrace wraps data. Traces shorter than MinTraceLen are accepted; see Short.
func NewTrace(data []float64, d types.Descriptor, interval float64) (*Trace, error) {
	if len(data) == 0 {
		return nil, errors.New("trace: empty payload")
	}
	return newTrace(data, d, interval), nil
}

func newTrace(data []float64, d types.Descriptor, interval float64) *Trace {
	return &Trace{desc: d.Clone(), data: data, interval: interval}
}

func (tr *Trace) Descriptor() types.Descriptor { return tr.desc.Clone() }

func (tr *Trace) Shape() []int { return []int{len(tr.data)} }

func (tr *Trace) Len() int { return len(tr.data) }

func (tr *Trace) Interval() float64 { return tr.interval }

// Short reports a trace below MinTraceLen, where leading-window scaling is unreliable
func (tr *Trace) Short() bool { return len(tr.data) < MinTraceLen }

func (tr *Trace) At(i int) float64 { return tr.data[i] }

func (tr *Trace) Values() []float64 { return copyOf(tr.data) }

// Time returns the time axis; the first sample is at 0
func (tr *Trace) Time() []float64 {
	out := make([]float64, len(tr.data))
	for i := range out {
		out[i] = float64(i) * tr.interval
	}
	return out
}

func (tr *Trace) WithDescriptor(d types.Descriptor) Object {
	out := *tr
	out.desc = d.Clone()
	return &out
}

func (tr *Trace) Neg() Numeric {
	return tr.derive(negate(tr.data))
}

// Window returns samples [start, start+width)
func (tr *Trace) Window(w TimeWindowVal, d types.Descriptor) (*Trace, error) {
	start, end, err := w.Bounds(len(tr.data))
	if err != nil {
		return nil, err
	}
	return newTrace(copyOf(tr.data[start:end]), d, tr.interval), nil
}

func (tr *Trace) derive(data []float64) *Trace {
	return &Trace{desc: tr.desc, data: data, interval: tr.interval}
}

func (tr *Trace) mapScalar(fn func(float64) float64) *Trace {
	out := make([]float64, len(tr.data))
	for i, v := range tr.data {
		out[i] = fn(v)
	}
	return tr.derive(out)
}

func (tr *Trace) AddScalar(v float64) *Trace {
	return tr.mapScalar(func(x float64) float64 { return x + v })
}

func (tr *Trace) SubScalar(v float64) *Trace {
	return tr.mapScalar(func(x float64) float64 { return x - v })
}

func (tr *Trace) MulScalar(v float64) *Trace {
	return tr.mapScalar(func(x float64) float64 { return x * v })
}

func (tr *Trace) DivScalar(v float64) (*Trace, error) {
	if v == 0 {
		return nil, &ParameterValidationError{Param: "divisor", Value: "0", Reason: "division by zero"}
	}
	return tr.mapScalar(func(x float64) float64 { return x / v }), nil
}

// Add sums two traces of the same kind sample by sample. A length mismatch
// is logged to logger (zap.L() when nil).
func (tr *Trace) Add(o *Trace, logger *zap.Logger) (*Trace, error) {
	return tr.combine(o, "+", logger, func(a, b float64) float64 { return a + b })
}

// Sub subtracts o from tr sample by sample
func (tr *Trace) Sub(o *Trace, logger *zap.Logger) (*Trace, error) {
	return tr.combine(o, "-", logger, func(a, b float64) float64 { return a - b })
}

// combine tolerates length mismatches by truncating to the shorter trace
func (tr *Trace) combine(o *Trace, op string, logger *zap.Logger, fn func(a, b float64) float64) (*Trace, error) {
	if tr.desc.Kind != o.desc.Kind {
		return nil, fmt.Errorf("trace: cannot apply %s to %s and %s", op, tr.desc.Kind, o.desc.Kind)
	}
	n := len(tr.data)
	if len(o.data) != n {
		if logger == nil {
			logger = zap.L()
		}
		logger.Warn("trace lengths differ, truncating to the shorter",
			zap.String("op", op), zap.Stringer("descriptor", tr.desc), zap.Int("left", n), zap.Int("right", len(o.data)))
		if len(o.data) < n {
			n = len(o.data)
		}
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = fn(tr.data[i], o.data[i])
	}
	return tr.derive(out), nil
}

// LeadingMean is the mean of the first width samples (fewer if the trace is short).
// dF/F and baseline compensation use it as F.
func (tr *Trace) LeadingMean(width int) float64 {
	n := width
	if n > len(tr.data) {
		n = len(tr.data)
	}
	return stat.Mean(tr.data[:n], nil)
}
