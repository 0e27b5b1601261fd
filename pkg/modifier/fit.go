package modifier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// curve is a fitted baseline model
type curve func(t float64) float64

// maxFitEvaluations bounds the nonlinear exponential fit
const maxFitEvaluations = 5000

// fitPoly2 fits y = c0 + c1*u + c2*u^2 by least squares, where u is t
// centred on its mean and scaled by its population standard deviation
func fitPoly2(t, y []float64) (curve, error) {
	if len(t) < 3 {
		return nil, fmt.Errorf("polynomial fit needs at least 3 samples, got %d", len(t))
	}
	mean := stat.Mean(t, nil)
	std := math.Sqrt(stat.PopVariance(t, nil))
	if std == 0 {
		return nil, errors.New("polynomial fit needs distinct sample times")
	}

	a := mat.NewDense(len(t), 3, nil)
	for i, ti := range t {
		u := (ti - mean) / std
		a.Set(i, 0, 1)
		a.Set(i, 1, u)
		a.Set(i, 2, u*u)
	}

	var coef mat.VecDense
	if err := coef.SolveVec(a, mat.NewVecDense(len(y), append([]float64(nil), y...))); err != nil {
		return nil, fmt.Errorf("polynomial fit: %w", err)
	}
	c0, c1, c2 := coef.AtVec(0), coef.AtVec(1), coef.AtVec(2)

	return func(ti float64) float64 {
		u := (ti - mean) / std
		return c0 + c1*u + c2*u*u
	}, nil
}

// fitExp fits y = a*exp(b*t) + c by minimizing the squared residuals,
// starting from (max(y), -0.1, min(y))
func fitExp(t, y []float64) (curve, error) {
	if len(t) < 3 {
		return nil, fmt.Errorf("exponential fit needs at least 3 samples, got %d", len(t))
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			var sse float64
			for i, ti := range t {
				r := p[0]*math.Exp(p[1]*ti) + p[2] - y[i]
				sse += r * r
			}
			if math.IsNaN(sse) || math.IsInf(sse, 0) {
				return math.MaxFloat64
			}
			return sse
		},
	}
	p0 := []float64{floats.Max(y), -0.1, floats.Min(y)}
	settings := &optimize.Settings{FuncEvaluations: maxFitEvaluations}

	res, err := optimize.Minimize(problem, p0, settings, &optimize.NelderMead{})
	if res == nil {
		return nil, fmt.Errorf("exponential fit: %w", err)
	}
	a, b, c := res.X[0], res.X[1], res.X[2]

	return func(ti float64) float64 {
		return a*math.Exp(b*ti) + c
	}, nil
}
