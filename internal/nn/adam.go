package nn

import (
	"fmt"
	"math"
)

// Adam is the adaptive-moment optimizer with bias correction. Moment state
// is keyed by parameter name and grows lazily on first sight.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	step int
	m    map[string][]float32
	v    map[string][]float32
}

// NewAdam returns an optimizer with the conventional defaults
// (lr 1e-3, betas 0.9/0.999, eps 1e-8).
func NewAdam() *Adam {
	return &Adam{
		LR:    1e-3,
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		m:     make(map[string][]float32),
		v:     make(map[string][]float32),
	}
}

// Step applies one bias-corrected Adam update to every parameter and zeroes
// the gradients it consumed. Non-finite gradient entries are treated as 0.
func (a *Adam) Step(params []*Param) error {
	a.step++
	t := float64(a.step)
	lrT := a.LR * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for _, p := range params {
		m, ok := a.m[p.Name]
		if !ok {
			m = make([]float32, len(p.Grad))
			a.m[p.Name] = m
			a.v[p.Name] = make([]float32, len(p.Grad))
		}

		v := a.v[p.Name]
		if len(m) != len(p.Grad) || len(v) != len(p.Grad) {
			return fmt.Errorf("nn: adam state for %q has %d entries, param has %d", p.Name, len(m), len(p.Grad))
		}

		w := p.Value.RawData()

		for i, g := range p.Grad {
			grad := float64(g)
			if math.IsNaN(grad) || math.IsInf(grad, 0) {
				grad = 0
			}

			mi := a.Beta1*float64(m[i]) + (1-a.Beta1)*grad
			vi := a.Beta2*float64(v[i]) + (1-a.Beta2)*grad*grad
			m[i] = float32(mi)
			v[i] = float32(vi)

			w[i] -= float32(lrT * mi / (math.Sqrt(vi) + a.Eps))
		}

		p.ZeroGrad()
	}

	return nil
}
