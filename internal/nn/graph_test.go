package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/example/go-sentiment/internal/runtime/tensor"
)

func mustParam(t *testing.T, name string, data []float32, shape []int64) *Param {
	t.Helper()

	ten, err := tensor.New(data, shape)
	if err != nil {
		t.Fatalf("tensor: %v", err)
	}

	p, err := NewParam(name, ten)
	if err != nil {
		t.Fatalf("param: %v", err)
	}

	return p
}

func TestSigmoidForwardAndBackward(t *testing.T) {
	p := mustParam(t, "x", []float32{0, 2, -2}, []int64{1, 3})

	g := NewGraph(true)
	out := g.Sigmoid(g.Use(p))

	data := out.Value.Data()
	if math.Abs(float64(data[0])-0.5) > 1e-6 {
		t.Fatalf("sigmoid(0) = %v, want 0.5", data[0])
	}

	for i := range out.Grad() {
		out.Grad()[i] = 1
	}

	g.Backward()

	// d/dx sigmoid = s(1-s); at 0 that is 0.25.
	if math.Abs(float64(p.Grad[0])-0.25) > 1e-6 {
		t.Fatalf("grad = %v, want 0.25", p.Grad[0])
	}
}

func TestLookupScatterAddsGradients(t *testing.T) {
	table := mustParam(t, "emb", []float32{1, 1, 2, 2, 3, 3}, []int64{3, 2})

	g := NewGraph(true)

	out, err := g.Lookup(g.Use(table), []int64{2, 0, 2})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	want := []float32{3, 3, 1, 1, 3, 3}
	for i, v := range out.Value.Data() {
		if v != want[i] {
			t.Fatalf("lookup data = %v, want %v", out.Value.Data(), want)
		}
	}

	for i := range out.Grad() {
		out.Grad()[i] = 1
	}

	g.Backward()

	// Row 2 was gathered twice, row 0 once, row 1 never.
	wantGrad := []float32{1, 1, 0, 0, 2, 2}
	for i, v := range table.Grad {
		if v != wantGrad[i] {
			t.Fatalf("table grad = %v, want %v", table.Grad, wantGrad)
		}
	}
}

func TestSigmoidBCEGradientNumerically(t *testing.T) {
	// loss(w) via a one-layer network; compare analytic dW against central
	// differences. float32 arithmetic keeps this around 1e-2 accuracy.
	xData := []float32{0.5, -1.2, 0.3, 0.8, 0.1, -0.4}
	wData := []float32{0.2, -0.3, 0.15}
	bData := []float32{0.05}
	targets := []float32{1, 0}

	lossAt := func(w []float32) float64 {
		x, _ := tensor.New(xData, []int64{2, 3})
		wT, _ := tensor.New(w, []int64{1, 3})
		bT, _ := tensor.New(bData, []int64{1})

		g := NewGraph(true)
		wp, _ := NewParam("w", wT)
		bp, _ := NewParam("b", bT)

		h, err := g.Linear(g.Input(x), g.Use(wp), g.Use(bp))
		if err != nil {
			t.Fatalf("linear: %v", err)
		}

		loss, _, err := g.SigmoidBCE(h, targets)
		if err != nil {
			t.Fatalf("bce: %v", err)
		}

		return loss
	}

	// Analytic gradient.
	x, _ := tensor.New(xData, []int64{2, 3})
	wT, _ := tensor.New(wData, []int64{1, 3})
	bT, _ := tensor.New(bData, []int64{1})
	wp, _ := NewParam("w", wT)
	bp, _ := NewParam("b", bT)

	g := NewGraph(true)

	h, err := g.Linear(g.Input(x), g.Use(wp), g.Use(bp))
	if err != nil {
		t.Fatalf("linear: %v", err)
	}

	if _, _, err := g.SigmoidBCE(h, targets); err != nil {
		t.Fatalf("bce: %v", err)
	}

	g.Backward()

	const eps = 1e-2

	for i := range 3 {
		plus := append([]float32(nil), wData...)
		plus[i] += eps

		minus := append([]float32(nil), wData...)
		minus[i] -= eps

		numeric := (lossAt(plus) - lossAt(minus)) / (2 * eps)
		analytic := float64(wp.Grad[i])

		if math.Abs(numeric-analytic) > 1e-2 {
			t.Fatalf("dW[%d]: numeric %g vs analytic %g", i, numeric, analytic)
		}
	}
}

func TestMulAndOneMinusBackward(t *testing.T) {
	a := mustParam(t, "a", []float32{2, 3}, []int64{1, 2})
	b := mustParam(t, "b", []float32{4, 5}, []int64{1, 2})

	g := NewGraph(true)

	prod, err := g.Mul(g.Use(a), g.Use(b))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}

	out := g.OneMinus(prod)

	wantVals := []float32{-7, -14}
	for i, v := range out.Value.Data() {
		if v != wantVals[i] {
			t.Fatalf("value = %v, want %v", out.Value.Data(), wantVals)
		}
	}

	for i := range out.Grad() {
		out.Grad()[i] = 1
	}

	g.Backward()

	// d(1-ab)/da = -b, d(1-ab)/db = -a.
	if a.Grad[0] != -4 || a.Grad[1] != -5 {
		t.Fatalf("a grad = %v, want [-4 -5]", a.Grad)
	}

	if b.Grad[0] != -2 || b.Grad[1] != -3 {
		t.Fatalf("b grad = %v, want [-2 -3]", b.Grad)
	}
}

func TestConcatColsBackwardSplitsGradient(t *testing.T) {
	a := mustParam(t, "a", []float32{1, 2}, []int64{2, 1})
	b := mustParam(t, "b", []float32{3, 4}, []int64{2, 1})

	g := NewGraph(true)

	out, err := g.ConcatCols(g.Use(a), g.Use(b))
	if err != nil {
		t.Fatalf("concat: %v", err)
	}

	copy(out.Grad(), []float32{10, 20, 30, 40})
	g.Backward()

	if a.Grad[0] != 10 || a.Grad[1] != 30 {
		t.Fatalf("a grad = %v, want [10 30]", a.Grad)
	}

	if b.Grad[0] != 20 || b.Grad[1] != 40 {
		t.Fatalf("b grad = %v, want [20 40]", b.Grad)
	}
}

func TestDropoutIdentityOutsideTraining(t *testing.T) {
	p := mustParam(t, "x", []float32{1, 2, 3}, []int64{1, 3})

	g := NewGraph(false)

	out, err := g.Dropout(g.Use(p), 0.5, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("dropout: %v", err)
	}

	for i, v := range out.Value.Data() {
		if v != p.Value.Data()[i] {
			t.Fatal("dropout modified values outside training")
		}
	}
}

func TestDropoutScalesSurvivors(t *testing.T) {
	p := mustParam(t, "x", []float32{1, 1, 1, 1, 1, 1, 1, 1}, []int64{1, 8})

	g := NewGraph(true)

	out, err := g.Dropout(g.Use(p), 0.5, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("dropout: %v", err)
	}

	for _, v := range out.Value.Data() {
		if v != 0 && math.Abs(float64(v)-2) > 1e-6 {
			t.Fatalf("survivor = %v, want 0 or 2", v)
		}
	}
}

func TestAdamReducesSimpleLoss(t *testing.T) {
	// Minimize (w-3)^2 by feeding the gradient 2(w-3) directly.
	w, _ := tensor.New([]float32{0}, []int64{1})
	p, _ := NewParam("w", w)
	opt := NewAdam()

	for range 2000 {
		p.Grad[0] = 2 * (p.Value.RawData()[0] - 3)
		if err := opt.Step([]*Param{p}); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	if got := p.Value.RawData()[0]; math.Abs(float64(got)-3) > 0.05 {
		t.Fatalf("w = %v, want ~3", got)
	}
}

func TestAdamZeroesGrads(t *testing.T) {
	w, _ := tensor.New([]float32{1}, []int64{1})
	p, _ := NewParam("w", w)
	p.Grad[0] = 5

	if err := NewAdam().Step([]*Param{p}); err != nil {
		t.Fatalf("step: %v", err)
	}

	if p.Grad[0] != 0 {
		t.Fatalf("grad = %v, want 0 after step", p.Grad[0])
	}
}
