package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func equalF32(a, b []float32, tol float32) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if float32(math.Abs(float64(a[i]-b[i]))) > tol {
			return false
		}
	}

	return true
}

func equalI64(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func TestNewValidatesShape(t *testing.T) {
	if _, err := New([]float32{1, 2, 3}, []int64{2, 2}); err == nil {
		t.Fatal("expected shape mismatch error")
	}

	if _, err := New(nil, []int64{-1}); err == nil {
		t.Fatal("expected negative dimension error")
	}
}

func TestGatherRows(t *testing.T) {
	x, _ := New([]float32{10, 11, 20, 21, 30, 31}, []int64{3, 2})

	out, err := x.Gather([]int64{2, 0, 2})
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	if got := out.Shape(); !equalI64(got, []int64{3, 2}) {
		t.Fatalf("shape = %v, want [3 2]", got)
	}

	want := []float32{30, 31, 10, 11, 30, 31}
	if got := out.Data(); !equalF32(got, want, 0) {
		t.Fatalf("data = %v, want %v", got, want)
	}
}

func TestGatherOutOfRange(t *testing.T) {
	x, _ := New([]float32{1, 2}, []int64{1, 2})

	if _, err := x.Gather([]int64{1}); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestConcatCols(t *testing.T) {
	a, _ := New([]float32{1, 2, 3, 4}, []int64{2, 2})
	b, _ := New([]float32{5, 6}, []int64{2, 1})

	out, err := ConcatCols(a, b)
	if err != nil {
		t.Fatalf("concat: %v", err)
	}

	if got := out.Shape(); !equalI64(got, []int64{2, 3}) {
		t.Fatalf("shape = %v, want [2 3]", got)
	}

	want := []float32{1, 2, 5, 3, 4, 6}
	if got := out.Data(); !equalF32(got, want, 0) {
		t.Fatalf("data = %v, want %v", got, want)
	}
}

func TestTranspose(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 4, 5, 6}, []int64{2, 3})

	y, err := x.Transpose()
	if err != nil {
		t.Fatalf("transpose: %v", err)
	}

	want := []float32{1, 4, 2, 5, 3, 6}
	if got := y.Data(); !equalF32(got, want, 0) {
		t.Fatalf("data = %v, want %v", got, want)
	}
}

func TestMatMul(t *testing.T) {
	a, _ := New([]float32{1, 2, 3, 4}, []int64{2, 2})
	b, _ := New([]float32{5, 6, 7, 8}, []int64{2, 2})

	out, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("matmul: %v", err)
	}

	want := []float32{19, 22, 43, 50}
	if got := out.Data(); !equalF32(got, want, 1e-6) {
		t.Fatalf("data = %v, want %v", got, want)
	}
}

func TestMatMulMismatch(t *testing.T) {
	a, _ := Zeros([]int64{2, 3})
	b, _ := Zeros([]int64{2, 2})

	if _, err := MatMul(a, b); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestLinear(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 4}, []int64{2, 2})
	w, _ := New([]float32{1, 0, 0, 1, 1, 1}, []int64{3, 2})
	b, _ := New([]float32{10, 20, 30}, []int64{3})

	out, err := Linear(x, w, b)
	if err != nil {
		t.Fatalf("linear: %v", err)
	}

	if got := out.Shape(); !equalI64(got, []int64{2, 3}) {
		t.Fatalf("shape = %v, want [2 3]", got)
	}

	want := []float32{11, 22, 33, 13, 24, 37}
	if got := out.Data(); !equalF32(got, want, 1e-6) {
		t.Fatalf("data = %v, want %v", got, want)
	}
}

func TestRandnDeterministicPerSeed(t *testing.T) {
	a, err := Randn([]int64{4, 4}, 0.1, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("randn: %v", err)
	}

	b, _ := Randn([]int64{4, 4}, 0.1, rand.New(rand.NewSource(9)))

	if !equalF32(a.Data(), b.Data(), 0) {
		t.Fatal("same seed produced different tensors")
	}
}

func TestCloneIsDeep(t *testing.T) {
	x, _ := New([]float32{1, 2}, []int64{2})

	y := x.Clone()
	y.RawData()[0] = 99

	if x.RawData()[0] != 1 {
		t.Fatal("clone aliases source data")
	}
}

func TestZero(t *testing.T) {
	x, _ := New([]float32{1, 2, 3}, []int64{3})
	x.Zero()

	if !equalF32(x.Data(), []float32{0, 0, 0}, 0) {
		t.Fatalf("data = %v, want zeros", x.Data())
	}
}
