// Package tensor provides the dense, row-major float32 tensors the
// classifier's layers and optimizer operate on.
package tensor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Tensor is a dense, row-major float32 tensor.
type Tensor struct {
	shape []int64
	data  []float32
}

// New creates a tensor from data and shape.
func New(data []float32, shape []int64) (*Tensor, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != total {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, total)
	}

	s := append([]int64(nil), shape...)
	d := append([]float32(nil), data...)

	return &Tensor{shape: s, data: d}, nil
}

// Zeros creates a zero-initialized tensor.
func Zeros(shape []int64) (*Tensor, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	return &Tensor{
		shape: append([]int64(nil), shape...),
		data:  make([]float32, total),
	}, nil
}

// Randn creates a tensor with entries drawn from N(0, std²) using rng.
func Randn(shape []int64, std float64, rng *rand.Rand) (*Tensor, error) {
	t, err := Zeros(shape)
	if err != nil {
		return nil, err
	}

	for i := range t.data {
		t.data[i] = float32(rng.NormFloat64() * std)
	}

	return t, nil
}

func (t *Tensor) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

// Data returns a copy of the underlying tensor data.
func (t *Tensor) Data() []float32 {
	if t == nil {
		return nil
	}

	return append([]float32(nil), t.data...)
}

// RawData returns the underlying data slice. Only the tensor's owner may
// mutate it.
func (t *Tensor) RawData() []float32 {
	if t == nil {
		return nil
	}

	return t.data
}

func (t *Tensor) ElemCount() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

func (t *Tensor) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int64 {
	if t == nil || i < 0 || i >= len(t.shape) {
		return 0
	}

	return t.shape[i]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}

	dup, _ := New(t.data, t.shape)

	return dup
}

// Zero clears every element in place.
func (t *Tensor) Zero() {
	if t == nil {
		return
	}

	for i := range t.data {
		t.data[i] = 0
	}
}

// Gather selects rows of a rank-2 tensor, producing [len(indices), cols].
func (t *Tensor) Gather(indices []int64) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: gather on nil tensor")
	}

	if t.Rank() != 2 {
		return nil, fmt.Errorf("tensor: gather requires rank 2, got %d", t.Rank())
	}

	rows := t.shape[0]
	cols := int(t.shape[1])

	out, err := Zeros([]int64{int64(len(indices)), int64(cols)})
	if err != nil {
		return nil, err
	}

	for i, idx := range indices {
		if idx < 0 || idx >= rows {
			return nil, fmt.Errorf("tensor: gather index %d (%d) out of range for %d rows", i, idx, rows)
		}

		copy(out.data[i*cols:(i+1)*cols], t.data[int(idx)*cols:(int(idx)+1)*cols])
	}

	return out, nil
}

// ConcatCols joins two rank-2 tensors with equal row counts side by side.
func ConcatCols(a, b *Tensor) (*Tensor, error) {
	if a == nil || b == nil {
		return nil, errors.New("tensor: concat requires non-nil inputs")
	}

	if a.Rank() != 2 || b.Rank() != 2 {
		return nil, fmt.Errorf("tensor: concat requires rank 2, got %d and %d", a.Rank(), b.Rank())
	}

	if a.shape[0] != b.shape[0] {
		return nil, fmt.Errorf("tensor: concat row mismatch: %d vs %d", a.shape[0], b.shape[0])
	}

	rows := int(a.shape[0])
	aCols := int(a.shape[1])
	bCols := int(b.shape[1])

	out, err := Zeros([]int64{int64(rows), int64(aCols + bCols)})
	if err != nil {
		return nil, err
	}

	for r := range rows {
		dst := out.data[r*(aCols+bCols):]
		copy(dst[:aCols], a.data[r*aCols:(r+1)*aCols])
		copy(dst[aCols:aCols+bCols], b.data[r*bCols:(r+1)*bCols])
	}

	return out, nil
}

// Transpose swaps the two dimensions of a rank-2 tensor.
func (t *Tensor) Transpose() (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: transpose on nil tensor")
	}

	if t.Rank() != 2 {
		return nil, fmt.Errorf("tensor: transpose requires rank 2, got %d", t.Rank())
	}

	rows := int(t.shape[0])
	cols := int(t.shape[1])

	out, err := Zeros([]int64{int64(cols), int64(rows)})
	if err != nil {
		return nil, err
	}

	for r := range rows {
		for c := range cols {
			out.data[c*rows+r] = t.data[r*cols+c]
		}
	}

	return out, nil
}

// MatMul multiplies two rank-2 tensors: [m, k] x [k, n] -> [m, n].
func MatMul(a, b *Tensor) (*Tensor, error) {
	if a == nil || b == nil {
		return nil, errors.New("tensor: matmul requires non-nil inputs")
	}

	if a.Rank() != 2 || b.Rank() != 2 {
		return nil, fmt.Errorf("tensor: matmul requires rank 2, got %d and %d", a.Rank(), b.Rank())
	}

	m := int(a.shape[0])
	k := int(a.shape[1])
	n := int(b.shape[1])

	if b.shape[0] != a.shape[1] {
		return nil, fmt.Errorf("tensor: matmul mismatch: A %v, B %v", a.shape, b.shape)
	}

	out, err := Zeros([]int64{int64(m), int64(n)})
	if err != nil {
		return nil, err
	}

	for i := range m {
		aRow := a.data[i*k : (i+1)*k]
		outRow := out.data[i*n : (i+1)*n]

		for l, av := range aRow {
			if av == 0 {
				continue
			}

			bRow := b.data[l*n : (l+1)*n]
			for j := range outRow {
				outRow[j] += av * bRow[j]
			}
		}
	}

	return out, nil
}

// Linear applies y = x * W^T + b where weight shape is [out, in].
func Linear(x, weight, bias *Tensor) (*Tensor, error) {
	if x == nil || weight == nil {
		return nil, errors.New("tensor: linear requires non-nil x and weight")
	}

	if x.Rank() != 2 || weight.Rank() != 2 {
		return nil, fmt.Errorf("tensor: linear requires rank 2, got %d and %d", x.Rank(), weight.Rank())
	}

	in := int(x.shape[1])

	out := int(weight.shape[0])
	if int(weight.shape[1]) != in {
		return nil, fmt.Errorf("tensor: linear mismatch: x last dim %d, weight in dim %d", in, weight.shape[1])
	}

	if bias != nil {
		if bias.Rank() != 1 || int(bias.shape[0]) != out {
			return nil, fmt.Errorf("tensor: linear bias shape %v does not match out dim %d", bias.shape, out)
		}
	}

	batch := int(x.shape[0])
	outData := make([]float32, batch*out)

	for bIdx := range batch {
		xRow := x.data[bIdx*in : (bIdx+1)*in]

		yBase := bIdx * out
		for o := range out {
			sum := dotF32(xRow, weight.data[o*in:(o+1)*in])
			if bias != nil {
				sum += bias.data[o]
			}

			outData[yBase+o] = sum
		}
	}

	return &Tensor{shape: []int64{int64(batch), int64(out)}, data: outData}, nil
}

func dotF32(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}

	return sum
}

func shapeElemCount(shape []int64) (int, error) {
	total := int64(1)

	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor: shape %v has negative dimension at %d", shape, i)
		}

		total *= d
		if total > math.MaxInt32 {
			return 0, fmt.Errorf("tensor: shape %v too large", shape)
		}
	}

	return int(total), nil
}
