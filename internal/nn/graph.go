// Package nn implements the small reverse-mode autodiff engine behind the
// sentiment model: a tape of backward closures over float32 tensors, the
// layer operations the recurrent classifier composes, and an Adam optimizer.
package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/example/go-sentiment/internal/runtime/tensor"
)

// Node couples a tensor value with its gradient accumulator. Parameter
// nodes alias their Param's gradient so Backward accumulates into it.
type Node struct {
	Value *tensor.Tensor
	grad  []float32
}

// Grad returns the node's gradient slice, aligned with Value.RawData().
func (n *Node) Grad() []float32 {
	return n.grad
}

// Graph records forward operations and replays their backward closures in
// reverse. A graph is single-use: build the forward pass, seed a loss
// gradient, call Backward once.
type Graph struct {
	training bool
	tape     []func()
}

// NewGraph creates a graph. Training mode enables dropout and gradient
// recording; inference graphs skip both.
func NewGraph(training bool) *Graph {
	return &Graph{training: training}
}

// Training reports whether the graph runs in training mode.
func (g *Graph) Training() bool {
	return g.training
}

// Backward replays the recorded tape in reverse order.
func (g *Graph) Backward() {
	for i := len(g.tape) - 1; i >= 0; i-- {
		g.tape[i]()
	}
}

func (g *Graph) record(f func()) {
	if g.training {
		g.tape = append(g.tape, f)
	}
}

func (g *Graph) node(t *tensor.Tensor) *Node {
	return &Node{Value: t, grad: make([]float32, t.ElemCount())}
}

// Input wraps a constant tensor. Gradients flowing into it are discarded.
func (g *Graph) Input(t *tensor.Tensor) *Node {
	return g.node(t)
}

// Use wraps a parameter so Backward accumulates into p.Grad.
func (g *Graph) Use(p *Param) *Node {
	return &Node{Value: p.Value, grad: p.Grad}
}

// Lookup gathers rows of an embedding table: ids index into table rows,
// producing [len(ids), dim]. The backward pass scatter-adds row gradients.
func (g *Graph) Lookup(table *Node, ids []int64) (*Node, error) {
	out, err := table.Value.Gather(ids)
	if err != nil {
		return nil, fmt.Errorf("nn: lookup: %w", err)
	}

	res := g.node(out)

	dim := int(table.Value.Dim(1))
	g.record(func() {
		for i, id := range ids {
			src := res.grad[i*dim : (i+1)*dim]

			dst := table.grad[int(id)*dim : (int(id)+1)*dim]
			for k := range src {
				dst[k] += src[k]
			}
		}
	})

	return res, nil
}

// Linear computes x*W^T + b for weight shape [out, in].
func (g *Graph) Linear(x, w, b *Node) (*Node, error) {
	var bias *tensor.Tensor
	if b != nil {
		bias = b.Value
	}

	out, err := tensor.Linear(x.Value, w.Value, bias)
	if err != nil {
		return nil, fmt.Errorf("nn: linear: %w", err)
	}

	res := g.node(out)

	batch := int(x.Value.Dim(0))
	in := int(x.Value.Dim(1))
	outDim := int(w.Value.Dim(0))
	xData := x.Value.RawData()
	wData := w.Value.RawData()

	g.record(func() {
		for i := range batch {
			xRow := xData[i*in : (i+1)*in]
			dxRow := x.grad[i*in : (i+1)*in]
			dyRow := res.grad[i*outDim : (i+1)*outDim]

			for o, dy := range dyRow {
				if dy == 0 {
					continue
				}

				wRow := wData[o*in : (o+1)*in]
				dwRow := w.grad[o*in : (o+1)*in]

				for k := range in {
					dxRow[k] += dy * wRow[k]
					dwRow[k] += dy * xRow[k]
				}

				if b != nil {
					b.grad[o] += dy
				}
			}
		}
	})

	return res, nil
}

// Add performs element-wise addition of same-shape nodes.
func (g *Graph) Add(a, b *Node) (*Node, error) {
	if a.Value.ElemCount() != b.Value.ElemCount() {
		return nil, fmt.Errorf("nn: add size mismatch: %d vs %d", a.Value.ElemCount(), b.Value.ElemCount())
	}

	out := a.Value.Clone()

	data := out.RawData()
	for i, v := range b.Value.RawData() {
		data[i] += v
	}

	res := g.node(out)

	g.record(func() {
		for i, dv := range res.grad {
			a.grad[i] += dv
			b.grad[i] += dv
		}
	})

	return res, nil
}

// Mul performs element-wise multiplication of same-shape nodes.
func (g *Graph) Mul(a, b *Node) (*Node, error) {
	if a.Value.ElemCount() != b.Value.ElemCount() {
		return nil, fmt.Errorf("nn: mul size mismatch: %d vs %d", a.Value.ElemCount(), b.Value.ElemCount())
	}

	out := a.Value.Clone()

	data := out.RawData()
	bData := b.Value.RawData()
	for i := range data {
		data[i] *= bData[i]
	}

	res := g.node(out)

	aData := a.Value.RawData()
	g.record(func() {
		for i, dv := range res.grad {
			a.grad[i] += bData[i] * dv
			b.grad[i] += aData[i] * dv
		}
	})

	return res, nil
}

// OneMinus computes 1 - x element-wise.
func (g *Graph) OneMinus(x *Node) *Node {
	out := x.Value.Clone()

	data := out.RawData()
	for i := range data {
		data[i] = 1 - data[i]
	}

	res := g.node(out)

	g.record(func() {
		for i, dv := range res.grad {
			x.grad[i] -= dv
		}
	})

	return res
}

// Sigmoid applies the logistic function element-wise.
func (g *Graph) Sigmoid(x *Node) *Node {
	return g.activate(x, sigmoid, func(_, y float32) float32 { return y * (1 - y) })
}

// Tanh applies tanh element-wise.
func (g *Graph) Tanh(x *Node) *Node {
	return g.activate(x, func(v float32) float32 {
		return float32(math.Tanh(float64(v)))
	}, func(_, y float32) float32 { return 1 - y*y })
}

func (g *Graph) activate(x *Node, fn func(float32) float32, deriv func(x, y float32) float32) *Node {
	out := x.Value.Clone()

	data := out.RawData()
	for i := range data {
		data[i] = fn(data[i])
	}

	res := g.node(out)

	xData := x.Value.RawData()
	g.record(func() {
		for i, dv := range res.grad {
			x.grad[i] += deriv(xData[i], data[i]) * dv
		}
	})

	return res
}

// ConcatCols joins two rank-2 nodes side by side along the column axis.
func (g *Graph) ConcatCols(a, b *Node) (*Node, error) {
	out, err := tensor.ConcatCols(a.Value, b.Value)
	if err != nil {
		return nil, fmt.Errorf("nn: concat: %w", err)
	}

	res := g.node(out)

	rows := int(a.Value.Dim(0))
	aCols := int(a.Value.Dim(1))
	bCols := int(b.Value.Dim(1))

	g.record(func() {
		for r := range rows {
			src := res.grad[r*(aCols+bCols):]

			for c := range aCols {
				a.grad[r*aCols+c] += src[c]
			}

			for c := range bCols {
				b.grad[r*bCols+c] += src[aCols+c]
			}
		}
	})

	return res, nil
}

// Dropout zeroes each element with probability rate and scales survivors by
// 1/(1-rate). Outside training mode it is the identity.
func (g *Graph) Dropout(x *Node, rate float64, rng *rand.Rand) (*Node, error) {
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("nn: dropout rate must be in [0, 1), got %g", rate)
	}

	if !g.training || rate == 0 {
		return x, nil
	}

	out := x.Value.Clone()
	data := out.RawData()
	mask := make([]float32, len(data))
	scale := float32(1 / (1 - rate))

	for i := range data {
		if rng.Float64() < rate {
			data[i] = 0
		} else {
			mask[i] = scale
			data[i] *= scale
		}
	}

	res := g.node(out)

	g.record(func() {
		for i, dv := range res.grad {
			x.grad[i] += mask[i] * dv
		}
	})

	return res, nil
}

// SigmoidBCE computes mean binary cross-entropy of sigmoid(logits) against
// targets, returns the probabilities, and seeds the logits gradient with
// (p-y)/n. Call it once per graph, then Backward.
func (g *Graph) SigmoidBCE(logits *Node, targets []float32) (float64, []float32, error) {
	n := logits.Value.ElemCount()
	if n != len(targets) {
		return 0, nil, fmt.Errorf("nn: bce size mismatch: %d logits vs %d targets", n, len(targets))
	}

	if n == 0 {
		return 0, nil, errors.New("nn: bce on empty batch")
	}

	data := logits.Value.RawData()
	probs := make([]float32, n)

	var loss float64

	for i, z := range data {
		y := float64(targets[i])
		zf := float64(z)

		// Stable form of -y*log(p) - (1-y)*log(1-p) at the logit.
		loss += math.Max(zf, 0) - zf*y + math.Log1p(math.Exp(-math.Abs(zf)))

		probs[i] = sigmoid(z)
		logits.grad[i] = (probs[i] - targets[i]) / float32(n)
	}

	return loss / float64(n), probs, nil
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(float64(-x))))
}
