package nn

import (
	"errors"

	"github.com/example/go-sentiment/internal/runtime/tensor"
)

// Param is a named trainable tensor with a persistent gradient accumulator.
type Param struct {
	Name  string
	Value *tensor.Tensor
	Grad  []float32
}

// NewParam wraps a tensor as a trainable parameter.
func NewParam(name string, t *tensor.Tensor) (*Param, error) {
	if name == "" {
		return nil, errors.New("nn: param name must not be empty")
	}

	if t == nil {
		return nil, errors.New("nn: param tensor must not be nil")
	}

	return &Param{
		Name:  name,
		Value: t,
		Grad:  make([]float32, t.ElemCount()),
	}, nil
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}
