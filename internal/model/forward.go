package model

import (
	"fmt"

	"github.com/example/go-sentiment/internal/nn"
	"github.com/example/go-sentiment/internal/runtime/tensor"
)

// inferBatchSize bounds the working set of a single inference graph.
const inferBatchSize = 256

// Forward runs the classifier over a batch of padded id sequences and
// returns the raw logits, one per row. Every row must be exactly SeqLen
// ids long. The graph decides training behavior (dropout, tape).
func (m *Model) Forward(g *nn.Graph, batch [][]int64) (*nn.Node, error) {
	if m == nil || m.released {
		return nil, ErrNotReady
	}

	n := len(batch)
	if n == 0 {
		return nil, fmt.Errorf("model: forward on empty batch")
	}

	for i, row := range batch {
		if len(row) != m.cfg.SeqLen {
			return nil, fmt.Errorf("model: row %d has %d ids, want %d", i, len(row), m.cfg.SeqLen)
		}

		for _, id := range row {
			if id < 0 || id >= int64(m.cfg.VocabSize) {
				return nil, fmt.Errorf("model: row %d contains id %d outside vocab of %d", i, id, m.cfg.VocabSize)
			}
		}
	}

	emb := g.Use(m.byName["embedding.weight"])

	// One embedded tensor per timestep, each [n, embedDim], so the
	// recurrence walks timesteps instead of rows.
	steps := make([]*nn.Node, m.cfg.SeqLen)
	ids := make([]int64, n)

	for t := range m.cfg.SeqLen {
		for i := range batch {
			ids[i] = batch[i][t]
		}

		x, err := g.Lookup(emb, ids)
		if err != nil {
			return nil, err
		}

		steps[t] = x
	}

	final, err := m.runDirection(g, "fwd", steps, false)
	if err != nil {
		return nil, err
	}

	if m.cfg.Bidirectional {
		back, err := m.runDirection(g, "bwd", steps, true)
		if err != nil {
			return nil, err
		}

		final, err = g.ConcatCols(final, back)
		if err != nil {
			return nil, err
		}
	}

	final, err = g.Dropout(final, m.cfg.Dropout, m.rng)
	if err != nil {
		return nil, err
	}

	return g.Linear(final, g.Use(m.byName["dense.weight"]), g.Use(m.byName["dense.bias"]))
}

// runDirection unrolls one recurrent direction over the embedded timesteps
// and returns the final hidden state [n, hiddenUnits].
func (m *Model) runDirection(g *nn.Graph, dir string, steps []*nn.Node, reversed bool) (*nn.Node, error) {
	n := int(steps[0].Value.Dim(0))

	h0, err := tensor.Zeros([]int64{int64(n), int64(m.cfg.HiddenUnits)})
	if err != nil {
		return nil, err
	}

	h := g.Input(h0)

	use := func(kind, gate string) *nn.Node {
		return g.Use(m.byName[fmt.Sprintf("gru.%s.%s%s", dir, kind, gate)])
	}

	for i := range steps {
		t := i
		if reversed {
			t = len(steps) - 1 - i
		}

		x := steps[t]

		h, err = m.gruCell(g, x, h, use)
		if err != nil {
			return nil, err
		}
	}

	return h, nil
}

// gruCell advances one gated-recurrent step: update and reset gates from the
// input and prior state, a candidate state through tanh, then interpolation.
func (m *Model) gruCell(g *nn.Graph, x, h *nn.Node, use func(kind, gate string) *nn.Node) (*nn.Node, error) {
	gatePre := func(gate string) (*nn.Node, error) {
		xw, err := g.Linear(x, use("w", gate), use("b", gate))
		if err != nil {
			return nil, err
		}

		hu, err := g.Linear(h, use("u", gate), nil)
		if err != nil {
			return nil, err
		}

		return g.Add(xw, hu)
	}

	zPre, err := gatePre("z")
	if err != nil {
		return nil, err
	}

	z := g.Sigmoid(zPre)

	rPre, err := gatePre("r")
	if err != nil {
		return nil, err
	}

	r := g.Sigmoid(rPre)

	xw, err := g.Linear(x, use("w", "h"), use("b", "h"))
	if err != nil {
		return nil, err
	}

	rh, err := g.Mul(r, h)
	if err != nil {
		return nil, err
	}

	hu, err := g.Linear(rh, use("u", "h"), nil)
	if err != nil {
		return nil, err
	}

	cPre, err := g.Add(xw, hu)
	if err != nil {
		return nil, err
	}

	c := g.Tanh(cPre)

	keep, err := g.Mul(g.OneMinus(z), h)
	if err != nil {
		return nil, err
	}

	take, err := g.Mul(z, c)
	if err != nil {
		return nil, err
	}

	return g.Add(keep, take)
}

// Infer returns sigmoid probabilities for a batch of padded sequences,
// running on inference graphs in fixed-size chunks.
func (m *Model) Infer(batch [][]int64) ([]float32, error) {
	if m == nil || m.released {
		return nil, ErrNotReady
	}

	probs := make([]float32, 0, len(batch))

	for start := 0; start < len(batch); start += inferBatchSize {
		end := min(start+inferBatchSize, len(batch))

		g := nn.NewGraph(false)

		logits, err := m.Forward(g, batch[start:end])
		if err != nil {
			return nil, err
		}

		out := g.Sigmoid(logits)
		probs = append(probs, out.Value.Data()...)
	}

	return probs, nil
}
