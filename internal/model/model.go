// Package model defines the recurrent sentiment classifier: an embedding
// table feeding a gated-recurrent encoder (optionally bidirectional) whose
// final hidden state passes through dropout into a single-logit dense head.
package model

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/example/go-sentiment/internal/nn"
	"github.com/example/go-sentiment/internal/runtime/tensor"
)

var (
	// ErrConfig is returned for invalid architecture hyperparameters.
	ErrConfig = errors.New("model: invalid config")
	// ErrNotReady is returned when an operation needs a live model and
	// none exists (never constructed, or already released).
	ErrNotReady = errors.New("model: no live model")
)

// Config is the immutable architecture descriptor. It is persisted verbatim
// in the artifact manifest.
type Config struct {
	VocabSize     int     `json:"vocab_size"`
	SeqLen        int     `json:"seq_len"`
	EmbedDim      int     `json:"embed_dim"`
	HiddenUnits   int     `json:"hidden_units"`
	Dropout       float64 `json:"dropout"`
	Bidirectional bool    `json:"bidirectional"`
}

// DefaultConfig returns the architecture defaults. VocabSize and SeqLen
// have no defaults; they come from the fitted tokenizer and the caller.
func DefaultConfig() Config {
	return Config{
		EmbedDim:      64,
		HiddenUnits:   128,
		Dropout:       0.2,
		Bidirectional: true,
	}
}

func (c *Config) validate() error {
	if c.VocabSize <= 0 {
		return fmt.Errorf("%w: vocabSize must be > 0, got %d", ErrConfig, c.VocabSize)
	}

	if c.SeqLen <= 0 {
		return fmt.Errorf("%w: seqLen must be > 0, got %d", ErrConfig, c.SeqLen)
	}

	if c.EmbedDim <= 0 || c.HiddenUnits <= 0 {
		return fmt.Errorf("%w: embedDim %d and hiddenUnits %d must be > 0", ErrConfig, c.EmbedDim, c.HiddenUnits)
	}

	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("%w: dropout must be in [0, 1), got %g", ErrConfig, c.Dropout)
	}

	return nil
}

// Width is the dense head's input width: the recurrent width, doubled when
// both directions are concatenated.
func (c Config) Width() int {
	if c.Bidirectional {
		return 2 * c.HiddenUnits
	}

	return c.HiddenUnits
}

// Model owns its parameters. Exactly one training or inference call may run
// against a model at a time; callers serialize access.
type Model struct {
	cfg      Config
	params   []*nn.Param
	byName   map[string]*nn.Param
	rng      *rand.Rand
	released bool
}

// New constructs a model with randomly initialized parameters. Zero-valued
// EmbedDim/HiddenUnits fall back to DefaultConfig values; VocabSize and
// SeqLen are required.
func New(cfg Config, seed int64) (*Model, error) {
	def := DefaultConfig()
	if cfg.EmbedDim == 0 {
		cfg.EmbedDim = def.EmbedDim
	}

	if cfg.HiddenUnits == 0 {
		cfg.HiddenUnits = def.HiddenUnits
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Model{
		cfg:    cfg,
		byName: make(map[string]*nn.Param),
		rng:    rand.New(rand.NewSource(seed)),
	}

	// Embeddings start small; gate weights use the wider init the
	// recurrent cell tolerates.
	const (
		embedStd = 0.02
		gateStd  = 0.08
	)

	add := func(name string, shape []int64, std float64) error {
		var (
			t   *tensor.Tensor
			err error
		)

		if std > 0 {
			t, err = tensor.Randn(shape, std, m.rng)
		} else {
			t, err = tensor.Zeros(shape)
		}

		if err != nil {
			return err
		}

		p, err := nn.NewParam(name, t)
		if err != nil {
			return err
		}

		m.params = append(m.params, p)
		m.byName[name] = p

		return nil
	}

	e := int64(cfg.EmbedDim)
	h := int64(cfg.HiddenUnits)

	if err := add("embedding.weight", []int64{int64(cfg.VocabSize), e}, embedStd); err != nil {
		return nil, err
	}

	for _, dir := range cfg.directions() {
		for _, gate := range []string{"z", "r", "h"} {
			if err := add(fmt.Sprintf("gru.%s.w%s", dir, gate), []int64{h, e}, gateStd); err != nil {
				return nil, err
			}

			if err := add(fmt.Sprintf("gru.%s.u%s", dir, gate), []int64{h, h}, gateStd); err != nil {
				return nil, err
			}

			if err := add(fmt.Sprintf("gru.%s.b%s", dir, gate), []int64{h}, 0); err != nil {
				return nil, err
			}
		}
	}

	if err := add("dense.weight", []int64{1, int64(cfg.Width())}, gateStd); err != nil {
		return nil, err
	}

	if err := add("dense.bias", []int64{1}, 0); err != nil {
		return nil, err
	}

	return m, nil
}

// NewFromWeights reconstructs a model from persisted tensors. Every expected
// parameter must be present with the exact shape the config implies.
func NewFromWeights(cfg Config, weights map[string]*tensor.Tensor) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Model{
		cfg:    cfg,
		byName: make(map[string]*nn.Param),
		rng:    rand.New(rand.NewSource(0)),
	}

	for _, spec := range cfg.paramShapes() {
		t, ok := weights[spec.name]
		if !ok {
			return nil, fmt.Errorf("model: missing weight %q", spec.name)
		}

		if !shapeEqual(t.Shape(), spec.shape) {
			return nil, fmt.Errorf("model: weight %q has shape %v, want %v", spec.name, t.Shape(), spec.shape)
		}

		p, err := nn.NewParam(spec.name, t.Clone())
		if err != nil {
			return nil, err
		}

		m.params = append(m.params, p)
		m.byName[spec.name] = p
	}

	return m, nil
}

func (c Config) directions() []string {
	if c.Bidirectional {
		return []string{"fwd", "bwd"}
	}

	return []string{"fwd"}
}

type paramShape struct {
	name  string
	shape []int64
}

func (c Config) paramShapes() []paramShape {
	e := int64(c.EmbedDim)
	h := int64(c.HiddenUnits)

	shapes := []paramShape{
		{"embedding.weight", []int64{int64(c.VocabSize), e}},
	}

	for _, dir := range c.directions() {
		for _, gate := range []string{"z", "r", "h"} {
			shapes = append(shapes,
				paramShape{fmt.Sprintf("gru.%s.w%s", dir, gate), []int64{h, e}},
				paramShape{fmt.Sprintf("gru.%s.u%s", dir, gate), []int64{h, h}},
				paramShape{fmt.Sprintf("gru.%s.b%s", dir, gate), []int64{h}},
			)
		}
	}

	return append(shapes,
		paramShape{"dense.weight", []int64{1, int64(c.Width())}},
		paramShape{"dense.bias", []int64{1}},
	)
}

// Config returns the architecture descriptor.
func (m *Model) Config() Config {
	return m.cfg
}

// Params returns the trainable parameters in a stable order.
func (m *Model) Params() []*nn.Param {
	return m.params
}

// Released reports whether the model's resources have been freed.
func (m *Model) Released() bool {
	return m == nil || m.released
}

// Release frees the model's parameters. Any further forward pass fails with
// ErrNotReady. Release is idempotent.
func (m *Model) Release() {
	if m == nil || m.released {
		return
	}

	for _, p := range m.params {
		p.Value.Zero()
		p.ZeroGrad()
	}

	m.params = nil
	m.byName = nil
	m.released = true
}

func shapeEqual(a, b []int64) bool {
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
