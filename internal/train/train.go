// Package train drives gradient-descent fitting of the sentiment model:
// mini-batch epochs over encoded sequences with an optional held-out
// validation slice, surfaced as an iterator of per-epoch metrics.
package train

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"math/rand"

	"github.com/example/go-sentiment/internal/model"
	"github.com/example/go-sentiment/internal/nn"
)

// ErrTraining is returned when the optimization itself fails, for example
// when the loss diverges to a non-finite value.
var ErrTraining = errors.New("train: training failed")

// Options controls a fitting run.
type Options struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	LearningRate    float64
	Seed            int64
}

// DefaultOptions returns the fitting defaults.
func DefaultOptions() Options {
	return Options{
		Epochs:          5,
		BatchSize:       32,
		ValidationSplit: 0.1,
		LearningRate:    1e-3,
	}
}

// Epoch is the metric snapshot after one full pass. Validation fields are
// NaN when no validation slice was held out.
type Epoch struct {
	Index       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

func (o *Options) validate(n int) error {
	if o.Epochs < 1 {
		return fmt.Errorf("%w: epochs must be >= 1, got %d", ErrTraining, o.Epochs)
	}

	if o.BatchSize < 1 {
		return fmt.Errorf("%w: batchSize must be >= 1, got %d", ErrTraining, o.BatchSize)
	}

	if o.ValidationSplit < 0 || o.ValidationSplit >= 1 {
		return fmt.Errorf("%w: validationSplit must be in [0, 1), got %g", ErrTraining, o.ValidationSplit)
	}

	if n == 0 {
		return fmt.Errorf("%w: no training samples", ErrTraining)
	}

	nVal := int(float64(n) * o.ValidationSplit)
	if n-nVal < 1 {
		return fmt.Errorf("%w: validation split leaves no training samples", ErrTraining)
	}

	return nil
}

// Run fits the model and yields one Epoch per pass. Iteration stops early
// when the consumer breaks, the context is cancelled, or an error is
// yielded; after a non-nil error no further pairs follow. Inputs must be
// aligned and already padded to the model's sequence length.
func Run(ctx context.Context, m *model.Model, x [][]int64, y []int, opts Options) iter.Seq2[Epoch, error] {
	return func(yield func(Epoch, error) bool) {
		if len(x) != len(y) {
			yield(Epoch{}, fmt.Errorf("%w: %d sequences vs %d labels", ErrTraining, len(x), len(y)))
			return
		}

		if err := opts.validate(len(x)); err != nil {
			yield(Epoch{}, err)
			return
		}

		nVal := int(float64(len(x)) * opts.ValidationSplit)
		cut := len(x) - nVal

		workX := append([][]int64(nil), x...)
		workY := append([]int(nil), y...)

		targets := make([]float32, len(workY))
		for i, lbl := range workY {
			targets[i] = float32(lbl)
		}

		opt := nn.NewAdam()
		if opts.LearningRate > 0 {
			opt.LR = opts.LearningRate
		}

		rng := rand.New(rand.NewSource(opts.Seed))

		for epoch := range opts.Epochs {
			if err := ctx.Err(); err != nil {
				yield(Epoch{Index: epoch}, fmt.Errorf("%w: %w", ErrTraining, err))
				return
			}

			// Lock-step reshuffle of the full set keeps rows aligned with
			// labels; the trailing nVal rows become this epoch's held-out
			// validation slice.
			for i := len(workX) - 1; i > 0; i-- {
				j := rng.Intn(i + 1)
				workX[i], workX[j] = workX[j], workX[i]
				workY[i], workY[j] = workY[j], workY[i]
				targets[i], targets[j] = targets[j], targets[i]
			}

			var (
				lossSum float64
				correct int
			)

			for start := 0; start < cut; start += opts.BatchSize {
				end := min(start+opts.BatchSize, cut)

				g := nn.NewGraph(true)

				logits, err := m.Forward(g, workX[start:end])
				if err != nil {
					yield(Epoch{Index: epoch}, fmt.Errorf("%w: %w", ErrTraining, err))
					return
				}

				loss, probs, err := g.SigmoidBCE(logits, targets[start:end])
				if err != nil {
					yield(Epoch{Index: epoch}, fmt.Errorf("%w: %w", ErrTraining, err))
					return
				}

				g.Backward()

				if err := opt.Step(m.Params()); err != nil {
					yield(Epoch{Index: epoch}, fmt.Errorf("%w: %w", ErrTraining, err))
					return
				}

				lossSum += loss * float64(end-start)

				for i, p := range probs {
					if (p >= 0.5) == (workY[start+i] == 1) {
						correct++
					}
				}
			}

			ep := Epoch{
				Index:       epoch,
				Loss:        lossSum / float64(cut),
				Accuracy:    float64(correct) / float64(cut),
				ValLoss:     math.NaN(),
				ValAccuracy: math.NaN(),
			}

			if math.IsNaN(ep.Loss) || math.IsInf(ep.Loss, 0) {
				yield(ep, fmt.Errorf("%w: loss diverged at epoch %d", ErrTraining, epoch))
				return
			}

			if nVal > 0 {
				valLoss, valAcc, err := Score(m, workX[cut:], workY[cut:], opts.BatchSize)
				if err != nil {
					yield(ep, fmt.Errorf("%w: %w", ErrTraining, err))
					return
				}

				ep.ValLoss = valLoss
				ep.ValAccuracy = valAcc
			}

			if !yield(ep, nil) {
				return
			}
		}
	}
}

// Fit drains Run into an epoch history.
func Fit(ctx context.Context, m *model.Model, x [][]int64, y []int, opts Options) ([]Epoch, error) {
	var history []Epoch

	for ep, err := range Run(ctx, m, x, y, opts) {
		if err != nil {
			return history, err
		}

		history = append(history, ep)
	}

	return history, nil
}

// Score computes mean binary cross-entropy and accuracy at threshold 0.5
// over a labelled set, without touching the model's weights.
func Score(m *model.Model, x [][]int64, y []int, batchSize int) (loss, accuracy float64, err error) {
	if len(x) != len(y) {
		return 0, 0, fmt.Errorf("train: %d sequences vs %d labels", len(x), len(y))
	}

	if len(x) == 0 {
		return 0, 0, errors.New("train: score on empty set")
	}

	if batchSize < 1 {
		batchSize = 1
	}

	var (
		lossSum float64
		correct int
	)

	for start := 0; start < len(x); start += batchSize {
		end := min(start+batchSize, len(x))

		g := nn.NewGraph(false)

		logits, err := m.Forward(g, x[start:end])
		if err != nil {
			return 0, 0, err
		}

		targets := make([]float32, end-start)
		for i := start; i < end; i++ {
			targets[i-start] = float32(y[i])
		}

		batchLoss, probs, err := g.SigmoidBCE(logits, targets)
		if err != nil {
			return 0, 0, err
		}

		lossSum += batchLoss * float64(end-start)

		for i, p := range probs {
			if (p >= 0.5) == (y[start+i] == 1) {
				correct++
			}
		}
	}

	return lossSum / float64(len(x)), float64(correct) / float64(len(x)), nil
}
