// Package eval scores a trained sentiment model against a labelled hold-out
// set: loss, accuracy, the binary confusion matrix, and the derived
// precision, recall, and F1.
package eval

import (
	"errors"
	"fmt"

	"github.com/example/go-sentiment/internal/model"
	"github.com/example/go-sentiment/internal/nn"
)

const batchSize = 256

// Confusion is the binary confusion matrix with label 1 as positive.
type Confusion struct {
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// Report holds the evaluation result. YTrue, YPred, and YProb are aligned
// with the input order.
type Report struct {
	Loss      float64   `json:"loss"`
	Accuracy  float64   `json:"accuracy"`
	Threshold float64   `json:"threshold"`
	Confusion Confusion `json:"confusion"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	YTrue     []int     `json:"y_true"`
	YPred     []int     `json:"y_pred"`
	YProb     []float64 `json:"y_prob"`
}

// Evaluate scores the model over padded sequences x with labels y,
// thresholding probabilities at the given cut-off. Metrics with a zero
// denominator report 0.
func Evaluate(m *model.Model, x [][]int64, y []int, threshold float64) (*Report, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("eval: %d sequences vs %d labels", len(x), len(y))
	}

	if len(x) == 0 {
		return nil, errors.New("eval: empty test set")
	}

	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("eval: threshold must be in (0, 1), got %g", threshold)
	}

	r := &Report{
		Threshold: threshold,
		YTrue:     append([]int(nil), y...),
		YPred:     make([]int, len(y)),
		YProb:     make([]float64, len(y)),
	}

	var lossSum float64

	for start := 0; start < len(x); start += batchSize {
		end := min(start+batchSize, len(x))

		g := nn.NewGraph(false)

		logits, err := m.Forward(g, x[start:end])
		if err != nil {
			return nil, err
		}

		targets := make([]float32, end-start)
		for i := start; i < end; i++ {
			targets[i-start] = float32(y[i])
		}

		batchLoss, probs, err := g.SigmoidBCE(logits, targets)
		if err != nil {
			return nil, err
		}

		lossSum += batchLoss * float64(end-start)

		for i, p := range probs {
			idx := start + i

			r.YProb[idx] = float64(p)
			if float64(p) >= threshold {
				r.YPred[idx] = 1
			}
		}
	}

	r.Loss = lossSum / float64(len(x))

	for i := range y {
		switch {
		case y[i] == 1 && r.YPred[i] == 1:
			r.Confusion.TP++
		case y[i] == 0 && r.YPred[i] == 0:
			r.Confusion.TN++
		case y[i] == 0 && r.YPred[i] == 1:
			r.Confusion.FP++
		default:
			r.Confusion.FN++
		}
	}

	c := r.Confusion
	r.Accuracy = float64(c.TP+c.TN) / float64(len(y))
	r.Precision = ratio(c.TP, c.TP+c.FP)
	r.Recall = ratio(c.TP, c.TP+c.FN)

	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}

	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}

	return float64(num) / float64(den)
}
