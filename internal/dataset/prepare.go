// Package dataset turns labeled review rows into padded train/test splits.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/example/go-sentiment/internal/tokenizer"
)

// ErrValidation is returned for malformed or mismatched input data.
var ErrValidation = errors.New("dataset: invalid input")

// Options configures Prepare.
type Options struct {
	SeqLen          int
	MaxVocab        int
	RemoveStopwords bool
	TestSplit       float64
	Seed            int64
}

// Counts reports the split sizes for progress display.
type Counts struct {
	N      int
	NTrain int
	NTest  int
}

// Split is the prepared dataset. TrainX/TrainY and TestX/TestY are parallel:
// row i of X always carries the label at row i of Y.
type Split struct {
	TrainX [][]int64
	TrainY []int
	TestX  [][]int64
	TestY  []int

	Tokenizer *tokenizer.Tokenizer
	Counts    Counts
}

// Prepare shuffles texts and labels in lock-step with a seeded permutation,
// fits a fresh tokenizer on the shuffled texts, encodes and pads every row,
// and slices the result positionally into train and test partitions.
func Prepare(texts []string, labels []int, opts Options) (*Split, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", ErrValidation)
	}

	if len(texts) != len(labels) {
		return nil, fmt.Errorf("%w: %d texts but %d labels", ErrValidation, len(texts), len(labels))
	}

	for i, y := range labels {
		if y != 0 && y != 1 {
			return nil, fmt.Errorf("%w: label at row %d is %d, want 0 or 1", ErrValidation, i, y)
		}
	}

	if opts.SeqLen < 1 {
		return nil, fmt.Errorf("%w: seqLen must be >= 1, got %d", ErrValidation, opts.SeqLen)
	}

	if opts.TestSplit <= 0 || opts.TestSplit >= 1 {
		return nil, fmt.Errorf("%w: testSplit must be in (0, 1), got %g", ErrValidation, opts.TestSplit)
	}

	shuffledTexts := append([]string(nil), texts...)
	shuffledLabels := append([]int(nil), labels...)
	Shuffle(shuffledTexts, shuffledLabels, opts.Seed)

	tok := tokenizer.New(opts.MaxVocab, opts.RemoveStopwords)
	tok.Fit(shuffledTexts)

	seqs, err := tok.Encode(shuffledTexts)
	if err != nil {
		return nil, err
	}

	padded, err := tokenizer.Pad(seqs, opts.SeqLen)
	if err != nil {
		return nil, err
	}

	n := len(padded)

	nTest := int(float64(n) * opts.TestSplit)
	if nTest < 1 {
		nTest = 1
	}

	nTrain := n - nTest

	return &Split{
		TrainX:    padded[:nTrain],
		TrainY:    shuffledLabels[:nTrain],
		TestX:     padded[nTrain:],
		TestY:     shuffledLabels[nTrain:],
		Tokenizer: tok,
		Counts:    Counts{N: n, NTrain: nTrain, NTest: nTest},
	}, nil
}

// Shuffle permutes texts and labels identically with a Fisher-Yates pass
// driven by a seeded generator. The same seed and inputs always produce the
// same permutation, on every platform.
func Shuffle(texts []string, labels []int, seed int64) {
	rng := rand.New(rand.NewSource(seed))

	for i := len(texts) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		texts[i], texts[j] = texts[j], texts[i]
		labels[i], labels[j] = labels[j], labels[i]
	}
}
