package classify

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/example/go-sentiment/internal/model"
	"github.com/example/go-sentiment/internal/tokenizer"
)

// DefaultThreshold is the probability cut-off separating the two labels.
const DefaultThreshold = 0.5

// Prediction is the scored outcome for one text. Label is nil when the
// text produced no known tokens, in which case Prob is NaN.
type Prediction struct {
	Prob  float64
	Label *int
}

// Service serves predictions from a swappable model plus its tokenizer.
// Replace installs a new bundle atomically; in-flight predictions finish
// against the bundle they started with.
type Service struct {
	mu     sync.RWMutex
	handle *model.Handle
	tok    *tokenizer.Tokenizer
	seqLen int
}

// NewService returns an empty service; predictions fail with ErrNoModel
// until an artifact is installed.
func NewService() *Service {
	return &Service{handle: model.NewHandle()}
}

// Replace swaps in a freshly loaded artifact and releases the previous
// model's weights.
func (s *Service) Replace(a *Artifact) error {
	if a == nil || a.Model == nil || a.Tokenizer == nil {
		return errors.New("classify: replace with incomplete artifact")
	}

	s.mu.Lock()
	s.tok = a.Tokenizer
	s.seqLen = a.SeqLen
	s.mu.Unlock()

	s.handle.Replace(a.Model)

	return nil
}

// Close releases the live model.
func (s *Service) Close() {
	s.handle.Close()
}

// Ready reports whether a model is installed and live.
func (s *Service) Ready() bool {
	_, err := s.handle.Model()
	return err == nil
}

// PredictOne scores a single text at the given threshold.
func (s *Service) PredictOne(text string, threshold float64) (Prediction, error) {
	preds, err := s.Predict([]string{text}, threshold)
	if err != nil {
		return Prediction{}, err
	}

	return preds[0], nil
}

// Predict scores a batch of texts. Each text flows through the same
// normalize/encode/pad path used during training. Texts whose tokens are
// all unknown still score (as all-OOV sequences); only texts that
// normalize to nothing at all yield a nil label.
func (s *Service) Predict(texts []string, threshold float64) ([]Prediction, error) {
	if len(texts) == 0 {
		return nil, errors.New("classify: no texts to predict")
	}

	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("classify: threshold must be in (0, 1), got %g", threshold)
	}

	s.mu.RLock()
	tok := s.tok
	seqLen := s.seqLen
	s.mu.RUnlock()

	m, err := s.handle.Model()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoModel, err)
	}

	if tok == nil {
		return nil, ErrMissingTokenizer
	}

	encoded, err := tok.Encode(texts)
	if err != nil {
		return nil, err
	}

	// Blank texts are scored as NaN without touching the model; the rest
	// run as one compacted batch.
	preds := make([]Prediction, len(texts))
	live := make([][]int64, 0, len(texts))
	liveIdx := make([]int, 0, len(texts))

	for i, seq := range encoded {
		if len(seq) == 0 {
			preds[i] = Prediction{Prob: math.NaN()}
			continue
		}

		live = append(live, seq)
		liveIdx = append(liveIdx, i)
	}

	if len(live) > 0 {
		padded, err := tokenizer.Pad(live, seqLen)
		if err != nil {
			return nil, err
		}

		probs, err := m.Infer(padded)
		if err != nil {
			return nil, err
		}

		for k, idx := range liveIdx {
			p := float64(probs[k])

			label := 0
			if p >= threshold {
				label = 1
			}

			preds[idx] = Prediction{Prob: p, Label: &label}
		}
	}

	return preds, nil
}
