package tokenizer

import (
	"errors"
	"fmt"
)

// State is the persistable form of a fitted tokenizer, stored inside the
// model artifact so inference encodes text exactly as training did.
type State struct {
	WordIndex       map[string]int `json:"word_index"`
	IndexWord       map[int]string `json:"index_word"`
	SeqLen          int            `json:"seq_len"`
	MaxVocab        int            `json:"max_vocab"`
	RemoveStopwords bool           `json:"remove_stopwords"`
}

// State captures the fitted vocabulary. seqLen is carried through so the
// artifact records the padded length the model was trained with.
func (t *Tokenizer) State(seqLen int) (State, error) {
	if !t.fitted {
		return State{}, fmt.Errorf("%w: cannot snapshot state", ErrNotFitted)
	}

	wordIndex := make(map[string]int, len(t.wordIndex))
	for w, id := range t.wordIndex {
		wordIndex[w] = id
	}

	indexWord := make(map[int]string, len(t.indexWord))
	for id, w := range t.indexWord {
		indexWord[id] = w
	}

	return State{
		WordIndex:       wordIndex,
		IndexWord:       indexWord,
		SeqLen:          seqLen,
		MaxVocab:        t.maxVocab,
		RemoveStopwords: t.removeStopwords,
	}, nil
}

// FromState restores a fitted tokenizer from persisted state. The restored
// instance encodes identically to the one that produced the state; the
// normalization and stopword logic live in this package, not the artifact.
func FromState(s State) (*Tokenizer, error) {
	if len(s.WordIndex) == 0 {
		return nil, errors.New("tokenizer: state has empty vocabulary")
	}

	wordIndex := make(map[string]int, len(s.WordIndex))
	indexWord := make(map[int]string, len(s.WordIndex))

	for w, id := range s.WordIndex {
		if id < reservedIDs {
			return nil, fmt.Errorf("tokenizer: state maps %q to reserved id %d", w, id)
		}

		wordIndex[w] = id
		indexWord[id] = w
	}

	// The stored inverse table is redundant; when present it must agree.
	for id, w := range s.IndexWord {
		if got, ok := wordIndex[w]; !ok || got != id {
			return nil, fmt.Errorf("tokenizer: state inverse table disagrees on %q", w)
		}
	}

	return &Tokenizer{
		maxVocab:        s.MaxVocab,
		removeStopwords: s.RemoveStopwords,
		wordIndex:       wordIndex,
		indexWord:       indexWord,
		fitted:          true,
	}, nil
}
