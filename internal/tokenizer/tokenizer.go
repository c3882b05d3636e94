// Package tokenizer maps review text onto bounded integer vocabularies.
//
// Ids 0 and 1 are reserved: 0 pads sequences, 1 substitutes for tokens not
// in the vocabulary. Real tokens receive ids from 2 upward in descending
// corpus frequency. A Tokenizer is built either by fitting on a training
// corpus or by restoring persisted State; both paths produce instances with
// identical encode behavior.
package tokenizer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/go-sentiment/internal/text"
)

const (
	// PadID right-pads sequences shorter than the target length.
	PadID = 0
	// OOVID replaces tokens absent from the fitted vocabulary.
	OOVID = 1

	reservedIDs = 2
)

// ErrNotFitted is returned when Encode is called before Fit (or before
// restoring state).
var ErrNotFitted = errors.New("tokenizer: not fitted")

// Tokenizer holds an immutable fitted vocabulary. Fit replaces the
// vocabulary wholesale; it is never mutated in place.
type Tokenizer struct {
	maxVocab        int
	removeStopwords bool

	wordIndex map[string]int
	indexWord map[int]string
	fitted    bool
}

// New returns an unfitted tokenizer. maxVocab caps the vocabulary size
// including the two reserved ids; maxVocab <= 0 means unbounded.
func New(maxVocab int, removeStopwords bool) *Tokenizer {
	return &Tokenizer{
		maxVocab:        maxVocab,
		removeStopwords: removeStopwords,
	}
}

// Normalize applies the tokenizer's text normalization, including stopword
// removal when enabled.
func (t *Tokenizer) Normalize(s string) string {
	return strings.Join(text.Tokens(s, t.removeStopwords), " ")
}

// Fit builds the vocabulary from a training corpus: term frequencies over
// all non-empty normalized texts, ranked by frequency descending with ties
// broken by first appearance. Any prior vocabulary is discarded.
func (t *Tokenizer) Fit(texts []string) {
	type entry struct {
		token string
		count int
		seen  int
	}

	counts := make(map[string]*entry)
	order := 0

	for _, raw := range texts {
		for _, tok := range text.Tokens(raw, t.removeStopwords) {
			e, ok := counts[tok]
			if !ok {
				e = &entry{token: tok, seen: order}
				counts[tok] = e
				order++
			}

			e.count++
		}
	}

	ranked := make([]*entry, 0, len(counts))
	for _, e := range counts {
		ranked = append(ranked, e)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}

		return ranked[i].seen < ranked[j].seen
	})

	limit := len(ranked)
	if t.maxVocab > 0 && t.maxVocab-reservedIDs < limit {
		limit = t.maxVocab - reservedIDs
		if limit < 0 {
			limit = 0
		}
	}

	wordIndex := make(map[string]int, limit)
	indexWord := make(map[int]string, limit)

	for rank, e := range ranked[:limit] {
		id := reservedIDs + rank
		wordIndex[e.token] = id
		indexWord[id] = e.token
	}

	t.wordIndex = wordIndex
	t.indexWord = indexWord
	t.fitted = true
}

// Fitted reports whether the tokenizer carries a vocabulary.
func (t *Tokenizer) Fitted() bool {
	return t.fitted
}

// VocabSize returns the effective vocabulary size: the two reserved ids
// plus every assigned token id.
func (t *Tokenizer) VocabSize() int {
	return reservedIDs + len(t.wordIndex)
}

// Encode converts each text into its sequence of token ids, substituting
// OOVID for unknown tokens. Blank texts yield empty sequences; rows are
// never dropped, so output indices align with input indices.
func (t *Tokenizer) Encode(texts []string) ([][]int64, error) {
	if !t.fitted {
		return nil, fmt.Errorf("%w: call Fit before Encode", ErrNotFitted)
	}

	out := make([][]int64, len(texts))

	for i, raw := range texts {
		toks := text.Tokens(raw, t.removeStopwords)
		seq := make([]int64, 0, len(toks))

		for _, tok := range toks {
			id, ok := t.wordIndex[tok]
			if !ok {
				id = OOVID
			}

			seq = append(seq, int64(id))
		}

		out[i] = seq
	}

	return out, nil
}

// Pad truncates each sequence to its first seqLen ids and right-pads
// shorter ones with PadID, so every returned row has length seqLen.
func Pad(seqs [][]int64, seqLen int) ([][]int64, error) {
	if seqLen < 1 {
		return nil, fmt.Errorf("tokenizer: pad length must be >= 1, got %d", seqLen)
	}

	out := make([][]int64, len(seqs))

	for i, seq := range seqs {
		row := make([]int64, seqLen)
		copy(row, seq)
		out[i] = row
	}

	return out, nil
}
