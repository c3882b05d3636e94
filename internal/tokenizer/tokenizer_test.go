package tokenizer

import (
	"errors"
	"fmt"
	"testing"
)

func TestEncodeBeforeFit(t *testing.T) {
	tok := New(100, false)

	_, err := tok.Encode([]string{"hello"})
	if !errors.Is(err, ErrNotFitted) {
		t.Fatalf("err = %v, want ErrNotFitted", err)
	}
}

func TestEncodeCaseAndPunctuationInsensitive(t *testing.T) {
	tok := New(100, false)
	tok.Fit([]string{"Great food", "Terrible service", "great FOOD!!"})

	seqs, err := tok.Encode([]string{"Great food", "great FOOD!!"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if len(seqs[0]) != 2 || len(seqs[1]) != 2 {
		t.Fatalf("sequence lengths = %d, %d, want 2, 2", len(seqs[0]), len(seqs[1]))
	}

	for i := range seqs[0] {
		if seqs[0][i] != seqs[1][i] {
			t.Fatalf("encodings differ: %v vs %v", seqs[0], seqs[1])
		}
	}
}

func TestFitFrequencyOrderWithStableTies(t *testing.T) {
	// "zeta" appears 3x, "alpha" and "beta" 2x each (alpha first seen
	// earlier), "omega" once.
	tok := New(0, false)
	tok.Fit([]string{"zeta alpha", "alpha beta zeta", "beta zeta omega"})

	seqs, err := tok.Encode([]string{"zeta alpha beta omega"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := []int64{2, 3, 4, 5}

	for i, id := range seqs[0] {
		if id != want[i] {
			t.Fatalf("ids = %v, want %v", seqs[0], want)
		}
	}
}

func TestFitRespectsMaxVocab(t *testing.T) {
	texts := make([]string, 0, 10)
	for i := range 10 {
		// Distinct tokens with descending frequency.
		for range 10 - i {
			texts = append(texts, fmt.Sprintf("tok%d", i))
		}
	}

	tok := New(5, false)
	tok.Fit(texts)

	if got := tok.VocabSize(); got != 5 {
		t.Fatalf("VocabSize = %d, want 5", got)
	}

	seqs, err := tok.Encode([]string{"tok0 tok1 tok2 tok3"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := []int64{2, 3, 4, OOVID}

	for i, id := range seqs[0] {
		if id != want[i] {
			t.Fatalf("ids = %v, want %v", seqs[0], want)
		}
	}
}

func TestEncodeUnknownTokensBecomeOOV(t *testing.T) {
	tok := New(100, false)
	tok.Fit([]string{"good pizza"})

	seqs, err := tok.Encode([]string{"bad pizza"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if seqs[0][0] != OOVID {
		t.Fatalf("unknown token id = %d, want %d", seqs[0][0], OOVID)
	}

	if seqs[0][1] == OOVID || seqs[0][1] == PadID {
		t.Fatalf("known token id = %d, want assigned id", seqs[0][1])
	}
}

func TestEncodeBlankTextKeepsRow(t *testing.T) {
	tok := New(100, false)
	tok.Fit([]string{"some words"})

	seqs, err := tok.Encode([]string{"some", "!!!", "words"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if len(seqs) != 3 {
		t.Fatalf("rows = %d, want 3", len(seqs))
	}

	if len(seqs[1]) != 0 {
		t.Fatalf("blank row = %v, want empty sequence", seqs[1])
	}
}

func TestPadLengthInvariant(t *testing.T) {
	seqs := [][]int64{
		{},
		{5},
		{5, 6, 7},
		{5, 6, 7, 8, 9, 10},
	}

	for _, seqLen := range []int{1, 3, 8} {
		padded, err := Pad(seqs, seqLen)
		if err != nil {
			t.Fatalf("pad(%d): %v", seqLen, err)
		}

		for i, row := range padded {
			if len(row) != seqLen {
				t.Fatalf("row %d length = %d, want %d", i, len(row), seqLen)
			}
		}
	}
}

func TestPadTruncatesAndRightPads(t *testing.T) {
	padded, err := Pad([][]int64{{5, 6, 7, 8}, {9}}, 3)
	if err != nil {
		t.Fatalf("pad: %v", err)
	}

	if padded[0][0] != 5 || padded[0][1] != 6 || padded[0][2] != 7 {
		t.Fatalf("truncated row = %v, want [5 6 7]", padded[0])
	}

	if padded[1][0] != 9 || padded[1][1] != PadID || padded[1][2] != PadID {
		t.Fatalf("padded row = %v, want [9 0 0]", padded[1])
	}
}

func TestPadRejectsNonPositiveLength(t *testing.T) {
	if _, err := Pad([][]int64{{1}}, 0); err == nil {
		t.Fatal("expected error for seqLen 0")
	}
}

func TestStopwordRemovalChangesEncoding(t *testing.T) {
	corpus := []string{"the food was great", "the service was terrible"}

	plain := New(100, false)
	plain.Fit(corpus)

	filtered := New(100, true)
	filtered.Fit(corpus)

	if plain.VocabSize() <= filtered.VocabSize() {
		t.Fatalf("vocab sizes = %d, %d, want filtered smaller", plain.VocabSize(), filtered.VocabSize())
	}
}

func TestStateRoundTrip(t *testing.T) {
	tok := New(50, true)
	tok.Fit([]string{"the pasta was amazing", "the pasta was awful", "amazing value"})

	state, err := tok.State(20)
	if err != nil {
		t.Fatalf("state: %v", err)
	}

	if state.SeqLen != 20 || state.MaxVocab != 50 || !state.RemoveStopwords {
		t.Fatalf("state meta = %+v", state)
	}

	restored, err := FromState(state)
	if err != nil {
		t.Fatalf("from state: %v", err)
	}

	input := []string{"The PASTA was amazing!", "", "completely unknown words"}

	want, err := tok.Encode(input)
	if err != nil {
		t.Fatalf("encode original: %v", err)
	}

	got, err := restored.Encode(input)
	if err != nil {
		t.Fatalf("encode restored: %v", err)
	}

	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("row %d: %v vs %v", i, got[i], want[i])
		}

		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("row %d: %v vs %v", i, got[i], want[i])
			}
		}
	}
}

func TestFromStateRejectsBadState(t *testing.T) {
	if _, err := FromState(State{}); err == nil {
		t.Fatal("expected error for empty state")
	}

	_, err := FromState(State{WordIndex: map[string]int{"pad": 0}})
	if err == nil {
		t.Fatal("expected error for reserved id collision")
	}

	_, err = FromState(State{
		WordIndex: map[string]int{"good": 2},
		IndexWord: map[int]string{3: "good"},
	})
	if err == nil {
		t.Fatal("expected error for disagreeing inverse table")
	}
}

func TestStateRequiresFit(t *testing.T) {
	tok := New(10, false)

	_, err := tok.State(5)
	if !errors.Is(err, ErrNotFitted) {
		t.Fatalf("err = %v, want ErrNotFitted", err)
	}
}
