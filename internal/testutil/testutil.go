// Package testutil provides shared fixtures for classifier tests: small
// synthetic corpora that are trivially separable, so training converges in
// a handful of epochs and assertions on accuracy stay deterministic.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SeparableSequences returns n padded id sequences with alternating labels:
// even rows repeat token 2 and are positive, odd rows repeat token 3 and
// are negative. Ids stay below vocab size 8.
func SeparableSequences(n, seqLen int) ([][]int64, []int) {
	x := make([][]int64, n)
	y := make([]int, n)

	for i := range n {
		row := make([]int64, seqLen)

		tok := int64(3)
		if i%2 == 0 {
			tok = 2
			y[i] = 1
		}

		for j := range row {
			row[j] = tok
		}

		x[i] = row
	}

	return x, y
}

// SeparableTexts returns n review-like texts with alternating sentiment,
// cycling through a few distinct phrasings per class.
func SeparableTexts(n int) ([]string, []int) {
	positive := []string{
		"great amazing wonderful food",
		"loved it great fun",
		"absolutely brilliant and delightful",
	}
	negative := []string{
		"terrible awful horrible mess",
		"hated it awful boring",
		"absolutely dreadful and disappointing",
	}

	texts := make([]string, n)
	labels := make([]int, n)

	for i := range n {
		if i%2 == 0 {
			texts[i] = positive[(i/2)%len(positive)]
			labels[i] = 1
		} else {
			texts[i] = negative[(i/2)%len(negative)]
		}
	}

	return texts, labels
}

// WriteCSV writes a labelled text,label CSV with a header row into a temp
// directory and returns its path.
func WriteCSV(tb testing.TB, texts []string, labels []int) string {
	tb.Helper()

	var b strings.Builder
	b.WriteString("text,label\n")

	for i, text := range texts {
		b.WriteString(text)
		b.WriteString(",")

		if labels[i] == 1 {
			b.WriteString("positive")
		} else {
			b.WriteString("negative")
		}

		b.WriteString("\n")
	}

	path := filepath.Join(tb.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		tb.Fatalf("write csv: %v", err)
	}

	return path
}
