package text

import (
	"strings"
	"testing"
)

func TestNormalizeLowercasesAndStripsPunctuation(t *testing.T) {
	got := Normalize("Great FOOD!! Would eat again...")
	want := "great food would eat again"

	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeKeepsApostrophesAndDigits(t *testing.T) {
	got := Normalize("Don't order #3, it's 10x worse")
	want := "don't order 3 it's 10x worse"

	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got := Normalize("  so \t many\n\n gaps  ")
	want := "so many gaps"

	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeEmptyInputs(t *testing.T) {
	for _, in := range []string{"", "   ", "!!!", "\n\t"} {
		if got := Normalize(in); got != "" {
			t.Fatalf("Normalize(%q) = %q, want empty", in, got)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Great food",
		"TERRIBLE!!! service...",
		"it's fine, really (mostly)",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)

		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestTokensSplitsOnSingleSpace(t *testing.T) {
	got := Tokens("Great food, great mood", false)
	want := []string{"great", "food", "great", "mood"}

	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
}

func TestTokensDropsStopwords(t *testing.T) {
	got := Tokens("the food was great and the staff were kind", true)
	want := []string{"food", "great", "staff", "kind"}

	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
}

func TestTokensBlankText(t *testing.T) {
	if got := Tokens("?!", false); got != nil {
		t.Fatalf("Tokens = %v, want nil", got)
	}
}

func TestIsStopword(t *testing.T) {
	if !IsStopword("the") {
		t.Fatal("expected 'the' to be a stopword")
	}

	if IsStopword("terrible") {
		t.Fatal("did not expect 'terrible' to be a stopword")
	}
}
