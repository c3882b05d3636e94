// Package doctor provides environment preflight checks for the sentiment
// tooling: is the dataset readable, is the artifact loadable, and does the
// configuration make sense before a long training run.
package doctor

import (
	"fmt"
	"io"
	"os"

	"github.com/example/go-sentiment/internal/classify"
	"github.com/example/go-sentiment/internal/config"
	"github.com/example/go-sentiment/internal/dataset"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all preflight checks against cfg, printing one line per
// check to w.
func Run(w io.Writer, cfg config.Config) *Result {
	res := &Result{}

	checkTrainingConfig(w, cfg, res)
	checkDataset(w, cfg.Paths.DataPath, res)
	checkArtifact(w, cfg.Paths.ArtifactPath, res)

	return res
}

func checkTrainingConfig(w io.Writer, cfg config.Config, res *Result) {
	tc := cfg.Training

	type check struct {
		ok  bool
		msg string
	}

	checks := []check{
		{tc.SeqLen >= 1, fmt.Sprintf("training.seq_len %d must be >= 1", tc.SeqLen)},
		{tc.TestSplit > 0 && tc.TestSplit < 1, fmt.Sprintf("training.test_split %g must be in (0, 1)", tc.TestSplit)},
		{tc.ValidationSplit >= 0 && tc.ValidationSplit < 1, fmt.Sprintf("training.validation_split %g must be in [0, 1)", tc.ValidationSplit)},
		{tc.Dropout >= 0 && tc.Dropout < 1, fmt.Sprintf("training.dropout %g must be in [0, 1)", tc.Dropout)},
		{tc.Threshold > 0 && tc.Threshold < 1, fmt.Sprintf("training.threshold %g must be in (0, 1)", tc.Threshold)},
		{tc.Epochs >= 1, fmt.Sprintf("training.epochs %d must be >= 1", tc.Epochs)},
		{tc.BatchSize >= 1, fmt.Sprintf("training.batch_size %d must be >= 1", tc.BatchSize)},
		{tc.MaxVocab == 0 || tc.MaxVocab > 2, fmt.Sprintf("training.max_vocab %d leaves no room beyond reserved ids", tc.MaxVocab)},
	}

	for _, c := range checks {
		if !c.ok {
			printCheck(w, false, c.msg)
			res.fail(c.msg)
		}
	}

	printCheck(w, true, "training configuration")
}

func checkDataset(w io.Writer, path string, res *Result) {
	texts, labels, err := dataset.LoadCSV(path)
	if err != nil {
		msg := fmt.Sprintf("dataset %s: %v", path, err)
		printCheck(w, false, msg)
		res.fail(msg)
		return
	}

	var positives int
	for _, lbl := range labels {
		if lbl == 1 {
			positives++
		}
	}

	if positives == 0 || positives == len(labels) {
		msg := fmt.Sprintf("dataset %s: only one class present (%d/%d positive)", path, positives, len(labels))
		printCheck(w, false, msg)
		res.fail(msg)
		return
	}

	printCheck(w, true, fmt.Sprintf("dataset %s: %d samples, %d positive", path, len(texts), positives))
}

func checkArtifact(w io.Writer, path string, res *Result) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// No artifact yet is fine before the first training run.
		printCheck(w, true, fmt.Sprintf("artifact %s: not present (train to create it)", path))
		return
	}

	a, err := classify.LoadFile(path)
	if err != nil {
		msg := fmt.Sprintf("artifact %s: %v", path, err)
		printCheck(w, false, msg)
		res.fail(msg)
		return
	}
	defer a.Model.Release()

	cfg := a.Model.Config()
	printCheck(w, true, fmt.Sprintf("artifact %s: vocab %d, seq_len %d", path, cfg.VocabSize, a.SeqLen))
}

func printCheck(w io.Writer, ok bool, msg string) {
	mark := PassMark
	if !ok {
		mark = FailMark
	}

	_, _ = fmt.Fprintf(w, "%s %s\n", mark, msg)
}
