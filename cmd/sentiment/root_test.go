package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-sentiment/internal/testutil"
)

func writeSampleCSV(t *testing.T) string {
	t.Helper()

	texts, labels := testutil.SeparableTexts(60)

	return testutil.WriteCSV(t, texts, labels)
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()

	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	return cmd.Execute()
}

func TestTrainEvaluatePredictPipeline(t *testing.T) {
	csvPath := writeSampleCSV(t)
	artifact := filepath.Join(t.TempDir(), "sentiment.model")

	common := []string{
		"--paths-data-path", csvPath,
		"--paths-artifact-path", artifact,
		"--training-seq-len", "8",
		"--training-embed-dim", "8",
		"--training-hidden-units", "8",
		"--training-bidirectional=false",
		"--training-dropout", "0",
		"--training-epochs", "10",
		"--training-batch-size", "8",
		"--training-learning-rate", "0.01",
		"--log-level", "error",
	}

	if err := runCLI(t, append([]string{"train"}, common...)...); err != nil {
		t.Fatalf("train: %v", err)
	}

	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}

	report := filepath.Join(t.TempDir(), "report.json")

	evalArgs := append([]string{"evaluate", "--report", report}, common...)
	if err := runCLI(t, evalArgs...); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	for _, key := range []string{`"accuracy"`, `"confusion"`, `"f1"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("report missing %s:\n%s", key, data)
		}
	}

	predictArgs := append([]string{"predict", "--text", "great amazing food"}, common...)
	if err := runCLI(t, predictArgs...); err != nil {
		t.Fatalf("predict: %v", err)
	}

	if err := runCLI(t, append([]string{"doctor"}, common...)...); err != nil {
		t.Fatalf("doctor: %v", err)
	}
}

func TestTrainFailsOnMissingData(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "sentiment.model")

	err := runCLI(t,
		"train",
		"--paths-data-path", filepath.Join(t.TempDir(), "missing.csv"),
		"--paths-artifact-path", artifact,
		"--log-level", "error",
	)
	if err == nil {
		t.Fatal("train succeeded without a dataset")
	}
}

func TestRootRegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	want := map[string]bool{
		"train":    false,
		"evaluate": false,
		"predict":  false,
		"serve":    false,
		"health":   false,
		"doctor":   false,
	}

	for _, sub := range cmd.Commands() {
		name := strings.Fields(sub.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}

	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %q not registered", name)
		}
	}
}

func TestReadPredictTexts(t *testing.T) {
	texts, err := readPredictTexts("hello", nil)
	if err != nil || len(texts) != 1 || texts[0] != "hello" {
		t.Fatalf("flag input = %v, %v", texts, err)
	}

	texts, err = readPredictTexts("", strings.NewReader("one\n\n  two  \n"))
	if err != nil {
		t.Fatalf("stdin input: %v", err)
	}

	if len(texts) != 2 || texts[0] != "one" || texts[1] != "two" {
		t.Fatalf("stdin texts = %v", texts)
	}

	if _, err := readPredictTexts("", strings.NewReader("")); err == nil {
		t.Fatal("empty stdin accepted")
	}
}
