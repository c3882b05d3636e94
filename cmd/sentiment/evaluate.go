package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/example/go-sentiment/internal/classify"
	"github.com/example/go-sentiment/internal/dataset"
	"github.com/example/go-sentiment/internal/eval"
	"github.com/example/go-sentiment/internal/tokenizer"
)

func newEvaluateCmd() *cobra.Command {
	var reportPath string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a saved artifact against a labelled CSV",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			a, err := classify.LoadFile(cfg.Paths.ArtifactPath)
			if err != nil {
				return err
			}
			defer a.Model.Release()

			texts, labels, err := dataset.LoadCSV(cfg.Paths.DataPath)
			if err != nil {
				return err
			}

			encoded, err := a.Tokenizer.Encode(texts)
			if err != nil {
				return err
			}

			padded, err := tokenizer.Pad(encoded, a.SeqLen)
			if err != nil {
				return err
			}

			report, err := eval.Evaluate(a.Model, padded, labels, cfg.Training.Threshold)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}

			if reportPath != "" {
				if err := os.WriteFile(reportPath, out, 0o644); err != nil {
					return fmt.Errorf("write report %s: %w", reportPath, err)
				}
				return nil
			}

			_, err = fmt.Fprintln(os.Stdout, string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "Write the JSON report to a file instead of stdout")

	return cmd
}
