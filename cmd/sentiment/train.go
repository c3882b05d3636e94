package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/go-sentiment/internal/classify"
	"github.com/example/go-sentiment/internal/dataset"
	"github.com/example/go-sentiment/internal/eval"
	"github.com/example/go-sentiment/internal/model"
	"github.com/example/go-sentiment/internal/train"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier from a labelled CSV and save the artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			texts, labels, err := dataset.LoadCSV(cfg.Paths.DataPath)
			if err != nil {
				return err
			}

			slog.Info("dataset loaded",
				slog.String("path", cfg.Paths.DataPath),
				slog.Int("samples", len(texts)),
			)

			tc := cfg.Training

			split, err := dataset.Prepare(texts, labels, dataset.Options{
				SeqLen:          tc.SeqLen,
				MaxVocab:        tc.MaxVocab,
				RemoveStopwords: tc.RemoveStopwords,
				TestSplit:       tc.TestSplit,
				Seed:            tc.Seed,
			})
			if err != nil {
				return err
			}

			slog.Info("dataset prepared",
				slog.Int("train", split.Counts.NTrain),
				slog.Int("test", split.Counts.NTest),
				slog.Int("vocab_size", split.Tokenizer.VocabSize()),
			)

			m, err := model.New(model.Config{
				VocabSize:     split.Tokenizer.VocabSize(),
				SeqLen:        tc.SeqLen,
				EmbedDim:      tc.EmbedDim,
				HiddenUnits:   tc.HiddenUnits,
				Dropout:       tc.Dropout,
				Bidirectional: tc.Bidirectional,
			}, tc.Seed)
			if err != nil {
				return err
			}

			opts := train.Options{
				Epochs:          tc.Epochs,
				BatchSize:       tc.BatchSize,
				ValidationSplit: tc.ValidationSplit,
				LearningRate:    tc.LearningRate,
				Seed:            tc.Seed,
			}

			for ep, err := range train.Run(cmd.Context(), m, split.TrainX, split.TrainY, opts) {
				if err != nil {
					return err
				}

				slog.Info("epoch complete",
					slog.Int("epoch", ep.Index+1),
					slog.Int("of", tc.Epochs),
					slog.Float64("loss", ep.Loss),
					slog.Float64("accuracy", ep.Accuracy),
					slog.Float64("val_loss", ep.ValLoss),
					slog.Float64("val_accuracy", ep.ValAccuracy),
				)
			}

			report, err := eval.Evaluate(m, split.TestX, split.TestY, tc.Threshold)
			if err != nil {
				return err
			}

			slog.Info("evaluation on held-out test set",
				slog.Float64("loss", report.Loss),
				slog.Float64("accuracy", report.Accuracy),
				slog.Float64("precision", report.Precision),
				slog.Float64("recall", report.Recall),
				slog.Float64("f1", report.F1),
			)

			state, err := split.Tokenizer.State(tc.SeqLen)
			if err != nil {
				return err
			}

			if err := classify.SaveFile(cfg.Paths.ArtifactPath, m, state); err != nil {
				return err
			}

			slog.Info("artifact saved", slog.String("path", cfg.Paths.ArtifactPath))

			return nil
		},
	}

	return cmd
}
