package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/example/go-sentiment/internal/classify"
)

func newPredictCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify text with a saved artifact",
		Long: "Classify text with a saved artifact. Reads --text when given, " +
			"otherwise one text per line from stdin.",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			a, err := classify.LoadFile(cfg.Paths.ArtifactPath)
			if err != nil {
				return err
			}

			svc := classify.NewService()
			if err := svc.Replace(a); err != nil {
				return err
			}
			defer svc.Close()

			texts, err := readPredictTexts(text, os.Stdin)
			if err != nil {
				return err
			}

			preds, err := svc.Predict(texts, cfg.Training.Threshold)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)

			for i, p := range preds {
				line := struct {
					Text  string   `json:"text"`
					Prob  *float64 `json:"prob"`
					Label *int     `json:"label"`
				}{Text: texts[i], Label: p.Label}

				if p.Label != nil {
					prob := p.Prob
					line.Prob = &prob
				}

				if err := enc.Encode(line); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to classify (omit to read lines from stdin)")

	return cmd
}

func readPredictTexts(flag string, stdin io.Reader) ([]string, error) {
	if flag != "" {
		return []string{flag}, nil
	}

	var texts []string

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		texts = append(texts, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("no input text: pass --text or pipe lines on stdin")
	}

	return texts, nil
}
