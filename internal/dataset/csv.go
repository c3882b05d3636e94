package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadCSV reads labeled reviews from two-column CSV rows (text, label).
// Labels 0/1 and negative/positive are recognized; rows with any other
// label value are skipped, as is a leading header row.
func ReadCSV(r io.Reader) ([]string, []int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var (
		texts  []string
		labels []int
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, nil, fmt.Errorf("dataset: read csv: %w", err)
		}

		if len(record) < 2 {
			continue
		}

		label, ok := parseLabel(record[1])
		if !ok {
			continue
		}

		texts = append(texts, record[0])
		labels = append(labels, label)
	}

	if len(texts) == 0 {
		return nil, nil, fmt.Errorf("%w: no rows with a recognized label", ErrValidation)
	}

	return texts, labels, nil
}

// LoadCSV reads labeled reviews from the CSV file at path.
func LoadCSV(path string) ([]string, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(f)
}

func parseLabel(s string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "negative":
		return 0, true
	case "1", "positive":
		return 1, true
	default:
		return 0, false
	}
}
