// Package classify bundles a trained model with its fitted tokenizer: a
// single-file artifact for persistence and a prediction service that scores
// raw text through the full normalize/encode/pad/infer path.
package classify

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/example/go-sentiment/internal/model"
	"github.com/example/go-sentiment/internal/runtime/tensor"
	"github.com/example/go-sentiment/internal/safetensors"
	"github.com/example/go-sentiment/internal/tokenizer"
)

var (
	// ErrNoModel is returned when saving without a trained model.
	ErrNoModel = errors.New("classify: no model to save")
	// ErrMissingTokenizer is returned when an artifact lacks tokenizer state.
	ErrMissingTokenizer = errors.New("classify: artifact is missing tokenizer state")
	// ErrCorruptArtifact is returned when an artifact cannot be decoded.
	ErrCorruptArtifact = errors.New("classify: corrupt artifact")
)

// artifactVersion guards the manifest layout.
const artifactVersion = 1

// Manifest is the artifact's JSON head: topology plus tokenizer state. The
// weight section that follows it is a safetensors payload.
type Manifest struct {
	Version   int             `json:"version"`
	SavedAt   string          `json:"saved_at"`
	Model     model.Config    `json:"model"`
	Tokenizer tokenizer.State `json:"tokenizer"`
}

// Artifact is a decoded model bundle ready for inference.
type Artifact struct {
	Model     *model.Model
	Tokenizer *tokenizer.Tokenizer
	SeqLen    int
	SavedAt   time.Time
}

// Save serializes the model and tokenizer state into one artifact:
// 8-byte little-endian manifest length, JSON manifest, safetensors weights.
func Save(m *model.Model, state tokenizer.State) ([]byte, error) {
	if m == nil || m.Released() {
		return nil, ErrNoModel
	}

	if len(state.WordIndex) == 0 {
		return nil, ErrMissingTokenizer
	}

	if state.SeqLen != m.Config().SeqLen {
		return nil, fmt.Errorf("classify: tokenizer seqLen %d does not match model seqLen %d", state.SeqLen, m.Config().SeqLen)
	}

	manifest := Manifest{
		Version:   artifactVersion,
		SavedAt:   time.Now().UTC().Format(time.RFC3339),
		Model:     m.Config(),
		Tokenizer: state,
	}

	head, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("classify: encode manifest: %w", err)
	}

	params := m.Params()
	tensors := make([]safetensors.Tensor, 0, len(params))

	for _, p := range params {
		tensors = append(tensors, safetensors.Tensor{
			Name:  p.Name,
			Shape: p.Value.Shape(),
			Data:  p.Value.Data(),
		})
	}

	weights, err := safetensors.Encode(tensors)
	if err != nil {
		return nil, fmt.Errorf("classify: encode weights: %w", err)
	}

	out := make([]byte, 0, 8+len(head)+len(weights))
	lenPrefix := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenPrefix, uint64(len(head)))
	out = append(out, lenPrefix...)
	out = append(out, head...)
	out = append(out, weights...)

	return out, nil
}

// Load decodes an artifact back into a model and tokenizer.
func Load(data []byte) (*Artifact, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptArtifact, len(data))
	}

	headLen := binary.LittleEndian.Uint64(data[:8])
	if headLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("%w: manifest length %d exceeds artifact size %d", ErrCorruptArtifact, headLen, len(data))
	}

	headEnd := 8 + int(headLen)

	var manifest Manifest
	if err := json.Unmarshal(data[8:headEnd], &manifest); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %w", ErrCorruptArtifact, err)
	}

	if manifest.Version != artifactVersion {
		return nil, fmt.Errorf("%w: unsupported artifact version %d", ErrCorruptArtifact, manifest.Version)
	}

	if len(manifest.Tokenizer.WordIndex) == 0 {
		return nil, ErrMissingTokenizer
	}

	tok, err := tokenizer.FromState(manifest.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}

	raw, err := safetensors.Decode(data[headEnd:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}

	weights := make(map[string]*tensor.Tensor, len(raw))

	for name, t := range raw {
		w, err := tensor.New(t.Data, t.Shape)
		if err != nil {
			return nil, fmt.Errorf("%w: weight %q: %w", ErrCorruptArtifact, name, err)
		}

		weights[name] = w
	}

	m, err := model.NewFromWeights(manifest.Model, weights)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}

	savedAt, err := time.Parse(time.RFC3339, manifest.SavedAt)
	if err != nil {
		savedAt = time.Time{}
	}

	return &Artifact{
		Model:     m,
		Tokenizer: tok,
		SeqLen:    manifest.Tokenizer.SeqLen,
		SavedAt:   savedAt,
	}, nil
}

// SaveFile writes an artifact to disk.
func SaveFile(path string, m *model.Model, state tokenizer.State) error {
	data, err := Save(m, state)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("classify: write %s: %w", path, err)
	}

	return nil
}

// LoadFile reads an artifact from disk.
func LoadFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classify: read %s: %w", path, err)
	}

	return Load(data)
}
