// Package autoencoder loads the benign/malicious reconstruction models
// and composes them into the two-element (PAMP, SAFE) signal vector
// consumed by the DCA.
package autoencoder

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Model is a reconstruction model: reconstruct(x) -> x. The internal
// representation is a single linear layer (weights + bias) per spec
// §4.2's "implementation is free to choose any inference runtime" —
// no ML inference library appears in the retrieval pack's dependency
// graphs, so the reference runtime is a plain matrix multiply on
// stdlib math (see DESIGN.md for the standard-library justification).
type Model struct {
	// Weights is an 8x8 row-major matrix; Bias has 8 elements.
	Weights [8][8]float64 `yaml:"weights"`
	Bias    [8]float64    `yaml:"bias"`
}

// Artifact is the on-disk shape of a Model snapshot.
type Artifact struct {
	Weights [8][8]float64 `yaml:"weights"`
	Bias    [8]float64    `yaml:"bias"`
}

// LoadModel reads and parses a model snapshot from path. A missing or
// unparseable snapshot is startup-fatal per spec §7.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("autoencoder: read model %s: %w", path, err)
	}
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("autoencoder: parse model %s: %w", path, err)
	}
	return &Model{Weights: a.Weights, Bias: a.Bias}, nil
}

// Reconstruct runs the model's forward pass on x.
func (m *Model) Reconstruct(x [8]float64) [8]float64 {
	var out [8]float64
	for i := 0; i < 8; i++ {
		sum := m.Bias[i]
		for j := 0; j < 8; j++ {
			sum += m.Weights[i][j] * x[j]
		}
		out[i] = sum
	}
	return out
}

// RMSE computes sqrt(mean((a-b)^2)) over all 8 components, per spec §4.2.
func RMSE(a, b [8]float64) float64 {
	var sumSq float64
	for i := 0; i < 8; i++ {
		d := a[i] - b[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / 8)
}
