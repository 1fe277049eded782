// Package scaler applies the deterministic affine transform the
// training-side feature scaler produced, to the first six numerical
// components of a flow feature vector.
package scaler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Neu-ron/Cygnet/internal/flowtable"
)

const numericalFeatures = 6

// Param is one feature's (mean, scale) pair.
type Param struct {
	Mean  float64 `yaml:"mean"`
	Scale float64 `yaml:"scale"`
}

// Artifact is the persisted scaler: exactly six (mean, scale) pairs,
// one per numerical feature, in feature order.
type Artifact struct {
	Params []Param `yaml:"params"`
}

// Scaler transforms feature vectors using a loaded Artifact.
type Scaler struct {
	params [numericalFeatures]Param
}

// Load reads and validates a scaler artifact from path. A missing file
// or an artifact with the wrong arity is startup-fatal per spec §4.1.
func Load(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scaler: read artifact %s: %w", path, err)
	}
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("scaler: parse artifact %s: %w", path, err)
	}
	return FromArtifact(a)
}

// FromArtifact validates an already-parsed artifact and builds a Scaler.
func FromArtifact(a Artifact) (*Scaler, error) {
	if len(a.Params) != numericalFeatures {
		return nil, fmt.Errorf("scaler: expected %d params, got %d", numericalFeatures, len(a.Params))
	}
	s := &Scaler{}
	copy(s.params[:], a.Params)
	return s, nil
}

// Transform applies (x[i]-mean[i])/scale[i] to the first six
// components of v and passes the last two through unchanged, per spec
// §4.1.
func (s *Scaler) Transform(v flowtable.FeatureVector) flowtable.FeatureVector {
	out := v
	for i := 0; i < numericalFeatures; i++ {
		out[i] = (v[i] - s.params[i].Mean) / s.params[i].Scale
	}
	return out
}

// InverseTransform undoes Transform on the first six components,
// used by the scaling round-trip property test (spec §8).
func (s *Scaler) InverseTransform(v flowtable.FeatureVector) flowtable.FeatureVector {
	out := v
	for i := 0; i < numericalFeatures; i++ {
		out[i] = v[i]*s.params[i].Scale + s.params[i].Mean
	}
	return out
}
