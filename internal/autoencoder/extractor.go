package autoencoder

import "github.com/Neu-ron/Cygnet/internal/flowtable"

// Signal is the (PAMP, SAFE) pair extracted for one feature vector.
// PAMP rises on anomalies (reconstruction error under the
// benign-trained model); SAFE rises on normal traffic (reconstruction
// error under the malicious-trained model).
type Signal [2]float64

// Extractor composes the benign/malicious model pair into the signal
// vector the DCA integrates. It is a pure function after construction:
// both models are loaded once, at stage start (spec §9 re-architecture
// note — the source's per-call lazy load was a bug).
type Extractor struct {
	benign    *Model
	malicious *Model
}

// NewExtractor builds an Extractor from already-loaded models.
func NewExtractor(benign, malicious *Model) *Extractor {
	return &Extractor{benign: benign, malicious: malicious}
}

// Extract returns (rmse(v, M_benign(v)), rmse(v, M_malicious(v))).
func (e *Extractor) Extract(v flowtable.FeatureVector) Signal {
	x := [8]float64(v)
	pamp := RMSE(x, e.benign.Reconstruct(x))
	safe := RMSE(x, e.malicious.Reconstruct(x))
	return Signal{pamp, safe}
}
