package autoencoder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Neu-ron/Cygnet/internal/flowtable"
)

// zeroModel always reconstructs the zero vector, so RMSE(v, 0) is
// exactly the RMS of v itself -- useful for hand-checking expected
// signal values in tests.
func zeroModel() *Model { return &Model{} }

func TestExtract(t *testing.T) {
	e := NewExtractor(zeroModel(), zeroModel())
	v := flowtable.FeatureVector{2, 2, 2, 2, 2, 2, 2, 2}
	sig := e.Extract(v)
	// rmse of an all-2s vector against all-zeros is 2.
	assert.InDelta(t, 2.0, sig[0], 1e-9)
	assert.InDelta(t, 2.0, sig[1], 1e-9)
}

func TestExtract_DifferentModelsDiverge(t *testing.T) {
	benign := identityModel()
	malicious := zeroModel()
	e := NewExtractor(benign, malicious)
	v := flowtable.FeatureVector{1, 1, 1, 1, 1, 1, 1, 1}
	sig := e.Extract(v)
	assert.InDelta(t, 0.0, sig[0], 1e-9, "benign model reconstructs identity exactly")
	assert.InDelta(t, 1.0, sig[1], 1e-9, "malicious (zero) model leaves full residual")
}
