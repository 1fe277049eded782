package dca

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neu-ron/Cygnet/internal/autoencoder"
	"github.com/Neu-ron/Cygnet/internal/flowtable"
)

// constantExtractor always returns the same signal, regardless of input.
type constantExtractor struct{ signal autoencoder.Signal }

func (c constantExtractor) Extract(flowtable.FeatureVector) autoencoder.Signal { return c.signal }

func runStage(t *testing.T, cfg Config, extractor SignalExtractor, emissions []flowtable.Emission) []Output {
	t.Helper()
	stage := NewStage(cfg, extractor, rand.New(rand.NewSource(7)), nil)

	in := make(chan flowtable.Emission, len(emissions))
	for _, e := range emissions {
		in <- e
	}
	close(in)

	out := make(chan Output, len(emissions))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stage.Run(ctx, in, out)

	var outputs []Output
	for o := range out {
		outputs = append(outputs, o)
	}
	return outputs
}

func TestStage_MigratesOnThreshold(t *testing.T) {
	cfg := Config{PopulationSize: 1, MigrationRange: [2]float64{5, 5}, MaxAntigens: 10, Weights: DefaultWeights, SegmentSize: 20}
	emissions := []flowtable.Emission{{AntigenID: "A"}}
	outputs := runStage(t, cfg, constantExtractor{signal: autoencoder.Signal{1.5, 1.5}}, emissions)

	require.Len(t, outputs, 1)
	assert.Equal(t, []string{"A"}, outputs[0].Antigens)
	assert.InDelta(t, 6.0, outputs[0].Csm, 1e-9)
}

func TestStage_SegmentResetClearsAccumulationWithoutMigration(t *testing.T) {
	// threshold high enough that no single antigen triggers migration,
	// but a second segment starts from zero again (if reset did not
	// happen, accumulated signal across segments would eventually migrate).
	cfg := Config{PopulationSize: 1, MigrationRange: [2]float64{100, 100}, MaxAntigens: 2, Weights: DefaultWeights, SegmentSize: 2}
	emissions := []flowtable.Emission{
		{AntigenID: "A"}, {AntigenID: "B"}, // segment 1, cell fills at max_antigens=2
		{AntigenID: "C"}, {AntigenID: "D"}, // segment 2 starts fresh -- store was cleared
	}
	stage := NewStage(cfg, constantExtractor{signal: autoencoder.Signal{1, 1}}, rand.New(rand.NewSource(1)), nil)
	in := make(chan flowtable.Emission, len(emissions))
	for _, e := range emissions {
		in <- e
	}
	close(in)
	out := make(chan Output, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stage.Run(ctx, in, out)

	// no migrations (threshold never reached), and the cell accepted C
	// and D after the segment reset cleared its 2-antigen store.
	assert.Equal(t, 0, stage.Dropped())
}

// TestStage_DropsWhenPopulationFullWithinSegment exercises spec §9 item
// 3 end-to-end: with a tiny population/capacity and a segment larger
// than total capacity, excess antigens are dropped, not hung.
func TestStage_DropsWhenPopulationFullWithinSegment(t *testing.T) {
	cfg := Config{PopulationSize: 1, MigrationRange: [2]float64{1000, 1000}, MaxAntigens: 1, Weights: DefaultWeights, SegmentSize: 100}
	emissions := []flowtable.Emission{{AntigenID: "A"}, {AntigenID: "B"}, {AntigenID: "C"}}
	stage := NewStage(cfg, constantExtractor{signal: autoencoder.Signal{0.01, 0.01}}, rand.New(rand.NewSource(1)), nil)
	in := make(chan flowtable.Emission, len(emissions))
	for _, e := range emissions {
		in <- e
	}
	close(in)
	out := make(chan Output, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stage.Run(ctx, in, out)

	assert.Equal(t, 2, stage.Dropped())
}

// TestStage_SamplingRestartsFromAntigenCountModP pins spec §4.4 step 3:
// the search for a cell restarts at antigen_count mod P for every
// antigen, not from wherever the previous antigen actually landed.
// Cell 0 is pre-filled to capacity so the first antigen must skip it;
// a stage that instead carried the accepted index forward would start
// the next search one cell further along than the spec requires.
func TestStage_SamplingRestartsFromAntigenCountModP(t *testing.T) {
	cfg := Config{PopulationSize: 3, MigrationRange: [2]float64{1000, 1000}, MaxAntigens: 2, Weights: DefaultWeights, SegmentSize: 100}
	stage := NewStage(cfg, constantExtractor{signal: autoencoder.Signal{0, 0}}, rand.New(rand.NewSource(1)), nil)

	pop := stage.Population()
	require.True(t, pop.Cell(0).Phagocytose("seed-1"))
	require.True(t, pop.Cell(0).Phagocytose("seed-2"))

	emissions := []flowtable.Emission{{AntigenID: "A"}, {AntigenID: "B"}}
	in := make(chan flowtable.Emission, len(emissions))
	for _, e := range emissions {
		in <- e
	}
	close(in)
	out := make(chan Output, len(emissions))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stage.Run(ctx, in, out)

	// "A" (antigen_count=0) skips full cell 0 and lands on cell 1.
	// "B" (antigen_count=1) must start its own search at index 1 -- the
	// cell "A" landed on -- not at index 2 (one past wherever "A" was
	// actually accepted).
	assert.ElementsMatch(t, []string{"A", "B"}, pop.Cell(1).Present().Antigens)
	assert.Empty(t, pop.Cell(2).Present().Antigens)
}

func TestStage_ClosesOutputOnInputClose(t *testing.T) {
	cfg := DefaultConfig()
	in := make(chan flowtable.Emission)
	close(in)
	out := make(chan Output)
	stage := NewStage(cfg, constantExtractor{}, nil, nil)
	done := make(chan struct{})
	go func() {
		stage.Run(context.Background(), in, out)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after input closed")
	}
	_, ok := <-out
	assert.False(t, ok, "output channel must be closed once input is drained")
}
