package dca

import (
	"context"
	"math/rand"

	"go.uber.org/zap"

	"github.com/Neu-ron/Cygnet/internal/autoencoder"
	"github.com/Neu-ron/Cygnet/internal/flowtable"
)

// SignalExtractor is the subset of internal/autoencoder.Extractor the
// DCA stage depends on.
type SignalExtractor interface {
	Extract(flowtable.FeatureVector) autoencoder.Signal
}

// Config holds the population-initialization and segmenting
// parameters, matching the defaults named in spec §4.4.
type Config struct {
	PopulationSize int
	MigrationRange [2]float64
	MaxAntigens    int
	Weights        Weights
	SegmentSize    int
}

// DefaultConfig returns the spec's default DCA configuration.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 5,
		MigrationRange: [2]float64{5, 15},
		MaxAntigens:    5,
		Weights:        DefaultWeights,
		SegmentSize:    20,
	}
}

// Stage runs the outer segment loop over the input stream, sampling
// antigens into the population, integrating signals on the sampling
// cell only, and emitting migrations.
type Stage struct {
	cfg        Config
	population *Population
	extractor  SignalExtractor
	log        *zap.Logger

	antigenCount int

	dropped int
}

// NewStage constructs a DCA stage. rng may be nil to use a default
// source; pass a seeded *rand.Rand for deterministic tests.
func NewStage(cfg Config, extractor SignalExtractor, rng *rand.Rand, log *zap.Logger) *Stage {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stage{
		cfg:        cfg,
		population: NewPopulation(cfg.PopulationSize, cfg.MigrationRange, cfg.MaxAntigens, cfg.Weights, rng),
		extractor:  extractor,
		log:        log,
	}
}

// Population exposes the underlying population for tests/inspection.
func (s *Stage) Population() *Population { return s.population }

// Dropped reports how many antigens were dropped because no cell
// accepted them within one population revolution (spec §9 item 3).
func (s *Stage) Dropped() int { return s.dropped }

// Run consumes in until ctx is cancelled or in closes, emitting
// migrations on out. out is closed on return, forwarding the
// end-of-stream sentinel to the lymph node per spec §5.
func (s *Stage) Run(ctx context.Context, in <-chan flowtable.Emission, out chan<- Output) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-in:
			if !ok {
				return
			}
			s.ingest(e, out, ctx)
		}
	}
}

// ingest implements one iteration of the spec §4.4 outer loop: sample,
// per-cell signal update, optional migration, segment-boundary reset.
func (s *Stage) ingest(e flowtable.Emission, out chan<- Output, ctx context.Context) {
	signal := s.extractor.Extract(e.Vector)

	startIndex := s.antigenCount % s.population.Size()
	idx, ok := s.population.Sample(startIndex, e.AntigenID)
	if !ok {
		s.dropped++
		s.log.Debug("antigen dropped: population full for one revolution", zap.String("antigen", e.AntigenID))
	} else {
		cell := s.population.Cell(idx)
		cell.SignalUpdate(signal)
		if cell.ShouldMigrate() {
			output := cell.Present()
			select {
			case out <- output:
			case <-ctx.Done():
				return
			}
			cell.Reset()
		}
	}

	s.antigenCount++
	if s.antigenCount >= s.cfg.SegmentSize {
		s.population.ContextReset()
		s.antigenCount = 0
	}
}
