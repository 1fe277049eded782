// Package pipeline wires the detection stages into one supervised
// process, matching original_source/endpoint/dev/client_main.go's
// startup order (lymph node, then DCA, then collector) and the
// goroutine/WaitGroup shutdown shape the teacher's trace-agent Agent
// type uses for its own subsystem startup/stop sequencing.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/Neu-ron/Cygnet/internal/alert"
	"github.com/Neu-ron/Cygnet/internal/capture"
	"github.com/Neu-ron/Cygnet/internal/dca"
	"github.com/Neu-ron/Cygnet/internal/flowtable"
	"github.com/Neu-ron/Cygnet/internal/lymphnode"
	"github.com/Neu-ron/Cygnet/internal/queue"
	"github.com/Neu-ron/Cygnet/internal/shipper"
)

// Config holds the queue capacities and stage configuration an Agent
// is built from. Defaults match spec §5: 10,000 collector->DCA,
// 1,000 DCA->lymph node, and an unbounded alert queue.
type Config struct {
	CollectorToDCACapacity int
	DCAToLymphNodeCapacity int

	Scaler    capture.Scaler
	Extractor dca.SignalExtractor
	DCA       dca.Config
	LymphNode lymphnode.Config
	RNG       *rand.Rand

	// Reconnect enables the shipper's optional reconnect-with-backoff
	// policy (spec §7) for connection loss after the initial,
	// still-fatal dial/handshake.
	Reconnect bool
}

// DefaultConfig returns the spec-mandated queue capacities with the
// DCA/lymph-node defaults from their own packages.
func DefaultConfig() Config {
	return Config{
		CollectorToDCACapacity: 10_000,
		DCAToLymphNodeCapacity: 1_000,
		DCA:                    dca.DefaultConfig(),
		LymphNode:              lymphnode.DefaultConfig(),
	}
}

// Agent owns every stage of the core pipeline and the alert shipper.
// Inter-stage communication is strictly by bounded channel value, per
// spec §4's ownership rule: no shared mutable state crosses a stage
// boundary.
type Agent struct {
	cfg       Config
	collector *capture.Collector
	dcaStage  *dca.Stage
	lymphNode *lymphnode.Node
	log       *zap.Logger
}

// NewAgent constructs the stage objects without starting any
// goroutines; Run does that.
func NewAgent(cfg Config, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	rng := cfg.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Agent{
		cfg:       cfg,
		collector: capture.New(cfg.Scaler, log),
		dcaStage:  dca.NewStage(cfg.DCA, cfg.Extractor, rng, log),
		lymphNode: lymphnode.New(cfg.LymphNode, log),
		log:       log,
	}
}

// Collector exposes the collector stage so a caller can inspect its
// flow table (e.g. for metrics or idle-flow eviction).
func (a *Agent) Collector() *capture.Collector { return a.collector }

// Run wires the stages together and drives them to completion: the
// packet source closes its emission channel (or ctx is cancelled),
// which cascades a channel-close shutdown down through DCA, the lymph
// node, and the alert queue to the shipper, exactly mirroring the
// source's None-sentinel shutdown chain with Go's native
// closed-channel idiom (spec §5).
//
// Run matches the source's "connect before starting the detection
// components" ordering: a failed dial/handshake is fatal and no stage
// goroutine is started.
func (a *Agent) Run(ctx context.Context, src capture.PacketSource, shipCfg shipper.Config) error {
	sh, err := shipper.Dial(ctx, shipCfg, a.log)
	if err != nil {
		return fmt.Errorf("pipeline: shipper dial failed: %w", err)
	}

	toDCA := make(chan flowtable.Emission, a.cfg.CollectorToDCACapacity)
	toLymph := make(chan dca.Output, a.cfg.DCAToLymphNodeCapacity)
	alertQueue := queue.NewUnbounded[alert.Alert]()

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		a.lymphNode.Run(ctx, toLymph, alertQueue.In)
	}()
	go func() {
		defer wg.Done()
		a.dcaStage.Run(ctx, toDCA, toLymph)
	}()
	go func() {
		defer wg.Done()
		a.collector.Run(ctx, src, toDCA)
	}()

	var shipErr error
	go func() {
		defer wg.Done()
		if a.cfg.Reconnect {
			shipper.RunReconnecting(ctx, sh, shipCfg, alertQueue.Out, a.log)
			return
		}
		shipErr = sh.Run(ctx, alertQueue.Out)
	}()

	wg.Wait()
	if shipErr != nil && ctx.Err() == nil {
		return fmt.Errorf("pipeline: shipper exited: %w", shipErr)
	}
	return nil
}
