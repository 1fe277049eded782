// Package lymphnode consumes DCA migrations, maintains per-antigen
// mature-context-antigen-value (MCAV) profiles, and raises alerts.
package lymphnode

import (
	"context"

	"go.uber.org/zap"

	"github.com/Neu-ron/Cygnet/internal/alert"
	"github.com/Neu-ron/Cygnet/internal/dca"
)

// Profile tracks one antigen's presentation history.
type Profile struct {
	MaturePresentations int
	TotalPresentations  int
}

// Presented records one presentation of the antigen, incrementing
// TotalPresentations and, iff context==1, MaturePresentations.
func (p *Profile) Presented(context int) {
	if context == 1 {
		p.MaturePresentations++
	}
	p.TotalPresentations++
}

// MCAV computes mature/(total+1): the Laplace-smoothed
// mature-context-antigen-value, per spec §3.
func (p *Profile) MCAV() float64 {
	return float64(p.MaturePresentations) / float64(p.TotalPresentations+1)
}

// Config holds the lymph node's anomaly threshold.
type Config struct {
	AnomalyThreshold float64
}

// DefaultConfig matches the spec's default anomaly_threshold of 0.65.
func DefaultConfig() Config {
	return Config{AnomalyThreshold: 0.65}
}

// Node is the lymph node: it exclusively owns the antigen-profile
// table and the alert queue it feeds.
type Node struct {
	cfg      Config
	profiles map[string]*Profile
	log      *zap.Logger
}

// New constructs an empty lymph node.
func New(cfg Config, log *zap.Logger) *Node {
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{cfg: cfg, profiles: make(map[string]*Profile), log: log}
}

// Profile returns the profile for an antigen id, for tests/inspection.
func (n *Node) Profile(antigenID string) (Profile, bool) {
	p, ok := n.profiles[antigenID]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// HandleMigration applies one DCOutput: context = 1 if k>1 else 0 (spec
// §4.5); every sampled antigen's profile is upserted and re-scored, and
// any antigen whose MCAV now exceeds the anomaly threshold is pushed
// onto out. An antigen may alert repeatedly across migrations -- there
// is no suppression/rate-limiting in the core, per spec §4.5.
func (n *Node) HandleMigration(ctx context.Context, output dca.Output, out chan<- alert.Alert) {
	context := 0
	if output.K > 1 {
		context = 1
	}
	for _, antigenID := range output.Antigens {
		p, ok := n.profiles[antigenID]
		if !ok {
			p = &Profile{}
			n.profiles[antigenID] = p
		}
		p.Presented(context)
		if p.MCAV() > n.cfg.AnomalyThreshold {
			a, err := alert.FromKey(antigenID)
			if err != nil {
				n.log.Debug("alert: could not parse antigen key", zap.String("antigen", antigenID), zap.Error(err))
				continue
			}
			select {
			case out <- a:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Run consumes migrations from in until ctx is cancelled or in closes,
// pushing alerts onto out. out is closed on return, forwarding the
// end-of-stream sentinel to the shipper per spec §5.
func (n *Node) Run(ctx context.Context, in <-chan dca.Output, out chan<- alert.Alert) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case output, ok := <-in:
			if !ok {
				return
			}
			n.HandleMigration(ctx, output, out)
		}
	}
}
