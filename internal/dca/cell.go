// Package dca implements the dendritic-cell population: antigen
// sampling, per-cell signal integration, migration, and the periodic
// segment reset described in spec §4.4.
package dca

// Weights is the fixed 2x2 matrix applied to a cell's accumulated
// signals to produce its output signals, per spec §3
// (output_signals = weights . signals).
type Weights struct {
	CSM [2]float64
	K   [2]float64
}

// DefaultWeights matches the source's csm_weights=[2,2], k_weights=[2,-2].
var DefaultWeights = Weights{CSM: [2]float64{2, 2}, K: [2]float64{2, -2}}

// Output is a migration event: a cell's context/costimulation verdict
// together with the antigens it had sampled at migration time. Created
// by Cell.Present, consumed exactly once by the lymph node.
//
// Spec §9 item 2 notes the source stored method *references* for K and
// Csm rather than their values, which was almost certainly a bug; in
// Go, K and Csm are plain float64 fields snapshotted at Present time,
// so the bug cannot occur.
type Output struct {
	K         float64
	Csm       float64
	Antigens  []string
}

// Cell is one dendritic cell: it samples antigens up to MaxAntigens,
// accumulates a 2-element signal vector, and migrates (emitting an
// Output and resetting) once its costimulation meets its migration
// threshold.
type Cell struct {
	MigrationThreshold float64
	MaxAntigens        int
	Weights            Weights

	antigens []string
	signals  [2]float64
	output   [2]float64 // (csm, k)
}

// NewCell constructs a cell with the given migration threshold, sample
// capacity and weights. The antigen store starts empty.
func NewCell(migrationThreshold float64, maxAntigens int, w Weights) *Cell {
	return &Cell{MigrationThreshold: migrationThreshold, MaxAntigens: maxAntigens, Weights: w}
}

// Phagocytose attempts to add antigen to the cell's store, returning
// true iff there was room (per spec: |antigen_store| <= max_antigens).
func (c *Cell) Phagocytose(antigen string) bool {
	if len(c.antigens) >= c.MaxAntigens {
		return false
	}
	c.antigens = append(c.antigens, antigen)
	return true
}

// SignalUpdate accumulates signal into the cell's running total and
// recomputes its output signals (csm, k) = weights . signals.
func (c *Cell) SignalUpdate(signal [2]float64) {
	c.signals[0] += signal[0]
	c.signals[1] += signal[1]
	c.output[0] = c.Weights.CSM[0]*c.signals[0] + c.Weights.CSM[1]*c.signals[1]
	c.output[1] = c.Weights.K[0]*c.signals[0] + c.Weights.K[1]*c.signals[1]
}

// Csm returns the cell's current costimulation level.
func (c *Cell) Csm() float64 { return c.output[0] }

// K returns the cell's current context value.
func (c *Cell) K() float64 { return c.output[1] }

// Signals exposes the cell's accumulated signal vector, for the
// output_signals == weights.signals invariant test (spec §8, invariant 2).
func (c *Cell) Signals() [2]float64 { return c.signals }

// OutputSignals exposes the cell's (csm, k) pair.
func (c *Cell) OutputSignals() [2]float64 { return c.output }

// ShouldMigrate reports whether the cell has met its migration
// threshold: csm >= migration_threshold.
func (c *Cell) ShouldMigrate() bool { return c.Csm() >= c.MigrationThreshold }

// Present snapshots the cell's current verdict and antigen store into
// an Output. It does not reset the cell.
func (c *Cell) Present() Output {
	antigens := make([]string, len(c.antigens))
	copy(antigens, c.antigens)
	return Output{K: c.K(), Csm: c.Csm(), Antigens: antigens}
}

// Reset zeroes the cell's signals and output, and clears its antigen
// store. Calling Reset twice in a row leaves state unchanged
// (idempotence property, spec §8).
func (c *Cell) Reset() {
	c.signals = [2]float64{}
	c.output = [2]float64{}
	c.antigens = nil
}
