package dca

import "math/rand"

// Population is a fixed-size set of dendritic cells, exclusively owned
// by the DCA stage.
type Population struct {
	cells []*Cell
}

// NewPopulation draws size cells with migration thresholds sampled
// uniformly from [migrationRange[0], migrationRange[1]), per spec §4.4.
func NewPopulation(size int, migrationRange [2]float64, maxAntigens int, w Weights, rng *rand.Rand) *Population {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	cells := make([]*Cell, size)
	span := migrationRange[1] - migrationRange[0]
	for i := range cells {
		mt := migrationRange[0] + rng.Float64()*span
		cells[i] = NewCell(mt, maxAntigens, w)
	}
	return &Population{cells: cells}
}

// Size reports the number of cells in the population.
func (p *Population) Size() int { return len(p.cells) }

// Cell returns the i'th cell (for tests/inspection).
func (p *Population) Cell(i int) *Cell { return p.cells[i] }

// Sample accepts an antigen at the cell indexed by startIndex % len;
// if that cell is full, it advances the index (mod population size)
// until a cell accepts or one full revolution has been tried.
//
// Spec §9 item 3: the source's sample_antigen loops indefinitely if
// every cell is full. This caps the search at one revolution and
// reports ok=false if no cell accepted, so the antigen is dropped
// instead of hanging the stage.
func (p *Population) Sample(startIndex int, antigen string) (index int, ok bool) {
	n := len(p.cells)
	for i := 0; i < n; i++ {
		idx := (startIndex + i) % n
		if p.cells[idx].Phagocytose(antigen) {
			return idx, true
		}
	}
	return -1, false
}

// ContextReset resets every cell in the population (signals,
// output_signals and antigen store), run at the end of every segment.
func (p *Population) ContextReset() {
	for _, c := range p.cells {
		c.Reset()
	}
}
