package neat

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// GenerationStats summarizes one evaluated generation.
type GenerationStats struct {
	Generation     int
	BestFitness    float64
	MeanFitness    float64
	StdevFitness   float64
	SpeciesSizes   []int
	SpeciesMeans   []float64
	NumInnovations int
}

// NewGenerationStats computes the summary of an evaluated population split
// into species.
func NewGenerationStats(generation int, species [][]*Genome, numInnovations int) GenerationStats {
	gs := GenerationStats{
		Generation:     generation,
		BestFitness:    math.Inf(-1),
		SpeciesSizes:   make([]int, len(species)),
		SpeciesMeans:   SpeciesMeanFitness(species),
		NumInnovations: numInnovations,
	}

	var fitnesses []float64
	for i, members := range species {
		gs.SpeciesSizes[i] = len(members)
		for _, g := range members {
			fitnesses = append(fitnesses, g.Fitness)
			gs.BestFitness = math.Max(gs.BestFitness, g.Fitness)
		}
	}
	if len(fitnesses) > 0 {
		gs.MeanFitness = stat.Mean(fitnesses, nil)
	}
	if len(fitnesses) > 1 {
		gs.StdevFitness = stat.StdDev(fitnesses, nil)
	}
	return gs
}

// NonEmptySpecies returns how many species had at least one member.
func (gs GenerationStats) NonEmptySpecies() int {
	n := 0
	for _, s := range gs.SpeciesSizes {
		if s > 0 {
			n++
		}
	}
	return n
}

// History is the ordered record of generation summaries for a run.
type History []GenerationStats

// BestFitness returns the highest best-of-generation fitness seen, or -Inf
// for an empty history.
func (h History) BestFitness() float64 {
	best := math.Inf(-1)
	for _, gs := range h {
		best = math.Max(best, gs.BestFitness)
	}
	return best
}

// LastImproved returns the generation in which the best fitness last rose,
// or -1 for an empty history.
func (h History) LastImproved() int {
	last := -1
	best := math.Inf(-1)
	for _, gs := range h {
		if gs.BestFitness > best {
			best = gs.BestFitness
			last = gs.Generation
		}
	}
	return last
}
