package neat

import (
	"fmt"
	"math/rand"
)

// Selector picks two distinct parents out of a species.
type Selector interface {
	Name() string
	// Select returns two distinct indices into fitnesses, which must be sorted
	// in ascending order (the fittest candidate is last).
	Select(rng *rand.Rand, fitnesses []float64) (int, int, error)
}

// RankSelection is linear rank selection. The candidate at ascending
// position pos out of size is accepted on a single draw with probability
// (pos+1) * 2 / (size * (size+1)), so the fittest candidate is the most
// likely to be accepted on any one draw.
//
// Sampling sweeps positions 0..size-1 repeatedly, flipping one coin per
// position, until a candidate is accepted; the second parent is found the same
// way while skipping the first. MaxCycles bounds the number of sweeps per
// parent.
type RankSelection struct {
	MaxCycles int
}

// NewRankSelection creates a rank selector with the given sweep cap.
func NewRankSelection(maxCycles int) *RankSelection {
	return &RankSelection{MaxCycles: maxCycles}
}

func (*RankSelection) Name() string {
	return "rank"
}

// RankProbability returns the per-draw acceptance probability of the
// candidate at ascending position pos among size candidates.
func RankProbability(pos, size int) float64 {
	if size <= 0 || pos < 0 || pos >= size {
		return 0
	}
	return float64(pos+1) * 2 / float64(size*(size+1))
}

func (s *RankSelection) Select(rng *rand.Rand, fitnesses []float64) (int, int, error) {
	if rng == nil {
		return 0, 0, fmt.Errorf("random source is required")
	}
	size := len(fitnesses)
	if size < 2 {
		return 0, 0, fmt.Errorf("%w: rank selection over %d candidates", ErrInsufficientCandidates, size)
	}

	first, err := s.draw(rng, size, -1)
	if err != nil {
		return 0, 0, err
	}
	second, err := s.draw(rng, size, first)
	if err != nil {
		return 0, 0, err
	}
	return first, second, nil
}

// draw sweeps the ranks until one other than exclude is accepted.
func (s *RankSelection) draw(rng *rand.Rand, size, exclude int) (int, error) {
	maxCycles := s.MaxCycles
	if maxCycles <= 0 {
		maxCycles = 10000
	}
	for cycle := 0; cycle < maxCycles; cycle++ {
		for pos := 0; pos < size; pos++ {
			if pos == exclude {
				continue
			}
			if rng.Float64() < RankProbability(pos, size) {
				return pos, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: no candidate accepted after %d sweeps", ErrSelectionExhausted, maxCycles)
}
