package neat

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Reproduction builds the next generation from the current species.
type Reproduction struct {
	Config      *ReproductionConfig
	ElitismProp float64
	Mode        TopologyMode
	Selector    Selector
	Rand        *rand.Rand
	logger      *slog.Logger
}

// NewReproduction creates a reproduction manager drawing from the run's random source.
func NewReproduction(config *Config, lineage *Lineage, logger *slog.Logger) *Reproduction {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reproduction{
		Config:      &config.Reproduction,
		ElitismProp: config.Neat.ElitismProp,
		Mode:        config.Genome.Mode(),
		Selector:    NewRankSelection(config.Reproduction.MaxSelectionCycles),
		Rand:        lineage.Rand,
		logger:      logger,
	}
}

// Reproduce returns exactly popSize genomes for the next generation.
//
// Each species receives a quota proportional to its mean fitness. The best
// round(ElitismProp*quota) members (at least one) are copied unchanged; the
// rest of the quota is filled with mutated crossover children of parents
// picked by the Selector.
func (r *Reproduction) Reproduce(species [][]*Genome, popSize int) ([]*Genome, error) {
	means := SpeciesMeanFitness(species)
	sizes := make([]int, len(species))
	for i, members := range species {
		sizes[i] = len(members)
	}

	quotas, err := ComputeQuotas(means, sizes, popSize)
	if err != nil {
		return nil, fmt.Errorf("failed to compute species quotas: %w", err)
	}

	next := make([]*Genome, 0, popSize)
	for i, members := range species {
		quota := quotas[i]
		if quota == 0 {
			continue
		}

		// Sort members by ascending fitness: selection expects that order and
		// the elites sit at the end.
		ranked := append([]*Genome(nil), members...)
		sort.SliceStable(ranked, func(a, b int) bool {
			return ranked[a].Fitness < ranked[b].Fitness
		})
		fitnesses := make([]float64, len(ranked))
		for j, g := range ranked {
			fitnesses[j] = g.Fitness
		}

		numElite := EliteCount(r.ElitismProp, quota, len(ranked))
		for e := 0; e < numElite; e++ {
			next = append(next, ranked[len(ranked)-1-e].Copy())
		}

		for n := numElite; n < quota; n++ {
			child, err := r.offspring(ranked, fitnesses)
			if err != nil {
				return nil, fmt.Errorf("failed to breed species %d: %w", i, err)
			}
			next = append(next, child)
		}

		r.logger.Debug("species reproduced",
			slog.Int("species", i),
			slog.Int("members", len(members)),
			slog.Float64("mean_fitness", means[i]),
			slog.Int("quota", quota),
			slog.Int("elites", numElite))
	}

	if len(next) != popSize {
		return nil, fmt.Errorf("new population has %d genomes, want %d", len(next), popSize)
	}
	return next, nil
}

// offspring selects two parents, crosses them and mutates the child.
// A species with a single member is crossed with itself.
func (r *Reproduction) offspring(ranked []*Genome, fitnesses []float64) (*Genome, error) {
	a, b := 0, 0
	if len(ranked) > 1 {
		var err error
		a, b, err = r.Selector.Select(r.Rand, fitnesses)
		if err != nil {
			return nil, err
		}
	}
	child, err := Crossover(r.Rand, r.Mode, ranked[a], ranked[b], r.Config.DisableProb)
	if err != nil {
		return nil, err
	}
	child.Mutate()
	return child, nil
}

// SpeciesMeanFitness returns the mean member fitness of every species; empty
// species get zero.
func SpeciesMeanFitness(species [][]*Genome) []float64 {
	means := make([]float64, len(species))
	for i, members := range species {
		if len(members) == 0 {
			continue
		}
		fitnesses := make([]float64, len(members))
		for j, g := range members {
			fitnesses[j] = g.Fitness
		}
		means[i] = stat.Mean(fitnesses, nil)
	}
	return means
}

// ComputeQuotas apportions popSize offspring slots across species in
// proportion to their mean fitness.
//
// Each provisional quota is round(mean/total*popSize). Rounding drift is then
// corrected one slot at a time starting from species 0, wrapping around, and
// skipping species that cannot take the change (empty species never gain a
// slot, zero quotas never lose one). When the total mean fitness is zero,
// slots are apportioned by species size instead. A negative or non-finite
// total is rejected with ErrDegenerateFitness.
func ComputeQuotas(means []float64, sizes []int, popSize int) ([]int, error) {
	if len(means) != len(sizes) {
		return nil, fmt.Errorf("got %d species means for %d species", len(means), len(sizes))
	}

	totalSize := 0
	for _, s := range sizes {
		totalSize += s
	}
	if totalSize == 0 {
		return nil, ErrEmptyPopulation
	}

	total := 0.0
	for _, m := range means {
		total += m
	}
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: total mean fitness is %v", ErrDegenerateFitness, total)
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: total mean fitness %v is negative", ErrDegenerateFitness, total)
	}

	quotas := make([]int, len(means))
	sum := 0
	for i := range means {
		if sizes[i] == 0 {
			continue
		}
		var share float64
		if total == 0 {
			share = float64(sizes[i]) / float64(totalSize)
		} else {
			share = math.Max(means[i], 0) / total
		}
		quotas[i] = int(math.Round(share * float64(popSize)))
		sum += quotas[i]
	}

	delta := popSize - sum
	for i := 0; delta != 0; i = (i + 1) % len(quotas) {
		switch {
		case delta > 0 && sizes[i] > 0:
			quotas[i]++
			delta--
		case delta < 0 && quotas[i] > 0:
			quotas[i]--
			delta++
		}
	}
	return quotas, nil
}

// EliteCount returns how many of a species' members survive unchanged:
// round(prop*quota), raised to one for any non-zero quota and capped by both
// the quota and the member count.
func EliteCount(prop float64, quota, members int) int {
	if quota <= 0 || members <= 0 {
		return 0
	}
	n := int(math.Round(clamp(prop, 0, 1) * float64(quota)))
	if n < 1 {
		n = 1
	}
	return min(n, quota, members)
}
