package neat

import (
	"fmt"
	"math"
	"math/rand"
)

// TopologyMode tags how a genome's connections are constrained. It selects
// which crossover algorithm applies.
type TopologyMode int

const (
	// Cyclic genomes may contain recurrent connections.
	Cyclic TopologyMode = iota
	// Acyclic genomes keep a node depth table and never form cycles.
	Acyclic
)

func (m TopologyMode) String() string {
	switch m {
	case Cyclic:
		return "cyclic"
	case Acyclic:
		return "acyclic"
	default:
		return fmt.Sprintf("TopologyMode(%d)", int(m))
	}
}

// fitnessTieTolerance is the distance below which two fitnesses count as tied.
const fitnessTieTolerance = 0.001

// FitnessTied reports whether two fitness values are treated as equal.
func FitnessTied(a, b float64) bool {
	return math.Abs(a-b) < fitnessTieTolerance
}

// Crossover produces one child from two parents.
//
// Untied parents, and any pair in acyclic mode, go through dominant-parent
// crossover. Tied parents in cyclic mode are merged gene by gene.
func Crossover(rng *rand.Rand, mode TopologyMode, a, b *Genome, disableProb float64) (*Genome, error) {
	tied := FitnessTied(a.Fitness, b.Fitness)
	if !tied || mode == Acyclic {
		return dominantCrossover(rng, a, b, tied, disableProb)
	}
	return mergeCrossover(rng, a, b)
}

// dominantCrossover seeds the child with the fitter parent's genes (a coin
// flip picks when tied). Matching genes from the other parent may donate
// their weight and re-roll the enabled flag. Genes only the weaker parent
// carries are dropped.
func dominantCrossover(rng *rand.Rand, a, b *Genome, tied bool, disableProb float64) (*Genome, error) {
	base, other := a, b
	if tied {
		if rng.Float64() >= 0.5 {
			base, other = b, a
		}
	} else if b.Fitness > a.Fitness {
		base, other = b, a
	}

	genes := make([]*ConnectionGene, len(base.Genes))
	index := make(map[int]int, len(base.Genes))
	for i, cg := range base.Genes {
		genes[i] = cg.Copy()
		index[cg.innovationID] = i
	}

	for _, donor := range other.Genes {
		i, ok := index[donor.innovationID]
		if !ok {
			continue
		}
		child := genes[i]
		if !child.Enabled || !donor.Enabled {
			child.Enabled = rng.Float64() >= disableProb
		}
		if rng.Float64() < 0.5 {
			child.Weight = donor.Weight
		}
	}

	return NewGenomeFromGenes(genes, base.nodeCount, base.depths, base.config, base.lineage)
}

// mergeCrossover walks both parents' sorted gene lists in step. Matching
// genes come from a random parent; every unmatched gene, on either side,
// is kept with probability one half.
func mergeCrossover(rng *rand.Rand, a, b *Genome) (*Genome, error) {
	maxG, minG := a, b
	if len(b.Genes) > len(a.Genes) {
		maxG, minG = b, a
	}

	genes := make([]*ConnectionGene, 0, len(maxG.Genes))
	i, j := 0, 0
	for j < len(minG.Genes) && i < len(maxG.Genes) {
		gi, gj := maxG.Genes[i], minG.Genes[j]
		switch {
		case gj.innovationID < gi.innovationID:
			if rng.Float64() < 0.5 {
				genes = append(genes, gj.Copy())
			}
			j++
		case gj.innovationID == gi.innovationID:
			if rng.Float64() < 0.5 {
				genes = append(genes, gj.Copy())
			} else {
				genes = append(genes, gi.Copy())
			}
			i++
			j++
		default:
			if rng.Float64() < 0.5 {
				genes = append(genes, gi.Copy())
			}
			i++
		}
	}
	for ; j < len(minG.Genes); j++ {
		if rng.Float64() < 0.5 {
			genes = append(genes, minG.Genes[j].Copy())
		}
	}
	for ; i < len(maxG.Genes); i++ {
		if rng.Float64() < 0.5 {
			genes = append(genes, maxG.Genes[i].Copy())
		}
	}

	nodeCount := a.nodeCount
	if b.nodeCount > nodeCount {
		nodeCount = b.nodeCount
	}
	return NewGenomeFromGenes(genes, nodeCount, nil, a.config, a.lineage)
}
