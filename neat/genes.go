package neat

import (
	"fmt"
	"math"
	"math/rand"
)

// ConnectionGene represents a directed connection between two nodes.
// The innovation ID, source and target never change after creation; two
// genes sharing an innovation ID in different genomes are the same
// historical mutation and are aligned on it by crossover and speciation.
type ConnectionGene struct {
	innovationID int
	source       int
	target       int

	Weight  float64
	Enabled bool
}

// NewConnectionGene creates a gene with the given identity.
func NewConnectionGene(innovationID, source, target int, weight float64, enabled bool) *ConnectionGene {
	return &ConnectionGene{
		innovationID: innovationID,
		source:       source,
		target:       target,
		Weight:       weight,
		Enabled:      enabled,
	}
}

// InnovationID returns the historical marking of the gene.
func (cg *ConnectionGene) InnovationID() int { return cg.innovationID }

// Source returns the node the connection leaves.
func (cg *ConnectionGene) Source() int { return cg.source }

// Target returns the node the connection enters.
func (cg *ConnectionGene) Target() int { return cg.target }

// String returns a string representation of the ConnectionGene.
func (cg *ConnectionGene) String() string {
	return fmt.Sprintf("ConnGene(Innov: %d, %d->%d, Weight: %.3f, Enabled: %t)",
		cg.innovationID, cg.source, cg.target, cg.Weight, cg.Enabled)
}

// Copy creates a deep copy of the ConnectionGene.
func (cg *ConnectionGene) Copy() *ConnectionGene {
	c := *cg
	return &c
}

// Equal reports whether both genes carry the same identity and state.
func (cg *ConnectionGene) Equal(other *ConnectionGene) bool {
	return *cg == *other
}

// --------------------------- Attribute Helpers ---------------------------

// initWeight draws a fresh connection weight.
func initWeight(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}

// mutateWeight perturbs value with gaussian noise of the given size when the
// rate roll succeeds.
func mutateWeight(rng *rand.Rand, value, rate, size float64) float64 {
	if rate > 0 && rng.Float64() < rate {
		return value + rng.NormFloat64()*size
	}
	return value
}

// clamp restricts a value to a given range [minVal, maxVal].
func clamp(value, minVal, maxVal float64) float64 {
	return math.Max(minVal, math.Min(value, maxVal))
}
