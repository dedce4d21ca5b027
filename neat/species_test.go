package neat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func speciesConfig(numSpecies int) *Config {
	cfg := DefaultConfig()
	cfg.Neat.PopSize = 8
	cfg.Neat.NumSpecies = numSpecies
	cfg.Genome = *testGenomeConfig(false)
	return cfg
}

// weightedGenomes returns count genomes whose every weight is set to w.
func weightedGenomes(cfg *GenomeConfig, lineage *Lineage, count int, w float64) []*Genome {
	out := make([]*Genome, count)
	for i := range out {
		g := NewGenome(cfg, lineage)
		for _, cg := range g.Genes {
			cg.Weight = w + 0.01*float64(i)
		}
		out[i] = g
	}
	return out
}

func TestFeatureMatrix(t *testing.T) {
	genes := []*ConnectionGene{
		NewConnectionGene(0, 0, 3, 0.5, true),
		NewConnectionGene(2, 1, 3, -1.5, false),
	}
	g, err := NewGenomeFromGenes(genes, 4, nil, testGenomeConfig(false), nil)
	require.NoError(t, err)
	empty, err := NewGenomeFromGenes(nil, 4, nil, testGenomeConfig(false), nil)
	require.NoError(t, err)

	m := FeatureMatrix([]*Genome{g, empty}, 3)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 0.5, m.At(0, 0))
	assert.Equal(t, 0.0, m.At(1, 0))
	assert.Equal(t, -1.5, m.At(2, 0), "disabled genes still count")
	assert.Equal(t, 0.0, m.At(0, 1))

	r, _ = FeatureMatrix([]*Genome{empty}, 0).Dims()
	assert.Equal(t, 1, r)
}

func TestSpeciate_SingleSpecies(t *testing.T) {
	cfg := speciesConfig(1)
	lineage := NewLineage(1)
	s, err := NewSpeciator(cfg, lineage)
	require.NoError(t, err)
	pop := weightedGenomes(&cfg.Genome, lineage, 4, 1)

	assignments, state, err := s.Speciate(pop, lineage.Innovations.Count(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0}, assignments)
	r, c := state.Centroids.Dims()
	assert.Equal(t, lineage.Innovations.Count(), r)
	assert.Equal(t, 1, c)
	assert.InDelta(t, 1.015, state.Centroids.At(0, 0), 1e-12)
}

func TestSpeciate_SplitsSeparatedGroups(t *testing.T) {
	cfg := speciesConfig(2)
	lineage := NewLineage(2)
	s, err := NewSpeciator(cfg, lineage)
	require.NoError(t, err)
	pop := append(weightedGenomes(&cfg.Genome, lineage, 4, -5), weightedGenomes(&cfg.Genome, lineage, 4, 5)...)

	assignments, state, err := s.Speciate(pop, lineage.Innovations.Count(), nil)
	require.NoError(t, err)
	for i := 1; i < 4; i++ {
		assert.Equal(t, assignments[0], assignments[i])
		assert.Equal(t, assignments[4], assignments[4+i])
	}
	assert.NotEqual(t, assignments[0], assignments[4])

	groups := GroupSpecies(pop, assignments, 2)
	assert.Len(t, groups[0], 4)
	assert.Len(t, groups[1], 4)

	// New innovations appear; the previous centroids are padded and reused.
	for _, g := range pop {
		g.mutateAddNode()
	}
	count := lineage.Innovations.Count()
	next, nextState, err := s.Speciate(pop, count, state)
	require.NoError(t, err)
	assert.Equal(t, assignments, next)
	r, _ := nextState.Centroids.Dims()
	assert.Equal(t, count, r)
}

func TestSpeciate_EmptyPopulation(t *testing.T) {
	cfg := speciesConfig(2)
	s, err := NewSpeciator(cfg, NewLineage(1))
	require.NoError(t, err)

	_, _, err = s.Speciate(nil, 0, nil)
	assert.ErrorIs(t, err, ErrEmptyPopulation)
}

func TestNewSpeciator_BadPolicy(t *testing.T) {
	cfg := speciesConfig(2)
	cfg.SpeciesSet.EmptyCluster = "drop"

	_, err := NewSpeciator(cfg, NewLineage(1))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGroupSpecies_KeepsEmptyGroups(t *testing.T) {
	lineage := NewLineage(1)
	pop := weightedGenomes(testGenomeConfig(false), lineage, 3, 0)

	groups := GroupSpecies(pop, []int{2, 0, 2}, 3)
	require.Len(t, groups, 3)
	assert.Equal(t, []*Genome{pop[1]}, groups[0])
	assert.Empty(t, groups[1])
	assert.Equal(t, []*Genome{pop[0], pop[2]}, groups[2])
}
