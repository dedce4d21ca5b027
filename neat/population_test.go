package neat

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populationConfig() *Config {
	cfg := DefaultConfig()
	cfg.Neat.PopSize = 10
	cfg.Neat.MaxGenerations = 3
	cfg.Neat.NumSpecies = 1
	cfg.Neat.ElitismProp = 0.1
	cfg.Neat.Seed = 13
	cfg.Genome = *testGenomeConfig(false)
	return cfg
}

var nodeCountTask = TaskFunc(func(g *Genome) float64 { return float64(g.NodeCount()) })

func TestNewPopulation_Errors(t *testing.T) {
	_, err := NewPopulation(nil, nodeCountTask)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPopulation(populationConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	bad := populationConfig()
	bad.Neat.NumSpecies = 11
	_, err = NewPopulation(bad, nodeCountTask)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPopulation_RunGenerationRequiresInitialize(t *testing.T) {
	p, err := NewPopulation(populationConfig(), nodeCountTask, WithLogger(discardLogger()))
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, p.State())

	err = p.RunGeneration(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestPopulation_Initialize(t *testing.T) {
	cfg := populationConfig()
	cfg.Neat.NumSpecies = 3
	p, err := NewPopulation(cfg, nodeCountTask, WithLogger(discardLogger()))
	require.NoError(t, err)

	require.NoError(t, p.Initialize())
	assert.Equal(t, StateInitialized, p.State())
	assert.Len(t, p.Genomes, 10)
	assert.Len(t, p.Assignments(), 10)
	assert.NotEmpty(t, p.RunID)
	assert.Equal(t, 3, p.Lineage().Innovations.Count())
	for _, a := range p.Assignments() {
		assert.True(t, a >= 0 && a < 3)
	}
}

func TestPopulation_TrainWithoutMutation(t *testing.T) {
	p, err := NewPopulation(populationConfig(), nodeCountTask, WithLogger(discardLogger()))
	require.NoError(t, err)

	best, err := p.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, best.NodeCount())
	assert.Equal(t, 4.0, best.Fitness)
	assert.Equal(t, StateTerminated, p.State())
	assert.Equal(t, 3, p.Generation)
	assert.Len(t, p.History(), 3)

	err = p.RunGeneration(context.Background())
	assert.Error(t, err)
}

func TestPopulation_TrainGrowsTopology(t *testing.T) {
	cfg := populationConfig()
	cfg.Genome.NodeAdditionProb = 1
	p, err := NewPopulation(cfg, nodeCountTask, WithLogger(discardLogger()))
	require.NoError(t, err)

	require.NoError(t, p.Initialize())
	for gen := 0; gen < cfg.Neat.MaxGenerations; gen++ {
		require.NoError(t, p.RunGeneration(context.Background()))
		assert.Len(t, p.Genomes, cfg.Neat.PopSize)
		count := p.Lineage().Innovations.Count()
		for _, g := range p.Genomes {
			assertSortedUnique(t, g)
			for _, cg := range g.Genes {
				assert.Less(t, cg.InnovationID(), count)
			}
		}
	}

	best := p.Best()
	assert.Equal(t, 6, best.NodeCount())
	assert.Equal(t, 6.0, best.Fitness)

	history := p.History()
	require.Len(t, history, 3)
	assert.Equal(t, []float64{4, 5, 6}, []float64{history[0].BestFitness, history[1].BestFitness, history[2].BestFitness})
	assert.Equal(t, 3, history.LastImproved())
}

func TestPopulation_AcyclicMultiSpecies(t *testing.T) {
	cfg := populationConfig()
	cfg.Neat.PopSize = 30
	cfg.Neat.NumSpecies = 3
	cfg.Neat.MaxGenerations = 5
	cfg.Genome = *testGenomeConfig(true)
	cfg.Genome.WeightMutationProb = 0.8
	cfg.Genome.WeightMutationSize = 0.5
	cfg.Genome.NodeAdditionProb = 0.3
	cfg.Genome.ConnAdditionProb = 0.5
	task := TaskFunc(func(g *Genome) float64 { return float64(len(g.Genes)) })
	p, err := NewPopulation(cfg, task, WithLogger(discardLogger()))
	require.NoError(t, err)

	best, err := p.Train(context.Background())
	require.NoError(t, err)
	require.NotNil(t, best)
	for _, g := range p.Genomes {
		depths := g.Depths()
		require.Len(t, depths, g.NodeCount())
		for _, cg := range g.Genes {
			assert.Less(t, depths[cg.Source()], depths[cg.Target()])
		}
	}
	for _, gs := range p.History() {
		total := 0
		for _, s := range gs.SpeciesSizes {
			total += s
		}
		assert.Equal(t, cfg.Neat.PopSize, total)
	}
}

func TestPopulation_ParallelEvaluation(t *testing.T) {
	cfg := populationConfig()
	cfg.Neat.EvalWorkers = 4
	var calls atomic.Int64
	task := TaskFunc(func(g *Genome) float64 {
		calls.Add(1)
		return float64(g.NodeCount())
	})
	p, err := NewPopulation(cfg, task, WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = p.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(cfg.Neat.PopSize*cfg.Neat.MaxGenerations), calls.Load())
}

func TestPopulation_TrainCancelled(t *testing.T) {
	p, err := NewPopulation(populationConfig(), nodeCountTask, WithLogger(discardLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Train(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type pickFittest struct{}

func (pickFittest) Name() string { return "fittest" }

func (pickFittest) Select(_ *rand.Rand, fitnesses []float64) (int, int, error) {
	return len(fitnesses) - 1, len(fitnesses) - 2, nil
}

func TestPopulation_CustomSelector(t *testing.T) {
	p, err := NewPopulation(populationConfig(), nodeCountTask,
		WithLogger(discardLogger()), WithSelector(pickFittest{}))
	require.NoError(t, err)

	_, err = p.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fittest", p.reproduction.Selector.Name())
}

func TestPopulation_BestPrefersEarliestOnTies(t *testing.T) {
	p := &Population{Genomes: []*Genome{{Fitness: 1}, {Fitness: 3}, {Fitness: 3}}}
	assert.Same(t, p.Genomes[1], p.Best())

	empty := &Population{}
	assert.Nil(t, empty.Best())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "evaluating", StateEvaluating.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestPopulation_TrainTwiceIsReproducible(t *testing.T) {
	cfg := populationConfig()
	cfg.Neat.PopSize = 20
	cfg.Neat.NumSpecies = 3
	cfg.Neat.MaxGenerations = 4
	cfg.Genome.WeightMutationProb = 0.8
	cfg.Genome.WeightMutationSize = 0.5
	cfg.Genome.NodeAdditionProb = 0.3
	cfg.Genome.ConnAdditionProb = 0.5
	task := TaskFunc(func(g *Genome) float64 { return float64(len(g.Genes)) })
	p, err := NewPopulation(cfg, task, WithLogger(discardLogger()))
	require.NoError(t, err)

	snapshot := func() ([][]int, [][]float64) {
		ids := make([][]int, len(p.Genomes))
		weights := make([][]float64, len(p.Genomes))
		for i, g := range p.Genomes {
			ids[i] = innovationIDs(g)
			for _, cg := range g.Genes {
				weights[i] = append(weights[i], cg.Weight)
			}
		}
		return ids, weights
	}

	_, err = p.Train(context.Background())
	require.NoError(t, err)
	firstIDs, firstWeights := snapshot()
	firstRun := p.RunID

	_, err = p.Train(context.Background())
	require.NoError(t, err)
	secondIDs, secondWeights := snapshot()

	assert.NotEqual(t, firstRun, p.RunID)
	assert.Equal(t, firstIDs, secondIDs)
	assert.Equal(t, firstWeights, secondWeights)
	assert.Equal(t, StateTerminated, p.State())
}
