package neat

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/baldhumanity/neat-kmeans/neat/cluster"
)

// Task scores a genome. With EvalWorkers > 1 it is called from several
// goroutines at once, each with a different genome.
type Task interface {
	Evaluate(g *Genome) float64
}

// TaskFunc adapts a plain function to the Task interface.
type TaskFunc func(g *Genome) float64

// Evaluate calls f(g).
func (f TaskFunc) Evaluate(g *Genome) float64 { return f(g) }

// State is the lifecycle stage of a Population.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateEvaluating
	StateReproducing
	StateSpeciating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateEvaluating:
		return "evaluating"
	case StateReproducing:
		return "reproducing"
	case StateSpeciating:
		return "speciating"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Population holds the state of one training run and drives it generation
// by generation: evaluate, reproduce, re-speciate.
type Population struct {
	Config     *Config
	Genomes    []*Genome   // Current generation, always PopSize long once initialized
	Species    [][]*Genome // Species of the last evaluated generation
	Generation int         // Completed generations
	RunID      string

	task         Task
	lineage      *Lineage
	speciator    *Speciator
	reproduction *Reproduction
	speciesState *SpeciesState
	assignments  []int
	history      History
	state        State
	logger       *slog.Logger
	telemetry    telemetry

	selector  Selector
	clusterer cluster.Clusterer
}

// Option customizes a Population.
type Option func(*Population)

// WithLogger sets the logger. A nil logger falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Population) { p.logger = logger }
}

// WithSelector replaces the default rank selection policy.
func WithSelector(s Selector) Option {
	return func(p *Population) { p.selector = s }
}

// WithClusterer replaces the default k-means clustering.
func WithClusterer(c cluster.Clusterer) Option {
	return func(p *Population) { p.clusterer = c }
}

// NewPopulation validates the config and wires the run's components. The
// population is empty until Initialize (or Train) is called.
func NewPopulation(config *Config, task Task, opts ...Option) (*Population, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task is required", ErrInvalidConfig)
	}

	p := &Population{
		Config: config,
		task:   task,
		state:  StateUninitialized,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	p.lineage = NewLineage(config.Neat.Seed)
	speciator, err := NewSpeciator(config, p.lineage)
	if err != nil {
		return nil, fmt.Errorf("failed to create speciator: %w", err)
	}
	if p.clusterer != nil {
		speciator.Clusterer = p.clusterer
	}
	p.speciator = speciator

	p.reproduction = NewReproduction(config, p.lineage, p.logger)
	if p.selector != nil {
		p.reproduction.Selector = p.selector
	}

	p.telemetry.init(p.logger)
	return p, nil
}

// State returns the current lifecycle stage.
func (p *Population) State() State { return p.state }

// History returns the per-generation summaries recorded so far.
func (p *Population) History() History { return p.history }

// Lineage returns the run's random source and innovation counter.
func (p *Population) Lineage() *Lineage { return p.lineage }

// Assignments returns the species index of every genome in Genomes.
func (p *Population) Assignments() []int { return p.assignments }

// Initialize starts a fresh run: the random source is reseeded from
// Config.Neat.Seed, the innovation counter is reset, and PopSize minimal
// genomes are created and clustered from scratch.
func (p *Population) Initialize() error {
	// Reseed in place; reproduction and clustering hold the same source.
	p.lineage.Rand.Seed(p.Config.Neat.Seed)
	p.lineage.Innovations.Reset()
	p.RunID = uuid.NewString()
	p.Generation = 0
	p.history = nil
	p.speciesState = nil
	p.Species = nil

	p.Genomes = make([]*Genome, p.Config.Neat.PopSize)
	for i := range p.Genomes {
		p.Genomes[i] = NewGenome(&p.Config.Genome, p.lineage)
	}

	if err := p.speciate(); err != nil {
		return fmt.Errorf("initial speciation failed: %w", err)
	}
	p.state = StateInitialized

	p.logger.Info("population initialized",
		slog.String("run_id", p.RunID),
		slog.Int("pop_size", len(p.Genomes)),
		slog.Int("num_species", p.Config.Neat.NumSpecies),
		slog.String("mode", p.Config.Genome.Mode().String()),
		slog.Int("innovations", p.lineage.Innovations.Count()))
	return nil
}

// RunGeneration evaluates the current genomes, replaces them with the next
// generation and re-speciates it.
func (p *Population) RunGeneration(ctx context.Context) (err error) {
	switch p.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateTerminated:
		return fmt.Errorf("run %s already terminated", p.RunID)
	}

	ctx, span := tracer.Start(ctx, "neat.Population.RunGeneration",
		trace.WithAttributes(
			attribute.String("run_id", p.RunID),
			attribute.Int("generation", p.Generation+1),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	genStart := time.Now()
	p.lineage.Innovations.ClearBuffer()

	// 1. Evaluate Fitness
	p.state = StateEvaluating
	if err := p.evaluate(ctx); err != nil {
		return fmt.Errorf("fitness evaluation failed in generation %d: %w", p.Generation+1, err)
	}

	p.Species = GroupSpecies(p.Genomes, p.assignments, p.Config.Neat.NumSpecies)
	stats := NewGenerationStats(p.Generation+1, p.Species, p.lineage.Innovations.Count())
	p.history = append(p.history, stats)
	p.telemetry.record(ctx, p.RunID, stats)

	// 2. Reproduce
	p.state = StateReproducing
	next, err := p.reproduction.Reproduce(p.Species, p.Config.Neat.PopSize)
	if err != nil {
		return fmt.Errorf("reproduction failed in generation %d: %w", p.Generation+1, err)
	}
	p.Genomes = next

	// 3. Speciate
	p.state = StateSpeciating
	if err := p.speciate(); err != nil {
		return fmt.Errorf("speciation failed in generation %d: %w", p.Generation+1, err)
	}

	p.Generation++
	p.logger.Info("generation finished",
		slog.String("run_id", p.RunID),
		slog.Int("generation", p.Generation),
		slog.Float64("best_fitness", stats.BestFitness),
		slog.Float64("mean_fitness", stats.MeanFitness),
		slog.Any("species_sizes", stats.SpeciesSizes),
		slog.Int("innovations", stats.NumInnovations),
		slog.Duration("elapsed", time.Since(genStart)))
	return nil
}

// Train runs a fresh run for MaxGenerations generations and returns the best
// genome of the final population.
func (p *Population) Train(ctx context.Context) (*Genome, error) {
	if err := p.Initialize(); err != nil {
		return nil, err
	}
	for gen := 0; gen < p.Config.Neat.MaxGenerations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training stopped before generation %d: %w", gen+1, err)
		}
		if err := p.RunGeneration(ctx); err != nil {
			return nil, err
		}
	}
	p.state = StateTerminated

	best := p.Best()
	if best == nil {
		return nil, ErrEmptyPopulation
	}
	p.logger.Info("training finished",
		slog.String("run_id", p.RunID),
		slog.Int("generations", p.Generation),
		slog.Float64("best_fitness", best.Fitness))
	return best, nil
}

// Best returns the genome with the highest fitness in the current
// population; the earliest one wins ties.
func (p *Population) Best() *Genome {
	var best *Genome
	maxFitness := math.Inf(-1)
	for _, g := range p.Genomes {
		if best == nil || g.Fitness > maxFitness {
			maxFitness = g.Fitness
			best = g
		}
	}
	return best
}

// evaluate writes every genome's fitness. With more than one worker the
// calls run concurrently and Wait is the barrier before reproduction.
func (p *Population) evaluate(ctx context.Context) error {
	workers := p.Config.Neat.EvalWorkers
	if workers <= 1 {
		for _, g := range p.Genomes {
			g.Fitness = p.task.Evaluate(g)
		}
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, g := range p.Genomes {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			g.Fitness = p.task.Evaluate(g)
			return nil
		})
	}
	return eg.Wait()
}

// speciate re-clusters Genomes, warm-starting from the previous centroids
// when there are any.
func (p *Population) speciate() error {
	assignments, state, err := p.speciator.Speciate(p.Genomes, p.lineage.Innovations.Count(), p.speciesState)
	if err != nil {
		return err
	}
	p.assignments = assignments
	p.speciesState = state
	return nil
}
