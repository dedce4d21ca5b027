package neat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("neat.population")
	meter  = otel.Meter("neat.population")
)

// telemetry holds the run's metric instruments, created once on first use.
type telemetry struct {
	once         sync.Once
	generations  metric.Int64Counter
	bestFitness  metric.Float64Gauge
	speciesCount metric.Int64Gauge
	innovations  metric.Int64Gauge
}

// init creates the instruments. Failures are logged and leave the
// corresponding instrument nil; recording then skips it.
func (t *telemetry) init(logger *slog.Logger) {
	t.once.Do(func() {
		var initErrors []string

		var err error
		t.generations, err = meter.Int64Counter("neat_generations_total",
			metric.WithDescription("Number of completed generations"),
		)
		if err != nil {
			initErrors = append(initErrors, "generations: "+err.Error())
		}

		t.bestFitness, err = meter.Float64Gauge("neat_best_fitness",
			metric.WithDescription("Best fitness of the last evaluated generation"),
		)
		if err != nil {
			initErrors = append(initErrors, "best_fitness: "+err.Error())
		}

		t.speciesCount, err = meter.Int64Gauge("neat_species_nonempty",
			metric.WithDescription("Number of species with at least one member"),
		)
		if err != nil {
			initErrors = append(initErrors, "species_count: "+err.Error())
		}

		t.innovations, err = meter.Int64Gauge("neat_innovations",
			metric.WithDescription("Innovation IDs assigned so far in the run"),
		)
		if err != nil {
			initErrors = append(initErrors, "innovations: "+err.Error())
		}

		if len(initErrors) > 0 {
			logger.Warn("failed to create some metrics",
				slog.String("errors", strings.Join(initErrors, "; ")))
		}
	})
}

func (t *telemetry) record(ctx context.Context, runID string, gs GenerationStats) {
	attrs := metric.WithAttributes(attribute.String("run_id", runID))
	if t.generations != nil {
		t.generations.Add(ctx, 1, attrs)
	}
	if t.bestFitness != nil {
		t.bestFitness.Record(ctx, gs.BestFitness, attrs)
	}
	if t.speciesCount != nil {
		t.speciesCount.Record(ctx, int64(gs.NonEmptySpecies()), attrs)
	}
	if t.innovations != nil {
		t.innovations.Record(ctx, int64(gs.NumInnovations), attrs)
	}
}
