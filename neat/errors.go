package neat

import "errors"

var (
	// ErrInvalidConfig is returned when configuration values are out of range.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrDegenerateFitness is returned when species fitness cannot be
	// apportioned into offspring quotas (negative or non-finite totals).
	ErrDegenerateFitness = errors.New("degenerate fitness")

	// ErrInsufficientCandidates is returned when a selection policy is asked
	// to pick two distinct parents out of fewer than two candidates.
	ErrInsufficientCandidates = errors.New("not enough candidates for selection")

	// ErrSelectionExhausted is returned when rank selection hits its cycle cap.
	ErrSelectionExhausted = errors.New("selection exhausted without acceptance")

	// ErrNotInitialized is returned when a generation is run before Initialize.
	ErrNotInitialized = errors.New("population not initialized")

	// ErrEmptyPopulation is returned when there are no genomes to work with.
	ErrEmptyPopulation = errors.New("empty population")
)
