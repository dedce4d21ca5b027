package neat

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/ini.v1"
)

// Config stores the configuration parameters for a training run.
type Config struct {
	Neat         NeatConfig
	Genome       GenomeConfig
	Reproduction ReproductionConfig
	SpeciesSet   SpeciesSetConfig
}

// NeatConfig holds parameters of the training loop itself.
type NeatConfig struct {
	PopSize        int     `ini:"pop_size"`
	MaxGenerations int     `ini:"max_generations"`
	NumSpecies     int     `ini:"num_species"`
	ElitismProp    float64 `ini:"elitism_prop"` // Fraction of each species quota copied verbatim
	EvalWorkers    int     `ini:"eval_workers"` // <= 1 evaluates sequentially
	Seed           int64   `ini:"seed"`
}

// GenomeConfig holds the structural and mutation hyperparameters every genome
// of a run carries. Crossover threads these through to the child unchanged.
type GenomeConfig struct {
	NumInputs          int     `ini:"num_inputs"`
	NumOutputs         int     `ini:"num_outputs"`
	// Bias is the constant output of the bias node. The engine never runs a
	// forward pass; it is carried for the Task that scores genomes.
	Bias               float64 `ini:"bias"`
	WeightMutationProb float64 `ini:"weight_mutation_prob"`
	WeightMutationSize float64 `ini:"weight_mutation_size"`
	BiasMutationProb   float64 `ini:"bias_mutation_prob"`
	BiasMutationSize   float64 `ini:"bias_mutation_size"`
	NodeAdditionProb   float64 `ini:"node_add_prob"`
	ConnAdditionProb   float64 `ini:"conn_add_prob"`
	Acyclic            bool    `ini:"acyclic"`
}

// ReproductionConfig holds parameters related to reproduction.
type ReproductionConfig struct {
	DisableProb        float64 `ini:"disable_prob"`         // Chance an inherited gene stays disabled
	Selection          string  `ini:"selection"`            // Only "rank" for now
	MaxSelectionCycles int     `ini:"max_selection_cycles"` // Cap on rank selection sweeps
}

// SpeciesSetConfig holds parameters related to speciation.
type SpeciesSetConfig struct {
	MaxIterations int    `ini:"max_iterations"` // k-means iteration cap
	EmptyCluster  string `ini:"empty_cluster"`  // "max_variance" or "allow_empty"
}

// DefaultConfig returns a configuration populated with the defaults used
// when a key is missing from a config file.
func DefaultConfig() *Config {
	return &Config{
		Neat: NeatConfig{
			PopSize:        500,
			MaxGenerations: 5000,
			NumSpecies:     10,
			ElitismProp:    0.1,
			EvalWorkers:    1,
			Seed:           1,
		},
		Genome: GenomeConfig{
			NumInputs:          2,
			NumOutputs:         1,
			Bias:               1.0,
			WeightMutationProb: 0.8,
			WeightMutationSize: 0.5,
			BiasMutationProb:   0.7,
			BiasMutationSize:   0.5,
			NodeAdditionProb:   0.2,
			ConnAdditionProb:   0.5,
			Acyclic:            false,
		},
		Reproduction: ReproductionConfig{
			DisableProb:        0.2,
			Selection:          "rank",
			MaxSelectionCycles: 10000,
		},
		SpeciesSet: SpeciesSetConfig{
			MaxIterations: 1000,
			EmptyCluster:  "max_variance",
		},
	}
}

// LoadConfig loads configuration parameters from an INI file.
// Keys missing from the file keep their DefaultConfig values.
func LoadConfig(filePath string) (*Config, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}

	config := DefaultConfig()

	// Map sections to structs
	if err := cfg.Section("NEAT").MapTo(&config.Neat); err != nil {
		return nil, fmt.Errorf("failed to map [NEAT] section: %w", err)
	}
	if err := cfg.Section("DefaultGenome").MapTo(&config.Genome); err != nil {
		return nil, fmt.Errorf("failed to map [DefaultGenome] section: %w", err)
	}
	if err := cfg.Section("DefaultReproduction").MapTo(&config.Reproduction); err != nil {
		return nil, fmt.Errorf("failed to map [DefaultReproduction] section: %w", err)
	}
	if err := cfg.Section("DefaultSpeciesSet").MapTo(&config.SpeciesSet); err != nil {
		return nil, fmt.Errorf("failed to map [DefaultSpeciesSet] section: %w", err)
	}

	// MapTo can trip over trailing comments on bools, so re-read them directly.
	genomeSection := cfg.Section("DefaultGenome")
	if key, err := genomeSection.GetKey("acyclic"); err == nil {
		if v, err := key.Bool(); err == nil {
			config.Genome.Acyclic = v
		}
	}

	config.Reproduction.Selection = cleanIniString(config.Reproduction.Selection)
	config.SpeciesSet.EmptyCluster = cleanIniString(config.SpeciesSet.EmptyCluster)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports the first configuration error found, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Neat.PopSize <= 0 {
		return fmt.Errorf("%w: pop_size must be positive", ErrInvalidConfig)
	}
	if c.Neat.NumSpecies <= 0 {
		return fmt.Errorf("%w: num_species must be positive", ErrInvalidConfig)
	}
	if c.Neat.NumSpecies > c.Neat.PopSize {
		return fmt.Errorf("%w: num_species (%d) cannot exceed pop_size (%d)", ErrInvalidConfig, c.Neat.NumSpecies, c.Neat.PopSize)
	}
	if c.Neat.MaxGenerations < 0 {
		return fmt.Errorf("%w: max_generations cannot be negative", ErrInvalidConfig)
	}
	if c.Genome.NumInputs <= 0 {
		return fmt.Errorf("%w: num_inputs must be positive", ErrInvalidConfig)
	}
	if c.Genome.NumOutputs <= 0 {
		return fmt.Errorf("%w: num_outputs must be positive", ErrInvalidConfig)
	}
	if math.IsNaN(c.Genome.Bias) || math.IsInf(c.Genome.Bias, 0) {
		return fmt.Errorf("%w: bias must be finite, got %v", ErrInvalidConfig, c.Genome.Bias)
	}
	if !(c.Genome.WeightMutationSize >= 0) || !(c.Genome.BiasMutationSize >= 0) {
		return fmt.Errorf("%w: mutation sizes cannot be negative", ErrInvalidConfig)
	}

	probs := []struct {
		name  string
		value float64
	}{
		{"elitism_prop", c.Neat.ElitismProp},
		{"weight_mutation_prob", c.Genome.WeightMutationProb},
		{"bias_mutation_prob", c.Genome.BiasMutationProb},
		{"node_add_prob", c.Genome.NodeAdditionProb},
		{"conn_add_prob", c.Genome.ConnAdditionProb},
		{"disable_prob", c.Reproduction.DisableProb},
	}
	for _, p := range probs {
		if !(p.value >= 0 && p.value <= 1) {
			return fmt.Errorf("%w: %s must be between 0 and 1, got %v", ErrInvalidConfig, p.name, p.value)
		}
	}

	if strings.ToLower(c.Reproduction.Selection) != "rank" {
		return fmt.Errorf("%w: invalid selection '%s', must be 'rank'", ErrInvalidConfig, c.Reproduction.Selection)
	}
	if c.Reproduction.MaxSelectionCycles <= 0 {
		return fmt.Errorf("%w: max_selection_cycles must be positive", ErrInvalidConfig)
	}
	if c.SpeciesSet.MaxIterations <= 0 {
		return fmt.Errorf("%w: max_iterations must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.SpeciesSet.EmptyCluster) {
	case "max_variance", "allow_empty":
	default:
		return fmt.Errorf("%w: invalid empty_cluster '%s'", ErrInvalidConfig, c.SpeciesSet.EmptyCluster)
	}
	return nil
}

// Mode returns the topology mode genomes of this config are constrained to.
func (gc *GenomeConfig) Mode() TopologyMode {
	if gc.Acyclic {
		return Acyclic
	}
	return Cyclic
}

// cleanIniString removes inline comments and trims whitespace from a string read from INI.
func cleanIniString(s string) string {
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
