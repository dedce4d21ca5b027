// Package neat provides a Go implementation of NeuroEvolution of Augmenting
// Topologies (NEAT) with k-means speciation.
//
// Genomes are lists of connection genes carrying global innovation IDs. Every
// generation each genome is scored by a user supplied Task. Species then
// receive offspring quotas in proportion to their mean fitness. Each species
// keeps its elites, and the rest of its quota is bred by rank selection,
// crossover and mutation. Finally the new population is re-clustered with
// k-means over innovation-indexed weight vectors.
//
// Basic usage:
//
//	// Load configuration
//	config, err := neat.LoadConfig("path/to/config")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	// Create a new population around your task
//	pop, err := neat.NewPopulation(config, neat.TaskFunc(evaluate))
//	if err != nil {
//		log.Fatalf("Error creating population: %v", err)
//	}
//
//	// Run max_generations generations and take the best genome
//	best, err := pop.Train(context.Background())
//	if err != nil {
//		log.Fatalf("Training failed: %v", err)
//	}
//	fmt.Println(best)
package neat
