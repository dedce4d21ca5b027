package neat

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/baldhumanity/neat-kmeans/neat/cluster"
)

// SpeciesState is the clustering state carried from one speciation to the
// next. A nil state means the next speciation clusters from scratch.
type SpeciesState struct {
	// Centroids has one row per innovation known at the time of clustering
	// and one column per species.
	Centroids *mat.Dense
}

// Speciator groups genomes into a fixed number of species by clustering
// their positions in innovation-indexed weight space.
type Speciator struct {
	NumSpecies int
	Clusterer  cluster.Clusterer
}

// NewSpeciator creates a speciator using k-means with the given settings.
func NewSpeciator(config *Config, lineage *Lineage) (*Speciator, error) {
	policy, err := cluster.ParseEmptyPolicy(config.SpeciesSet.EmptyCluster)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &Speciator{
		NumSpecies: config.Neat.NumSpecies,
		Clusterer: &cluster.KMeans{
			MaxIterations: config.SpeciesSet.MaxIterations,
			EmptyPolicy:   policy,
			Rand:          lineage.Rand,
		},
	}, nil
}

// FeatureMatrix builds the numInnovations x len(population) matrix whose cell
// [innovation, genome] is that genome's weight for the innovation, or zero
// if it lacks the gene.
func FeatureMatrix(population []*Genome, numInnovations int) *mat.Dense {
	// gonum refuses zero-sized matrices; a single zero row is equivalent.
	rows := numInnovations
	if rows == 0 {
		rows = 1
	}
	data := mat.NewDense(rows, len(population), nil)
	for col, g := range population {
		for _, cg := range g.Genes {
			data.Set(cg.innovationID, col, cg.Weight)
		}
	}
	return data
}

// Speciate assigns every genome a species index in [0, NumSpecies).
//
// With a nil prev it clusters from scratch; otherwise the previous centroids,
// padded with zeros for innovations that appeared since, seed the run so
// species stay roughly in place across generations. The returned state
// replaces prev.
func (s *Speciator) Speciate(population []*Genome, numInnovations int, prev *SpeciesState) ([]int, *SpeciesState, error) {
	if len(population) == 0 {
		return nil, nil, ErrEmptyPopulation
	}
	data := FeatureMatrix(population, numInnovations)
	rows, _ := data.Dims()

	if s.NumSpecies == 1 {
		// A single species needs no clustering; its centroid is the mean.
		centroid := mat.NewDense(rows, 1, nil)
		ones := mat.NewVecDense(len(population), nil)
		for i := 0; i < len(population); i++ {
			ones.SetVec(i, 1/float64(len(population)))
		}
		centroid.Mul(data, ones)
		return make([]int, len(population)), &SpeciesState{Centroids: centroid}, nil
	}

	var initial *mat.Dense
	if prev != nil && prev.Centroids != nil {
		initial = padRows(prev.Centroids, rows)
	}

	assignments, centroids, err := s.Clusterer.Cluster(data, s.NumSpecies, initial)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to cluster %d genomes into %d species: %w", len(population), s.NumSpecies, err)
	}
	return assignments, &SpeciesState{Centroids: centroids}, nil
}

// padRows returns m grown to rows rows, new rows filled with zeros.
func padRows(m *mat.Dense, rows int) *mat.Dense {
	r, c := m.Dims()
	if r >= rows {
		return m
	}
	out := mat.NewDense(rows, c, nil)
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(m)
	return out
}

// GroupSpecies splits the population into numSpecies groups following the
// assignment. Groups can be empty.
func GroupSpecies(population []*Genome, assignments []int, numSpecies int) [][]*Genome {
	species := make([][]*Genome, numSpecies)
	for i, g := range population {
		species[assignments[i]] = append(species[assignments[i]], g)
	}
	return species
}
