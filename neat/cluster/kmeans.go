// Package cluster provides the k-means clustering used to group genomes
// into species.
//
// Data matrices hold one point per column, so a matrix with d rows and n
// columns describes n points in d dimensions. Centroid matrices follow the
// same layout with one column per cluster.
package cluster

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidInput is returned for empty data, bad k, or mismatched centroids.
var ErrInvalidInput = errors.New("invalid clustering input")

// Clusterer partitions the columns of data into k clusters. When initial
// centroids are given they seed the run instead of a fresh initialization.
type Clusterer interface {
	Cluster(data mat.Matrix, k int, initial *mat.Dense) ([]int, *mat.Dense, error)
}

// EmptyPolicy decides what happens to a cluster that loses all its points.
type EmptyPolicy int

const (
	// MaxVariance reseeds an empty cluster with the point furthest from the
	// centroid of the cluster with the largest variance.
	MaxVariance EmptyPolicy = iota
	// AllowEmpty leaves an empty cluster's centroid where it was.
	AllowEmpty
)

// ParseEmptyPolicy maps a config name to an EmptyPolicy.
func ParseEmptyPolicy(name string) (EmptyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "max_variance", "":
		return MaxVariance, nil
	case "allow_empty":
		return AllowEmpty, nil
	default:
		return 0, fmt.Errorf("%w: unknown empty cluster policy '%s'", ErrInvalidInput, name)
	}
}

// KMeans is Lloyd's algorithm with Euclidean distance and sample
// initialization (k distinct data points picked at random).
type KMeans struct {
	MaxIterations int
	EmptyPolicy   EmptyPolicy
	Rand          *rand.Rand
}

// Cluster runs k-means until assignments stop changing or MaxIterations is
// reached. It returns the cluster of every column and the final centroids.
func (km *KMeans) Cluster(data mat.Matrix, k int, initial *mat.Dense) ([]int, *mat.Dense, error) {
	dims, n := data.Dims()
	if dims == 0 || n == 0 {
		return nil, nil, fmt.Errorf("%w: empty data matrix", ErrInvalidInput)
	}
	if k <= 0 {
		return nil, nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}

	points := make([][]float64, n)
	for j := range points {
		points[j] = mat.Col(nil, j, data)
	}

	centroids := make([][]float64, k)
	if initial != nil {
		r, c := initial.Dims()
		if r != dims || c != k {
			return nil, nil, fmt.Errorf("%w: initial centroids are %dx%d, want %dx%d", ErrInvalidInput, r, c, dims, k)
		}
		for c := range centroids {
			centroids[c] = mat.Col(nil, c, initial)
		}
	} else {
		if k > n {
			return nil, nil, fmt.Errorf("%w: cannot sample %d centroids from %d points", ErrInvalidInput, k, n)
		}
		if km.Rand == nil {
			return nil, nil, fmt.Errorf("%w: random source is required for initialization", ErrInvalidInput)
		}
		for c, j := range km.Rand.Perm(n)[:k] {
			centroids[c] = append([]float64(nil), points[j]...)
		}
	}

	maxIter := km.MaxIterations
	if maxIter <= 0 {
		maxIter = 1000
	}

	assignments := make([]int, n)
	for j := range assignments {
		assignments[j] = -1
	}
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for j, p := range points {
			best := nearest(p, centroids)
			if best != assignments[j] {
				assignments[j] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		counts := updateCentroids(points, assignments, centroids)
		if km.EmptyPolicy == MaxVariance {
			reseedEmpty(points, assignments, centroids, counts)
		}
	}

	out := mat.NewDense(dims, k, nil)
	for c, centroid := range centroids {
		out.SetCol(c, centroid)
	}
	return assignments, out, nil
}

// nearest returns the index of the closest centroid, preferring the lowest
// index on ties.
func nearest(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := floats.Distance(p, centroids[0], 2)
	for c := 1; c < len(centroids); c++ {
		if d := floats.Distance(p, centroids[c], 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// updateCentroids moves every non-empty centroid to the mean of its points
// and returns the member count per cluster.
func updateCentroids(points [][]float64, assignments []int, centroids [][]float64) []int {
	dims := len(points[0])
	sums := make([][]float64, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	counts := make([]int, len(centroids))
	for j, p := range points {
		c := assignments[j]
		floats.Add(sums[c], p)
		counts[c]++
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
		centroids[c] = sums[c]
	}
	return counts
}

// reseedEmpty gives each empty cluster the point furthest from the centroid
// of the highest-variance cluster that can spare one.
func reseedEmpty(points [][]float64, assignments []int, centroids [][]float64, counts []int) {
	for empty := range centroids {
		if counts[empty] != 0 {
			continue
		}

		variances := make([]float64, len(centroids))
		for j, p := range points {
			c := assignments[j]
			d := floats.Distance(p, centroids[c], 2)
			variances[c] += d * d
		}
		donor := -1
		for c := range centroids {
			if counts[c] < 2 {
				continue
			}
			variances[c] /= float64(counts[c])
			if donor == -1 || variances[c] > variances[donor] {
				donor = c
			}
		}
		if donor == -1 {
			return
		}

		furthest, furthestDist := -1, -1.0
		for j, p := range points {
			if assignments[j] != donor {
				continue
			}
			if d := floats.Distance(p, centroids[donor], 2); d > furthestDist {
				furthest, furthestDist = j, d
			}
		}

		assignments[furthest] = empty
		counts[empty] = 1
		centroids[empty] = append([]float64(nil), points[furthest]...)

		counts[donor]--
		sum := make([]float64, len(points[0]))
		for j, p := range points {
			if assignments[j] == donor {
				floats.Add(sum, p)
			}
		}
		floats.Scale(1/float64(counts[donor]), sum)
		centroids[donor] = sum
	}
}
