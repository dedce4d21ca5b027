package neat

import "math/rand"

// Innovations hands out innovation IDs for one training run.
//
// IDs increase strictly and are never reused until Reset. Within one
// generation the same structural mutation (a new connection between the same
// pair of nodes) is given the same ID no matter which genome produced it;
// ClearBuffer forgets those pairings at the start of each generation.
type Innovations struct {
	next   int
	buffer map[[2]int]int
}

// NewInnovations returns a counter starting at zero.
func NewInnovations() *Innovations {
	return &Innovations{buffer: make(map[[2]int]int)}
}

// Reset starts a new run: the counter goes back to zero and the buffer is emptied.
func (in *Innovations) Reset() {
	in.next = 0
	in.ClearBuffer()
}

// ClearBuffer forgets the mutations recorded during the current generation.
func (in *Innovations) ClearBuffer() {
	in.buffer = make(map[[2]int]int)
}

// Connection returns the innovation ID for a connection source->target,
// reusing the ID if the same connection already appeared this generation.
func (in *Innovations) Connection(source, target int) int {
	key := [2]int{source, target}
	if id, ok := in.buffer[key]; ok {
		return id
	}
	id := in.next
	in.next++
	in.buffer[key] = id
	return id
}

// Count returns how many innovation IDs have been assigned so far.
func (in *Innovations) Count() int {
	return in.next
}

// Lineage is the per-run state genomes need to mutate: the single shared
// random source and the innovation counter. It is owned by the Population
// and handed to every genome it constructs.
type Lineage struct {
	Rand        *rand.Rand
	Innovations *Innovations
}

// NewLineage creates the per-run state from a seed.
func NewLineage(seed int64) *Lineage {
	return &Lineage{
		Rand:        rand.New(rand.NewSource(seed)),
		Innovations: NewInnovations(),
	}
}
