package neat

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Genome represents an individual in the population: an ordered list of
// connection genes over a set of integer node IDs.
//
// Node IDs are laid out as inputs [0, NumInputs), the bias node NumInputs,
// outputs (NumInputs, NumInputs+NumOutputs], then hidden nodes. Genes are
// kept sorted ascending by innovation ID.
type Genome struct {
	Genes   []*ConnectionGene
	Fitness float64

	nodeCount int
	depths    []int // Longest-path layer per node; acyclic mode only
	config    *GenomeConfig
	lineage   *Lineage
}

// NewGenome creates a minimal genome: every input and the bias node is
// connected to every output with a random weight. Genomes built within the
// same generation share innovation IDs for these connections.
func NewGenome(config *GenomeConfig, lineage *Lineage) *Genome {
	g := &Genome{
		nodeCount: config.NumInputs + config.NumOutputs + 1,
		config:    config,
		lineage:   lineage,
	}
	for src := 0; src <= config.NumInputs; src++ {
		for _, dst := range g.outputNodes() {
			id := lineage.Innovations.Connection(src, dst)
			g.insertGene(NewConnectionGene(id, src, dst, initWeight(lineage.Rand), true))
		}
	}
	if config.Acyclic {
		g.mustRefreshDepths()
	}
	return g
}

// NewGenomeFromGenes assembles a genome from an existing gene list, as
// crossover does. depths may be nil outside acyclic mode; in acyclic mode a
// nil table is recomputed from the genes.
func NewGenomeFromGenes(genes []*ConnectionGene, nodeCount int, depths []int, config *GenomeConfig, lineage *Lineage) (*Genome, error) {
	g := &Genome{
		Genes:     genes,
		nodeCount: nodeCount,
		config:    config,
		lineage:   lineage,
	}
	if !sort.SliceIsSorted(g.Genes, func(i, j int) bool { return g.Genes[i].innovationID < g.Genes[j].innovationID }) {
		sort.SliceStable(g.Genes, func(i, j int) bool { return g.Genes[i].innovationID < g.Genes[j].innovationID })
	}
	if !config.Acyclic {
		return g, nil
	}
	if depths != nil && len(depths) == nodeCount {
		g.depths = append([]int(nil), depths...)
		return g, nil
	}
	if err := g.RefreshDepths(); err != nil {
		return nil, err
	}
	return g, nil
}

// NodeCount returns the number of nodes, which is also the next free node ID.
func (g *Genome) NodeCount() int { return g.nodeCount }

// Config returns the hyperparameters the genome was built with.
func (g *Genome) Config() *GenomeConfig { return g.config }

// Mode returns the topology mode of the genome.
func (g *Genome) Mode() TopologyMode { return g.config.Mode() }

// Depths returns a copy of the node depth table, or nil outside acyclic mode.
func (g *Genome) Depths() []int {
	if g.depths == nil {
		return nil
	}
	return append([]int(nil), g.depths...)
}

// Gene returns the gene with the given innovation ID, if present.
func (g *Genome) Gene(innovationID int) (*ConnectionGene, bool) {
	i := sort.Search(len(g.Genes), func(i int) bool { return g.Genes[i].innovationID >= innovationID })
	if i < len(g.Genes) && g.Genes[i].innovationID == innovationID {
		return g.Genes[i], true
	}
	return nil, false
}

// Copy creates a deep copy of the genome. The copy shares config and lineage.
func (g *Genome) Copy() *Genome {
	genes := make([]*ConnectionGene, len(g.Genes))
	for i, cg := range g.Genes {
		genes[i] = cg.Copy()
	}
	return &Genome{
		Genes:     genes,
		Fitness:   g.Fitness,
		nodeCount: g.nodeCount,
		depths:    g.Depths(),
		config:    g.config,
		lineage:   g.lineage,
	}
}

// String returns a short description of the genome.
func (g *Genome) String() string {
	return fmt.Sprintf("Genome(Nodes: %d, Genes: %d, Fitness: %.4f)", g.nodeCount, len(g.Genes), g.Fitness)
}

// Mutate applies structural and weight mutations in place, driven by the
// genome's own hyperparameters and the run's shared random source.
func (g *Genome) Mutate() {
	if g.lineage == nil {
		panic("neat: Mutate called on a genome without lineage")
	}
	rng := g.lineage.Rand

	// --- Structural Mutations ---
	if rng.Float64() < g.config.NodeAdditionProb {
		g.mutateAddNode()
	}
	if rng.Float64() < g.config.ConnAdditionProb {
		g.mutateAddConnection()
	}

	// --- Weight Mutations ---
	biasNode := g.config.NumInputs
	for _, cg := range g.Genes {
		if cg.source == biasNode {
			cg.Weight = mutateWeight(rng, cg.Weight, g.config.BiasMutationProb, g.config.BiasMutationSize)
		} else {
			cg.Weight = mutateWeight(rng, cg.Weight, g.config.WeightMutationProb, g.config.WeightMutationSize)
		}
	}
}

// mutateAddNode splits a random enabled connection in two.
func (g *Genome) mutateAddNode() {
	enabled := make([]*ConnectionGene, 0, len(g.Genes))
	for _, cg := range g.Genes {
		if cg.Enabled {
			enabled = append(enabled, cg)
		}
	}
	if len(enabled) == 0 {
		return
	}
	split := enabled[g.lineage.Rand.Intn(len(enabled))]
	split.Enabled = false

	newNode := g.nodeCount
	g.nodeCount++

	inID := g.lineage.Innovations.Connection(split.source, newNode)
	g.insertGene(NewConnectionGene(inID, split.source, newNode, 1.0, true))
	outID := g.lineage.Innovations.Connection(newNode, split.target)
	g.insertGene(NewConnectionGene(outID, newNode, split.target, split.Weight, true))

	if g.config.Acyclic {
		g.mustRefreshDepths()
	}
}

// mutateAddConnection connects a random pair of nodes that are not connected
// yet. In acyclic mode only pairs going strictly deeper are considered.
func (g *Genome) mutateAddConnection() {
	existing := make(map[[2]int]bool, len(g.Genes))
	for _, cg := range g.Genes {
		existing[[2]int{cg.source, cg.target}] = true
	}

	firstOutput := g.config.NumInputs + 1
	lastOutput := g.config.NumInputs + g.config.NumOutputs
	var candidates [][2]int
	for src := 0; src < g.nodeCount; src++ {
		if g.config.Acyclic && src >= firstOutput && src <= lastOutput {
			continue
		}
		for dst := firstOutput; dst < g.nodeCount; dst++ {
			if existing[[2]int{src, dst}] {
				continue
			}
			if g.config.Acyclic && g.depths[src] >= g.depths[dst] {
				continue
			}
			candidates = append(candidates, [2]int{src, dst})
		}
	}
	if len(candidates) == 0 {
		return
	}

	pick := candidates[g.lineage.Rand.Intn(len(candidates))]
	id := g.lineage.Innovations.Connection(pick[0], pick[1])
	g.insertGene(NewConnectionGene(id, pick[0], pick[1], initWeight(g.lineage.Rand), true))

	if g.config.Acyclic {
		g.mustRefreshDepths()
	}
}

// insertGene places cg at its sorted position by innovation ID.
func (g *Genome) insertGene(cg *ConnectionGene) {
	i := sort.Search(len(g.Genes), func(i int) bool { return g.Genes[i].innovationID >= cg.innovationID })
	g.Genes = append(g.Genes, nil)
	copy(g.Genes[i+1:], g.Genes[i:])
	g.Genes[i] = cg
}

func (g *Genome) outputNodes() []int {
	out := make([]int, g.config.NumOutputs)
	for i := range out {
		out[i] = g.config.NumInputs + 1 + i
	}
	return out
}

// RefreshDepths recomputes the depth table as the longest path from any
// source node, using every gene (enabled or not) as an edge. It fails if the
// genes contain a cycle.
func (g *Genome) RefreshDepths() error {
	graph := simple.NewDirectedGraph()
	for id := 0; id < g.nodeCount; id++ {
		graph.AddNode(simple.Node(id))
	}
	for _, cg := range g.Genes {
		if cg.source == cg.target {
			return fmt.Errorf("self connection on node %d in acyclic genome", cg.source)
		}
		if cg.source >= g.nodeCount || cg.target >= g.nodeCount {
			return fmt.Errorf("gene %d references node outside [0, %d)", cg.innovationID, g.nodeCount)
		}
		graph.SetEdge(graph.NewEdge(simple.Node(cg.source), simple.Node(cg.target)))
	}

	order, err := topo.Sort(graph)
	if err != nil {
		return fmt.Errorf("acyclic genome contains a cycle: %w", err)
	}

	depths := make([]int, g.nodeCount)
	for _, n := range order {
		from := n.ID()
		next := graph.From(from)
		for next.Next() {
			to := next.Node().ID()
			if depths[from]+1 > depths[to] {
				depths[to] = depths[from] + 1
			}
		}
	}
	g.depths = depths
	return nil
}

func (g *Genome) mustRefreshDepths() {
	if err := g.RefreshDepths(); err != nil {
		panic(fmt.Sprintf("neat: %v", err))
	}
}
