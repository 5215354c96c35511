package domain

// Graph is the deduplicated set of edges discovered across all root traversals.
// Edges keep first-insertion order; adding an edge for an existing
// (source, dest) pair replaces it in place.
type Graph struct {
	edges []Edge
	index map[edgeKey]int
}

type edgeKey struct {
	source string
	dest   string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[edgeKey]int)}
}

// Add inserts or replaces the edge for e.Source -> e.Dest.
func (g *Graph) Add(e Edge) {
	k := edgeKey{source: e.Source.Key(), dest: e.Dest.Key()}
	if i, ok := g.index[k]; ok {
		g.edges[i] = e
		return
	}
	g.index[k] = len(g.edges)
	g.edges = append(g.edges, e)
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of distinct edges.
func (g *Graph) Len() int {
	return len(g.edges)
}

// Nodes returns every repository appearing in the graph, in first-appearance order.
func (g *Graph) Nodes() []RepositoryRef {
	seen := make(map[string]struct{}, len(g.edges)*2)
	var nodes []RepositoryRef
	add := func(r RepositoryRef) {
		if _, ok := seen[r.Key()]; ok {
			return
		}
		seen[r.Key()] = struct{}{}
		nodes = append(nodes, r)
	}
	for _, e := range g.edges {
		add(e.Source)
		add(e.Dest)
	}
	return nodes
}

// Summary counts edges per sync state.
func (g *Graph) Summary() map[SyncState]int {
	counts := make(map[SyncState]int)
	for _, e := range g.edges {
		counts[e.Sync]++
	}
	return counts
}
