// Package graph implements the directed weighted fragment-relevance graph:
// an insertion-ordered adjacency structure plus the shared-identifier,
// containment, and path-locality edge-construction rules. Iteration order
// is deterministic so the full pipeline produces identical output across
// runs on the same input.
package graph

import (
	"errors"
	"math"
	"sort"

	"github.com/codenerd-labs/diffctx/internal/fragment"
)

// Graph is a directed weighted multiset collapsed to max-weight: parallel
// edges keep the larger of the existing and new weight. Self-loops may be
// stored but are never returned by Neighbors.
type Graph struct {
	nodeSet map[fragment.Id]struct{}
	order   []fragment.Id // insertion order, the iteration order PPR depends on
	adj     map[fragment.Id]map[fragment.Id]float64
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodeSet: make(map[fragment.Id]struct{}),
		adj:     make(map[fragment.Id]map[fragment.Id]float64),
	}
}

// AddNode registers id as a node if it is not already present. Every
// fragment appears as a node whether or not it ends up with edges.
func (g *Graph) AddNode(id fragment.Id) {
	if _, ok := g.nodeSet[id]; ok {
		return
	}
	g.nodeSet[id] = struct{}{}
	g.order = append(g.order, id)
	g.adj[id] = make(map[fragment.Id]float64)
}

// Nodes returns all nodes in deterministic insertion order.
func (g *Graph) Nodes() []fragment.Id {
	return g.order
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.order) }

var errInvalidWeight = errors.New("graph: weight must be finite and positive")

// AddEdge adds a directed edge u->v with the given weight. Self-loops (u==v)
// are accepted for storage but never surfaced by Neighbors. Non-finite or
// non-positive weights are rejected.
func (g *Graph) AddEdge(u, v fragment.Id, weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
		return errInvalidWeight
	}
	g.AddNode(u)
	g.AddNode(v)
	if existing, ok := g.adj[u][v]; !ok || weight > existing {
		g.adj[u][v] = weight
	}
	return nil
}

// Neighbors returns u's outgoing edges, excluding any self-loop.
func (g *Graph) Neighbors(u fragment.Id) map[fragment.Id]float64 {
	out := make(map[fragment.Id]float64, len(g.adj[u]))
	for v, w := range g.adj[u] {
		if v == u {
			continue
		}
		out[v] = w
	}
	return out
}

// Edge is one outgoing adjacency entry.
type Edge struct {
	To     fragment.Id
	Weight float64
}

// NeighborList returns u's outgoing edges sorted by target id, excluding
// self-loops. The PPR engine iterates this instead of the Neighbors map so
// floating-point accumulation order is identical across runs.
func (g *Graph) NeighborList(u fragment.Id) []Edge {
	adj := g.adj[u]
	edges := make([]Edge, 0, len(adj))
	for v, w := range adj {
		if v == u {
			continue
		}
		edges = append(edges, Edge{To: v, Weight: w})
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].To.Less(edges[j].To) })
	return edges
}

// OutWeight returns the sum of u's outgoing edge weights, excluding
// self-loops, accumulated in sorted-target order.
func (g *Graph) OutWeight(u fragment.Id) float64 {
	total := 0.0
	for _, e := range g.NeighborList(u) {
		total += e.Weight
	}
	return total
}

// SortedIds returns ids sorted by FragmentId ordering; used wherever the
// spec requires a deterministic processing order (e.g. mandatory core
// inclusion).
func SortedIds(ids []fragment.Id) []fragment.Id {
	out := append([]fragment.Id(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
