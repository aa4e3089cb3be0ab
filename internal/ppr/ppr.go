// Package ppr computes personalized PageRank over a fragment graph by
// power iteration: the relevance signal the selector's marginal-gain
// objective consumes. Restart mass goes to the seed set, dangling mass is
// redistributed uniformly, and iteration order is fixed by the graph's
// node insertion order so results are identical across runs.
package ppr

import (
	"errors"
	"math"
	"sort"

	"github.com/codenerd-labs/diffctx/internal/fragment"
	"github.com/codenerd-labs/diffctx/internal/graph"
)

// ErrInvalidAlpha is returned when alpha is outside [0, 1).
var ErrInvalidAlpha = errors.New("ppr: alpha must be in [0, 1)")

// ErrInvalidTolerance is returned when tol is negative (a zero tol selects
// the default).
var ErrInvalidTolerance = errors.New("ppr: tol must be positive")

const (
	defaultAlpha   = 0.55
	defaultTol     = 1e-6
	defaultMaxIter = 100
)

// Options configures a PPR run. Zero values fall back to the package
// defaults.
type Options struct {
	Alpha   float64
	Tol     float64
	MaxIter int
}

func (o Options) resolved() Options {
	if o.Alpha == 0 {
		o.Alpha = defaultAlpha
	}
	if o.Tol == 0 {
		o.Tol = defaultTol
	}
	if o.MaxIter == 0 {
		o.MaxIter = defaultMaxIter
	}
	return o
}

// Run computes personalized PageRank over g, restarting to seeds (or, if
// seeds is empty or shares no node with g, uniformly over all nodes) with
// probability 1-alpha at every step; alpha is the weight of following
// outgoing edges. It is deterministic: iteration always
// walks graph.Nodes() in insertion order, and any NaN produced mid-sum
// (e.g. from a zero-weight dangling node) is treated as zero before
// accumulation.
func Run(g *graph.Graph, seeds map[fragment.Id]struct{}, opts Options) (map[fragment.Id]float64, error) {
	opts = opts.resolved()
	if opts.Alpha < 0 || opts.Alpha >= 1 {
		return nil, ErrInvalidAlpha
	}
	if opts.Tol <= 0 {
		return nil, ErrInvalidTolerance
	}

	nodes := g.Nodes()
	n := len(nodes)
	if n == 0 {
		return map[fragment.Id]float64{}, nil
	}

	personalization := buildPersonalization(nodes, seeds)

	rank := make(map[fragment.Id]float64, n)
	uniform := 1.0 / float64(n)
	for _, id := range nodes {
		rank[id] = uniform
	}

	// Adjacency is materialized once in sorted-target order: iterating the
	// Neighbors map directly would accumulate weights in a different order
	// every run, and the output must be bitwise identical across runs.
	adjacency := make(map[fragment.Id][]graph.Edge, n)
	outWeight := make(map[fragment.Id]float64, n)
	for _, id := range nodes {
		edges := g.NeighborList(id)
		adjacency[id] = edges
		total := 0.0
		for _, e := range edges {
			total += e.Weight
		}
		outWeight[id] = total
	}

	for iter := 0; iter < opts.MaxIter; iter++ {
		next := make(map[fragment.Id]float64, n)
		for _, id := range nodes {
			next[id] = 0
		}

		danglingMass := 0.0
		for _, u := range nodes {
			ru := rank[u]
			ow := outWeight[u]
			if ow <= 0 {
				danglingMass += ru
				continue
			}
			for _, e := range adjacency[u] {
				next[e.To] += ru * (e.Weight / ow)
			}
		}
		danglingMass *= opts.Alpha

		danglingShare := danglingMass / float64(n)
		diff := 0.0
		for _, id := range nodes {
			walked := opts.Alpha * next[id]
			teleport := (1 - opts.Alpha) * personalization[id]
			val := walked + teleport + danglingShare
			if math.IsNaN(val) {
				val = 0
			}
			diff += math.Abs(val - rank[id])
			next[id] = val
		}
		rank = next
		if diff < opts.Tol {
			break
		}
	}

	normalize(rank, nodes)
	return rank, nil
}

// buildPersonalization returns a uniform distribution over seeds restricted
// to nodes present in the graph, falling back to uniform over every node
// when that restriction is empty.
func buildPersonalization(nodes []fragment.Id, seeds map[fragment.Id]struct{}) map[fragment.Id]float64 {
	nodeSet := make(map[fragment.Id]struct{}, len(nodes))
	for _, id := range nodes {
		nodeSet[id] = struct{}{}
	}

	var active []fragment.Id
	for seed := range seeds {
		if _, ok := nodeSet[seed]; ok {
			active = append(active, seed)
		}
	}
	if len(active) == 0 {
		active = nodes
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Less(active[j]) })

	p := make(map[fragment.Id]float64, len(nodes))
	share := 1.0 / float64(len(active))
	for _, id := range active {
		p[id] = share
	}
	return p
}

// normalize rescales rank so its values sum to 1, correcting the small
// residual mass loss from dangling redistribution rounding.
func normalize(rank map[fragment.Id]float64, nodes []fragment.Id) {
	total := 0.0
	for _, id := range nodes {
		total += rank[id]
	}
	if total <= 0 {
		share := 1.0 / float64(len(nodes))
		for _, id := range nodes {
			rank[id] = share
		}
		return
	}
	for _, id := range nodes {
		rank[id] /= total
	}
}
