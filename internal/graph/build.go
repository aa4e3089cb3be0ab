package graph

import (
	"math"
	"sort"

	"github.com/codenerd-labs/diffctx/internal/fragment"
)

const (
	defaultHubThreshold = 6
	containmentWeight   = 0.6
	pathLocalityBase    = 0.3
	pathLocalityCap     = 0.3
	percentileClamp     = 0.99
)

// Build constructs the fragment-relevance graph using the default hub
// threshold. Equivalent to BuildWithHubThreshold(frags, 6).
func Build(frags []fragment.Fragment) (*Graph, error) {
	return BuildWithHubThreshold(frags, defaultHubThreshold)
}

// BuildWithHubThreshold is Build with a caller-supplied hub document-
// frequency threshold, so a run can tune hub suppression via
// config.Config.HubThreshold instead of the package default.
func BuildWithHubThreshold(frags []fragment.Fragment, hubThreshold int) (*Graph, error) {
	sorted := append([]fragment.Fragment(nil), frags...)
	fragment.SortByID(sorted)

	g := New()
	for _, f := range sorted {
		g.AddNode(f.Id)
	}

	if err := addIdentifierEdges(g, sorted, hubThreshold); err != nil {
		return nil, err
	}
	addContainmentEdges(g, sorted)
	addPathLocalityEdges(g, sorted)
	clampHubOutliers(g)

	return g, nil
}

// addIdentifierEdges builds the inverted identifier index and, for each
// non-hub identifier, connects every ordered pair of fragments sharing it
// with an IDF-weighted edge, accumulated across identifiers by max (handled
// by Graph.AddEdge itself). Hub identifiers (document frequency >=
// hubThreshold) are down-weighted by 1/log(df+1) instead of skipped, so a
// hub identifier still contributes a weak affinity signal.
func addIdentifierEdges(g *Graph, sorted []fragment.Fragment, hubThreshold int) error {
	n := len(sorted)
	if n == 0 {
		return nil
	}

	inverted := map[string][]fragment.Id{}
	for _, f := range sorted {
		ids := make([]string, 0, len(f.Identifiers))
		for id := range f.Identifiers {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			inverted[id] = append(inverted[id], f.Id)
		}
	}

	for _, fragIds := range inverted {
		df := len(fragIds)
		if df < 2 {
			continue // no pair to connect
		}
		var weight float64
		if df >= hubThreshold {
			weight = 1.0 / math.Log(float64(df)+1)
		} else {
			weight = math.Log(float64(n) / float64(df))
		}
		if weight <= 0 || math.IsInf(weight, 0) || math.IsNaN(weight) {
			continue // e.g. df == n produces log(1) == 0; skip non-informative edges
		}
		for i := 0; i < len(fragIds); i++ {
			for j := 0; j < len(fragIds); j++ {
				if i == j {
					continue
				}
				if err := g.AddEdge(fragIds[i], fragIds[j], weight); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// addContainmentEdges adds bidirectional weight-0.6 edges between every
// strictly-nested pair on the same path.
func addContainmentEdges(g *Graph, sorted []fragment.Fragment) {
	byPath := map[string][]fragment.Fragment{}
	for _, f := range sorted {
		byPath[f.Id.Path] = append(byPath[f.Id.Path], f)
	}
	for _, group := range byPath {
		for i := range group {
			for j := range group {
				if i == j {
					continue
				}
				if group[i].Id.StrictSubsetOf(group[j].Id) {
					_ = g.AddEdge(group[j].Id, group[i].Id, containmentWeight) // parent -> child
					_ = g.AddEdge(group[i].Id, group[j].Id, containmentWeight) // child -> parent
				}
			}
		}
	}
}

// addPathLocalityEdges adds edges between fragments on the same path
// weighted inversely by line distance, capped to avoid within-file
// dominance over cross-file identifier edges.
func addPathLocalityEdges(g *Graph, sorted []fragment.Fragment) {
	byPath := map[string][]fragment.Fragment{}
	for _, f := range sorted {
		byPath[f.Id.Path] = append(byPath[f.Id.Path], f)
	}
	for _, group := range byPath {
		for i := range group {
			for j := range group {
				if i == j {
					continue
				}
				dist := lineDistance(group[i].Id, group[j].Id)
				weight := pathLocalityBase / (1 + float64(dist))
				if weight > pathLocalityCap {
					weight = pathLocalityCap
				}
				_ = g.AddEdge(group[i].Id, group[j].Id, weight)
			}
		}
	}
}

func lineDistance(a, b fragment.Id) int {
	if a.EndLine < b.StartLine {
		return b.StartLine - a.EndLine
	}
	if b.EndLine < a.StartLine {
		return a.StartLine - b.EndLine
	}
	return 0
}

// clampHubOutliers clamps any edge whose weight exceeds the 99th
// percentile within its source node's neighbor set down to that
// percentile, applied once at construction time so the PPR engine can
// consume the adjacency directly.
func clampHubOutliers(g *Graph) {
	for _, u := range g.order {
		neighbors := g.adj[u]
		if len(neighbors) < 2 {
			continue
		}
		weights := make([]float64, 0, len(neighbors))
		for v, w := range neighbors {
			if v == u {
				continue
			}
			weights = append(weights, w)
		}
		if len(weights) < 2 {
			continue
		}
		sort.Float64s(weights)
		idx := int(math.Ceil(percentileClamp*float64(len(weights)))) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(weights) {
			idx = len(weights) - 1
		}
		p99 := weights[idx]
		for v, w := range neighbors {
			if v != u && w > p99 {
				g.adj[u][v] = p99
			}
		}
	}
}
