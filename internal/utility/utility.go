// Package utility implements the submodular coverage objective the
// selector maximizes: per-concept best-relevance coverage plus a flat
// relevance bonus. Marginal gain is non-increasing as the state grows,
// which is what lets the selector evaluate candidates lazily.
package utility

import (
	"sort"

	"github.com/codenerd-labs/diffctx/internal/fragment"
)

// Gamma is the small fixed constant that breaks ties toward
// high-relevance fragments even when they add no new concept coverage.
const Gamma = 0.1

// State is the selector's running coverage bookkeeping: per-concept best
// relevance seen so far, the set of paths already represented in the
// selection, and the running token total.
type State struct {
	MaxRel       map[string]float64
	CoveredPaths map[string]struct{}
	TotalTokens  int
}

// NewState returns an empty State (Value(NewState()) == 0).
func NewState() *State {
	return &State{
		MaxRel:       make(map[string]float64),
		CoveredPaths: make(map[string]struct{}),
	}
}

// Value returns the coverage term of F(S), without the Gamma*rel bonus
// that MarginalGain adds: the sum of per-concept best relevance over the
// fragments already applied to state, accumulated in sorted-concept order
// so the float total is identical across runs.
func (s *State) Value() float64 {
	keys := make([]string, 0, len(s.MaxRel))
	for k := range s.MaxRel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	total := 0.0
	for _, k := range keys {
		total += s.MaxRel[k]
	}
	return total
}

// MarginalGain returns F(S + f) - F(S) without mutating state. When
// concepts ∩ identifiers(f) is empty, gain is the fixed fallback
// Gamma*rel rather than the per-concept sum plus Gamma*rel — a fragment
// touching no concept is never worth more than that fallback regardless of
// its raw relevance.
func MarginalGain(f fragment.Fragment, rel float64, concepts map[string]struct{}, state *State) float64 {
	covered := coveredConcepts(f, concepts)
	if len(covered) == 0 {
		return Gamma * rel
	}
	gain := 0.0
	for _, c := range covered {
		if delta := rel - state.MaxRel[c]; delta > 0 {
			gain += delta
		}
	}
	return gain + Gamma*rel
}

// coveredConcepts returns concepts ∩ identifiers(f) sorted, so gain sums
// accumulate in the same order every run.
func coveredConcepts(f fragment.Fragment, concepts map[string]struct{}) []string {
	var covered []string
	for c := range concepts {
		if _, ok := f.Identifiers[c]; ok {
			covered = append(covered, c)
		}
	}
	sort.Strings(covered)
	return covered
}

// Density returns MarginalGain per token, the score the selector's
// priority queue orders by; 0 when f carries no estimated tokens.
func Density(f fragment.Fragment, rel float64, concepts map[string]struct{}, state *State) float64 {
	if f.TokenCount <= 0 {
		return 0
	}
	return MarginalGain(f, rel, concepts, state) / float64(f.TokenCount)
}

// Apply commits f's contribution to state: updates the per-concept best
// relevance table, the covered-paths set, and the token total. Callers
// must have already decided to include f.
func (s *State) Apply(f fragment.Fragment, rel float64, concepts map[string]struct{}) {
	for c := range concepts {
		if _, ok := f.Identifiers[c]; !ok {
			continue
		}
		if rel > s.MaxRel[c] {
			s.MaxRel[c] = rel
		}
	}
	s.CoveredPaths[f.Id.Path] = struct{}{}
	s.TotalTokens += f.TokenCount
}
