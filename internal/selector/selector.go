// Package selector implements the lazy-greedy submodular fragment
// selector: mandatory core inclusion, hierarchical-overlap blocking, lazy
// reinsertion under a density priority queue, tau early-stopping, and a
// best-singleton guard. Submodularity of the utility function makes stored
// queue densities valid upper bounds, so a popped candidate only needs
// re-evaluation when its stored density is stale.
package selector

import (
	"container/heap"

	"github.com/codenerd-labs/diffctx/internal/fragment"
	"github.com/codenerd-labs/diffctx/internal/utility"
)

// Reason names why the greedy loop stopped.
type Reason string

const (
	ReasonBudgetExhausted Reason = "budget_exhausted"
	ReasonStoppedByTau    Reason = "stopped_by_tau"
	ReasonNoCandidates    Reason = "no_candidates"
	ReasonNoUtility       Reason = "no_utility"
	ReasonBestSingleton   Reason = "best_singleton"
)

// Result is the selector's output: the selected fragments in stable
// insertion order, total tokens used, final utility value, and the reason
// selection stopped.
type Result struct {
	Selected   []fragment.Fragment
	UsedTokens int
	Utility    float64
	Reason     Reason
}

type candidate struct {
	frag          fragment.Fragment
	storedDensity float64
	index         int // heap.Index bookkeeping
}

type pqueue []*candidate

func (pq pqueue) Len() int { return len(pq) }
func (pq pqueue) Less(i, j int) bool {
	if pq[i].storedDensity != pq[j].storedDensity {
		return pq[i].storedDensity > pq[j].storedDensity // max-heap on density
	}
	return pq[i].frag.Id.Less(pq[j].frag.Id) // deterministic tie-break
}
func (pq pqueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *pqueue) Push(x any) {
	c := x.(*candidate)
	c.index = len(*pq)
	*pq = append(*pq, c)
}
func (pq *pqueue) Pop() any {
	old := *pq
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return c
}

// Select runs the lazy-greedy selection. frags is the full fragment
// universe; coreIds are mandatory inclusions identified upstream (e.g. the
// enclosing fragment of every added diff line); rel is each fragment's PPR
// relevance score (already normalized to [0, 1]); concepts is the diff's
// concept set; budgetTokens bounds non-core selection; tau controls early
// stopping (0 disables it).
func Select(frags []fragment.Fragment, coreIds []fragment.Id, rel map[fragment.Id]float64, concepts map[string]struct{}, budgetTokens int, tau float64) Result {
	byId := make(map[fragment.Id]fragment.Fragment, len(frags))
	for _, f := range frags {
		byId[f.Id] = f
	}

	state := utility.NewState()
	var selected []fragment.Fragment
	usedTokens := 0
	coreSet := make(map[fragment.Id]struct{}, len(coreIds))

	var coreFrags []fragment.Fragment
	for _, id := range coreIds {
		if f, ok := byId[id]; ok {
			coreFrags = append(coreFrags, f)
		}
	}
	fragment.SortByID(coreFrags)

	for _, f := range coreFrags {
		coreSet[f.Id] = struct{}{}
		state.Apply(f, rel[f.Id], concepts)
		selected = append(selected, f)
		usedTokens += f.TokenCount
	}

	pq := buildQueue(frags, coreSet, rel, concepts, state)
	heap.Init(pq)

	hadCandidates := pq.Len() > 0
	anyPositiveGain := false
	maxDensitySoFar := 0.0
	baseline := state.Value()
	if baseline <= 0 {
		baseline = 1 // avoid division by zero; any positive gain then exceeds 1+tau trivially once achieved
	}

	reason := ReasonNoCandidates
	exhausted := false

loop:
	for pq.Len() > 0 {
		top := heap.Pop(pq).(*candidate)

		if isBlocked(top.frag, selected) {
			continue
		}
		remaining := budgetTokens - usedTokens
		if top.frag.TokenCount > remaining {
			exhausted = true
			continue
		}

		fresh := utility.Density(top.frag, rel[top.frag.Id], concepts, state)
		if fresh < top.storedDensity {
			top.storedDensity = fresh
			heap.Push(pq, top)
			continue
		}

		gain := utility.MarginalGain(top.frag, rel[top.frag.Id], concepts, state)
		if gain > 0 {
			anyPositiveGain = true
		}
		if fresh > maxDensitySoFar {
			maxDensitySoFar = fresh
		}

		state.Apply(top.frag, rel[top.frag.Id], concepts)
		selected = append(selected, top.frag)
		usedTokens += top.frag.TokenCount

		if tau > 0 {
			achieved := state.Value()/baseline >= 1+tau
			if !achieved && pq.Len() > 0 {
				next := (*pq)[0]
				if next.storedDensity < tau*maxDensitySoFar {
					reason = ReasonStoppedByTau
					break loop
				}
			}
		}
	}

	// Budget exhaustion (a candidate was discarded for budget, or mandatory
	// core alone overran it) beats queue exhaustion; a drained queue where
	// no candidate ever yielded positive gain reports no_utility; otherwise
	// the queue simply ran dry.
	if reason != ReasonStoppedByTau {
		switch {
		case exhausted || usedTokens > budgetTokens:
			reason = ReasonBudgetExhausted
		case hadCandidates && !anyPositiveGain:
			reason = ReasonNoUtility
		default:
			reason = ReasonNoCandidates
		}
	}

	result := Result{Selected: selected, UsedTokens: usedTokens, Utility: state.Value(), Reason: reason}
	return applyBestSingletonGuard(result, frags, coreSet, rel, concepts, budgetTokens)
}

func buildQueue(frags []fragment.Fragment, coreSet map[fragment.Id]struct{}, rel map[fragment.Id]float64, concepts map[string]struct{}, state *utility.State) *pqueue {
	pq := make(pqueue, 0, len(frags))
	for _, f := range frags {
		if _, isCore := coreSet[f.Id]; isCore {
			continue
		}
		d := utility.Density(f, rel[f.Id], concepts, state)
		pq = append(pq, &candidate{frag: f, storedDensity: d})
	}
	return &pq
}

// isBlocked reports whether f overlaps hierarchically (strict containment,
// either direction) with any already-selected fragment on the same path.
func isBlocked(f fragment.Fragment, selected []fragment.Fragment) bool {
	for _, s := range selected {
		if s.Id.Path != f.Id.Path {
			continue
		}
		if f.Id.StrictSubsetOf(s.Id) || s.Id.StrictSubsetOf(f.Id) {
			return true
		}
	}
	return false
}

// applyBestSingletonGuard compares the greedy non-core selection against
// the single best non-core fragment by rel*min(1, budget/tokens), and
// replaces the non-core selection with that singleton when it yields more
// utility. Core fragments are never replaced.
func applyBestSingletonGuard(result Result, frags []fragment.Fragment, coreSet map[fragment.Id]struct{}, rel map[fragment.Id]float64, concepts map[string]struct{}, budgetTokens int) Result {
	var core []fragment.Fragment
	for _, f := range result.Selected {
		if _, ok := coreSet[f.Id]; ok {
			core = append(core, f)
		}
	}

	coreTokens := 0
	for _, f := range core {
		coreTokens += f.TokenCount
	}
	remainingForSingleton := budgetTokens - coreTokens

	var bestSingleton *fragment.Fragment
	bestScore := -1.0
	for i := range frags {
		f := frags[i]
		if _, ok := coreSet[f.Id]; ok {
			continue
		}
		if f.TokenCount <= 0 || f.TokenCount > remainingForSingleton {
			continue
		}
		if isBlocked(f, core) {
			continue
		}
		scale := 1.0
		if budgetTokens < f.TokenCount {
			scale = float64(budgetTokens) / float64(f.TokenCount)
		}
		score := rel[f.Id] * scale
		if score > bestScore {
			bestScore = score
			cand := f
			bestSingleton = &cand
		}
	}
	if bestSingleton == nil {
		return result
	}

	coreState := utility.NewState()
	for _, f := range core {
		coreState.Apply(f, rel[f.Id], concepts)
	}
	coreValue := coreState.Value()

	singletonState := utility.NewState()
	for _, f := range core {
		singletonState.Apply(f, rel[f.Id], concepts)
	}
	singletonGain := utility.MarginalGain(*bestSingleton, rel[bestSingleton.Id], concepts, singletonState)

	// Both sides of the comparison use the full objective: coverage delta
	// plus the Gamma*rel relevance bonus per selected fragment. State.Value
	// tracks coverage only, so the greedy side adds its bonus terms back.
	greedyNonCoreValue := result.Utility - coreValue
	for _, f := range result.Selected {
		if _, ok := coreSet[f.Id]; !ok {
			greedyNonCoreValue += utility.Gamma * rel[f.Id]
		}
	}

	if singletonGain > greedyNonCoreValue {
		newSelected := append(append([]fragment.Fragment(nil), core...), *bestSingleton)
		fragment.SortByID(newSelected)
		newState := utility.NewState()
		for _, f := range newSelected {
			newState.Apply(f, rel[f.Id], concepts)
		}
		usedTokens := 0
		for _, f := range newSelected {
			usedTokens += f.TokenCount
		}
		return Result{
			Selected:   newSelected,
			UsedTokens: usedTokens,
			Utility:    newState.Value(),
			Reason:     ReasonBestSingleton,
		}
	}
	return result
}
