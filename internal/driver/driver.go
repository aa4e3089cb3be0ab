// Package driver orchestrates the diff-context selection pipeline: VCS
// adapter calls, fragment building, core-fragment identification, neighbor
// enumeration, graph construction, personalized PageRank, and lazy-greedy
// selection, emitting a serialize.Tree. Each stage logs a structured event
// through the injected sink and wraps adapter failures with the stage that
// triggered them.
package driver

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/codenerd-labs/diffctx/internal/diffconcepts"
	"github.com/codenerd-labs/diffctx/internal/fragment"
	_ "github.com/codenerd-labs/diffctx/internal/fragment/profiles" // registers the language profiles BuildFragments dispatches to
	"github.com/codenerd-labs/diffctx/internal/graph"
	"github.com/codenerd-labs/diffctx/internal/logging"
	"github.com/codenerd-labs/diffctx/internal/ppr"
	"github.com/codenerd-labs/diffctx/internal/selector"
	"github.com/codenerd-labs/diffctx/internal/serialize"
	"github.com/codenerd-labs/diffctx/internal/vcsgit"
	"github.com/codenerd-labs/diffctx/internal/walk"
)

// PreconditionError reports an out-of-range Config field; the caller must
// not run the pipeline.
type PreconditionError struct {
	Field  string
	Detail string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("driver: precondition violated on %s: %s", e.Field, e.Detail)
}

// AdapterError wraps a failure from the VCS or filesystem adapters, with
// the stage that triggered it.
type AdapterError struct {
	Stage string
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("driver: adapter error during %s: %v", e.Stage, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

const defaultHubThreshold = 6

// Config is one BuildDiffContext run's parameter set.
type Config struct {
	RootDir      string
	DiffRange    string
	BudgetTokens int
	Alpha        float64
	Tau          float64
	Full         bool
	NoContent    bool
	HubThreshold int
	Sink         logging.Sink
}

func (c Config) validate() error {
	if c.Alpha < 0 || c.Alpha >= 1 {
		return &PreconditionError{Field: "alpha", Detail: "must be in [0, 1)"}
	}
	if c.Tau < 0 {
		return &PreconditionError{Field: "tau", Detail: "must be >= 0"}
	}
	if c.BudgetTokens < 1 {
		return &PreconditionError{Field: "budget_tokens", Detail: "must be >= 1"}
	}
	return nil
}

// VCSAdapter is the VCS collaborator driver consumes: changed files,
// parsed hunks, the raw diff text, and per-file post-image content.
// GitAdapter is the production implementation; tests supply a fake.
type VCSAdapter interface {
	ChangedFiles(ctx context.Context, root, diffRange string) ([]string, error)
	ParseDiff(ctx context.Context, root, diffRange string) ([]vcsgit.Hunk, error)
	GetDiffText(ctx context.Context, root, diffRange string) (string, error)
	PostImage(ctx context.Context, root, diffRange, path string) (content string, existed bool)
}

// GitAdapter delegates to the vcsgit package's git-shellout functions.
type GitAdapter struct{}

func (GitAdapter) ChangedFiles(ctx context.Context, root, diffRange string) ([]string, error) {
	return vcsgit.ChangedFiles(ctx, root, diffRange)
}

func (GitAdapter) ParseDiff(ctx context.Context, root, diffRange string) ([]vcsgit.Hunk, error) {
	return vcsgit.ParseDiff(ctx, root, diffRange)
}

func (GitAdapter) GetDiffText(ctx context.Context, root, diffRange string) (string, error) {
	return vcsgit.GetDiffText(ctx, root, diffRange)
}

func (GitAdapter) PostImage(ctx context.Context, root, diffRange, path string) (string, bool) {
	return vcsgit.PostImage(ctx, root, diffRange, path)
}

// NeighborWalker is the file-tree collaborator driver consumes.
type NeighborWalker interface {
	LoadRules(root string) (*walk.Rules, error)
	EnumerateNeighbors(ctx context.Context, root string, changed []string, rules *walk.Rules) ([]string, error)
	ReadFile(path string) (content string, encodingOK bool, err error)
}

// FSWalker delegates to the walk package's filesystem functions.
type FSWalker struct{}

func (FSWalker) LoadRules(root string) (*walk.Rules, error) { return walk.LoadRules(root) }

func (FSWalker) EnumerateNeighbors(ctx context.Context, root string, changed []string, rules *walk.Rules) ([]string, error) {
	return walk.EnumerateNeighbors(ctx, root, changed, rules)
}

func (FSWalker) ReadFile(path string) (string, bool, error) { return walk.ReadFile(path) }

// BuildDiffContext runs the full pipeline against the production git
// adapter and filesystem walker. pkg/diffctx wraps this with the public
// Options/Tree façade.
func BuildDiffContext(ctx context.Context, cfg Config) (*serialize.Tree, error) {
	return buildDiffContext(ctx, cfg, GitAdapter{}, FSWalker{})
}

func buildDiffContext(ctx context.Context, cfg Config, vcs VCSAdapter, fsw NeighborWalker) (*serialize.Tree, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	sink := cfg.Sink
	if sink == nil {
		sink = logging.NoopSink{}
	}
	hubThreshold := cfg.HubThreshold
	if hubThreshold <= 0 {
		hubThreshold = defaultHubThreshold
	}
	runID := uuid.NewString()
	fields := func(extra map[string]any) map[string]any {
		m := map[string]any{"run_id": runID, "diff_range": cfg.DiffRange}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}

	sink.Event(logging.CategoryDriver, "run started", fields(nil))

	changedPaths, err := vcs.ChangedFiles(ctx, cfg.RootDir, cfg.DiffRange)
	if err != nil {
		return nil, &AdapterError{Stage: "changed_files", Err: err}
	}
	if len(changedPaths) == 0 {
		sink.Event(logging.CategoryDriver, "empty diff", fields(nil))
		return emptyTree(), nil
	}

	hunks, err := vcs.ParseDiff(ctx, cfg.RootDir, cfg.DiffRange)
	if err != nil {
		return nil, &AdapterError{Stage: "parse_diff", Err: err}
	}
	diffText, err := vcs.GetDiffText(ctx, cfg.RootDir, cfg.DiffRange)
	if err != nil {
		return nil, &AdapterError{Stage: "diff_text", Err: err}
	}
	if strings.TrimSpace(diffText) == "" && len(hunks) == 0 {
		sink.Event(logging.CategoryDriver, "empty diff", fields(nil))
		return emptyTree(), nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	hunksByPath := map[string][]vcsgit.Hunk{}
	for _, h := range hunks {
		hunksByPath[h.Path] = append(hunksByPath[h.Path], h)
	}

	changedFragments := map[string][]fragment.Fragment{}
	var allFragments []fragment.Fragment
	coreSet := map[fragment.Id]struct{}{}

	for _, path := range changedPaths {
		content, existed := vcs.PostImage(ctx, cfg.RootDir, cfg.DiffRange, path)
		if !existed {
			continue // file deleted in this range; nothing to fragment on the new side
		}
		frags, ferr := fragment.BuildFragments(path, []byte(content))
		if ferr != nil {
			sink.Event(logging.CategoryFragment, "fragment build failed", fields(map[string]any{"path": path, "error": ferr.Error()}))
			continue
		}
		changedFragments[path] = frags
		allFragments = append(allFragments, frags...)

		for _, h := range hunksByPath[path] {
			for _, ln := range addedLineNumbers(h) {
				if enclosing, ok := fragment.EnclosingFragment(frags, ln); ok {
					coreSet[enclosing.Id] = struct{}{}
				}
			}
		}
	}
	sink.Event(logging.CategoryFragment, "changed-file fragments built", fields(map[string]any{"files": len(changedFragments), "core": len(coreSet)}))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rules, err := fsw.LoadRules(cfg.RootDir)
	if err != nil {
		return nil, &AdapterError{Stage: "load_ignore_rules", Err: err}
	}
	neighborPaths, err := fsw.EnumerateNeighbors(ctx, cfg.RootDir, changedPaths, rules)
	if err != nil {
		return nil, &AdapterError{Stage: "enumerate_neighbors", Err: err}
	}
	for _, path := range neighborPaths {
		content, ok, rerr := fsw.ReadFile(path)
		if rerr != nil || !ok {
			continue // binary or unreadable; excluded from fragmentation
		}
		frags, ferr := fragment.BuildFragments(path, []byte(content))
		if ferr != nil {
			continue
		}
		allFragments = append(allFragments, frags...)
	}
	sink.Event(logging.CategoryDriver, "fragment universe assembled", fields(map[string]any{"fragments": len(allFragments), "neighbors": len(neighborPaths)}))

	concepts := diffconcepts.Concepts(diffText)

	g, err := graph.BuildWithHubThreshold(allFragments, hubThreshold)
	if err != nil {
		return nil, fmt.Errorf("driver: build graph: %w", err)
	}
	sink.Event(logging.CategoryGraph, "graph built", fields(map[string]any{"nodes": g.NodeCount()}))

	rel, err := computeRelevance(g, coreSet, cfg.Alpha)
	if err != nil {
		return nil, fmt.Errorf("driver: ppr: %w", err)
	}
	sink.Event(logging.CategoryPPR, "ppr converged", fields(nil))

	coreIds := make([]fragment.Id, 0, len(coreSet))
	for id := range coreSet {
		coreIds = append(coreIds, id)
	}

	budgetTokens := cfg.BudgetTokens
	effectiveCore := coreIds
	universe := allFragments
	if cfg.Full {
		// Full mode includes every changed-file fragment and nothing else:
		// the universe shrinks to the changed files so no zero-cost neighbor
		// fragment can ride along on the exhausted budget.
		effectiveCore = allChangedFragmentIds(changedFragments)
		universe = nil
		for _, frags := range changedFragments {
			universe = append(universe, frags...)
		}
		budgetTokens = sumTokens(universe, effectiveCore)
	}

	result := selector.Select(universe, effectiveCore, rel, concepts, budgetTokens, cfg.Tau)
	sink.Event(logging.CategorySelector, "selection complete", fields(map[string]any{
		"selected": len(result.Selected), "used_tokens": result.UsedTokens, "reason": string(result.Reason),
	}))

	tree := serialize.BuildTree(result, cfg.NoContent)
	sink.Event(logging.CategoryDriver, "run complete", fields(map[string]any{"fragment_count": tree.FragmentCount}))
	return &tree, nil
}

func emptyTree() *serialize.Tree {
	return &serialize.Tree{
		Type:      "diff_context",
		Fragments: []serialize.TreeFragment{},
	}
}

// computeRelevance runs PPR seeded on core fragments and normalizes the
// result to [0, 1] by dividing by the maximum score.
func computeRelevance(g *graph.Graph, core map[fragment.Id]struct{}, alpha float64) (map[fragment.Id]float64, error) {
	scores, err := ppr.Run(g, core, ppr.Options{Alpha: alpha})
	if err != nil {
		return nil, err
	}
	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore <= 0 || math.IsNaN(maxScore) {
		return scores, nil
	}
	rel := make(map[fragment.Id]float64, len(scores))
	for id, s := range scores {
		rel[id] = s / maxScore
	}
	return rel, nil
}

// addedLineNumbers returns the new-file line numbers of every '+' line in
// h's rendered body (vcsgit.renderHunkBody's "@@ ... @@" header followed by
// ' '/'+'/'-' prefixed lines), advancing the running line counter on
// context and added lines but not on removed ones.
func addedLineNumbers(h vcsgit.Hunk) []int {
	lines := strings.Split(h.Body, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "@@") {
		lines = lines[1:]
	}
	lineNo := h.NewStart
	var out []int
	for _, l := range lines {
		if l == "" {
			continue
		}
		switch l[0] {
		case '+':
			out = append(out, lineNo)
			lineNo++
		case ' ':
			lineNo++
		case '-':
			// old-side only; doesn't advance the new-file counter
		}
	}
	return out
}

func allChangedFragmentIds(changedFragments map[string][]fragment.Fragment) []fragment.Id {
	var ids []fragment.Id
	for _, frags := range changedFragments {
		for _, f := range frags {
			ids = append(ids, f.Id)
		}
	}
	return ids
}

func sumTokens(frags []fragment.Fragment, ids []fragment.Id) int {
	want := make(map[fragment.Id]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	total := 0
	for _, f := range frags {
		if _, ok := want[f.Id]; ok {
			total += f.TokenCount
		}
	}
	return total
}
