// Package diffctx is the public façade over the diff-context selection
// pipeline: given a repository and a diff range, it returns the ordered,
// budget-bounded set of code fragments a reviewer needs to understand the
// change.
//
// The core pipeline lives in internal/driver and the packages it
// orchestrates; this package re-exports the shapes a library consumer
// embedding diffctx needs. The error types are aliases of internal/driver's,
// and BuildDiffContextWithSink takes an internal/logging.Sink.
package diffctx

import (
	"context"

	"github.com/codenerd-labs/diffctx/internal/driver"
	"github.com/codenerd-labs/diffctx/internal/logging"
	"github.com/codenerd-labs/diffctx/internal/serialize"
)

// PreconditionError reports an out-of-range Options field.
type PreconditionError = driver.PreconditionError

// AdapterError wraps a failure from the VCS or filesystem adapters.
type AdapterError = driver.AdapterError

// Options configures one BuildDiffContext run.
type Options struct {
	BudgetTokens int     // positive; default 50000 is the CLI's concern, not this package's
	Alpha        float64 // PPR restart parameter; default 0.55
	Tau          float64 // early-stop threshold; default 0.0 disables it
	Full         bool    // ignore the budget, include every changed-file fragment
	NoContent    bool    // omit fragment content from the output
	HubThreshold int     // identifier document-frequency hub cutoff; default 6
}

// Tree is the diff-context output shape.
type Tree struct {
	Type            string         `json:"type"`
	FragmentCount   int            `json:"fragment_count"`
	UsedTokens      int            `json:"used_tokens"`
	SelectionReason string         `json:"selection_reason"`
	Fragments       []TreeFragment `json:"fragments"`
}

// TreeFragment is one selected fragment entry.
type TreeFragment struct {
	Path    string `json:"path"`
	Lines   string `json:"lines"`
	Kind    string `json:"kind"`
	Content string `json:"content,omitempty"`
}

// BuildDiffContext runs the full selection pipeline against rootDir's git
// history for diffRange and returns the selected fragment tree.
func BuildDiffContext(ctx context.Context, rootDir, diffRange string, opts Options) (*Tree, error) {
	cfg := driver.Config{
		RootDir:      rootDir,
		DiffRange:    diffRange,
		BudgetTokens: opts.BudgetTokens,
		Alpha:        opts.Alpha,
		Tau:          opts.Tau,
		Full:         opts.Full,
		NoContent:    opts.NoContent,
		HubThreshold: opts.HubThreshold,
		Sink:         logging.NoopSink{},
	}
	result, err := driver.BuildDiffContext(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return fromDriverTree(result), nil
}

// BuildDiffContextWithSink is BuildDiffContext plus an injected logging
// sink, for callers that want structured events from the run.
func BuildDiffContextWithSink(ctx context.Context, rootDir, diffRange string, opts Options, sink logging.Sink) (*Tree, error) {
	cfg := driver.Config{
		RootDir:      rootDir,
		DiffRange:    diffRange,
		BudgetTokens: opts.BudgetTokens,
		Alpha:        opts.Alpha,
		Tau:          opts.Tau,
		Full:         opts.Full,
		NoContent:    opts.NoContent,
		HubThreshold: opts.HubThreshold,
		Sink:         sink,
	}
	result, err := driver.BuildDiffContext(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return fromDriverTree(result), nil
}

func fromDriverTree(t *serialize.Tree) *Tree {
	frags := make([]TreeFragment, len(t.Fragments))
	for i, f := range t.Fragments {
		frags[i] = TreeFragment{Path: f.Path, Lines: f.Lines, Kind: f.Kind, Content: f.Content}
	}
	return &Tree{
		Type:            t.Type,
		FragmentCount:   t.FragmentCount,
		UsedTokens:      t.UsedTokens,
		SelectionReason: t.SelectionReason,
		Fragments:       frags,
	}
}
