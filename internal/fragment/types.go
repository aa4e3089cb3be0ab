// Package fragment splits a file's content into non-overlapping-or-strictly-
// nested spans (functions, classes, config sections, heading blocks, or
// generic line chunks), the atomic unit the rest of the diff-context
// pipeline operates on.
//
// A registry keyed by file extension (with shebang sniffing for
// extension-less scripts) picks the LanguageProfile that fragments each
// file; unknown or unparseable files fall back to a generic line chunker.
package fragment

import (
	"path/filepath"
	"sort"
)

// Kind is the structural classification of a Fragment.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindChunk    Kind = "chunk"
	KindSection  Kind = "section"
	KindBlock    Kind = "block"
	KindConfig   Kind = "config"
)

// Id uniquely identifies a span within a run: a path plus a 1-based,
// inclusive line range. Ordering is by path then by line range.
type Id struct {
	Path      string
	StartLine int
	EndLine   int
}

// Less orders ids by path, then start line, then end line.
func (id Id) Less(other Id) bool {
	if id.Path != other.Path {
		return id.Path < other.Path
	}
	if id.StartLine != other.StartLine {
		return id.StartLine < other.StartLine
	}
	return id.EndLine < other.EndLine
}

// SubsetOf reports whether id's range is contained within other's range on
// the same path (non-strict: equal ranges count as subset).
func (id Id) SubsetOf(other Id) bool {
	return id.Path == other.Path && other.StartLine <= id.StartLine && id.EndLine <= other.EndLine
}

// StrictSubsetOf reports whether id is a proper subset of other: contained,
// and not identical.
func (id Id) StrictSubsetOf(other Id) bool {
	return id.SubsetOf(other) && id != other
}

// Overlaps reports whether id and other share at least one line on the same
// path.
func (id Id) Overlaps(other Id) bool {
	if id.Path != other.Path {
		return false
	}
	return id.StartLine <= other.EndLine && other.StartLine <= id.EndLine
}

// Fragment is a FragmentId plus its content, structural kind, extracted
// identifiers, and estimated token count.
type Fragment struct {
	Id          Id
	Kind        Kind
	Content     string
	Identifiers map[string]struct{}
	TokenCount  int
}

// Contains reports whether line falls within this fragment's range.
func (f Fragment) Contains(line int) bool {
	return f.Id.StartLine <= line && line <= f.Id.EndLine
}

// SortByID sorts fragments in place, ascending by FragmentId ordering.
func SortByID(frags []Fragment) {
	sort.Slice(frags, func(i, j int) bool { return frags[i].Id.Less(frags[j].Id) })
}

// EnclosingFragment returns the smallest fragment in frags whose range
// contains line, breaking ties toward the smaller start line. Fragments
// must all belong to the same path; callers filter by path first.
func EnclosingFragment(frags []Fragment, line int) (Fragment, bool) {
	var best Fragment
	found := false
	bestSpan := -1
	for _, f := range frags {
		if !f.Contains(line) {
			continue
		}
		span := f.Id.EndLine - f.Id.StartLine
		if !found || span < bestSpan || (span == bestSpan && f.Id.StartLine < best.Id.StartLine) {
			best = f
			bestSpan = span
			found = true
		}
	}
	return best, found
}

// ValidateNoPartialOverlap checks the fragment universe invariant for a
// single path: any two fragments are either disjoint or strictly nested,
// never partially overlapping.
func ValidateNoPartialOverlap(frags []Fragment) error {
	byPath := map[string][]Fragment{}
	for _, f := range frags {
		byPath[f.Id.Path] = append(byPath[f.Id.Path], f)
	}
	for path, group := range byPath {
		for i := range group {
			for j := range group {
				if i == j {
					continue
				}
				a, b := group[i].Id, group[j].Id
				if a.Overlaps(b) && !a.SubsetOf(b) && !b.SubsetOf(a) {
					return &OverlapError{Path: path, A: a, B: b}
				}
			}
		}
	}
	return nil
}

// OverlapError reports a partial-overlap invariant violation.
type OverlapError struct {
	Path string
	A, B Id
}

func (e *OverlapError) Error() string {
	return "fragment: partial overlap in " + e.Path + ": " + filepath.Base(e.Path)
}
