// Package diffengine computes line-level diffs between two content strings
// using sergi/go-diff (DiffLinesToChars, DiffMain, DiffCleanupSemantic,
// DiffCharsToLines), grouped into unified-diff-style hunks with
// surrounding context.
package diffengine

import (
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType classifies a line within a computed hunk.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is a single line within a Hunk, tagged with its type and the line
// number it occupies in whichever side it belongs to.
type Line struct {
	LineNum int
	Content string
	Type    LineType
}

// Hunk is a contiguous group of changed lines plus surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// ContextLines is the number of unchanged lines of context kept around each
// change, matching the unified-diff convention.
const ContextLines = 3

// Engine computes diffs with a small result cache keyed on content hash:
// diffing the same file pair again on the same Engine returns the cached
// hunks.
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map
}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp}
}

type cacheKey struct{ oldHash, newHash uint64 }

// ComputeHunks diffs oldContent against newContent and returns the
// resulting hunks.
func (e *Engine) ComputeHunks(oldContent, newContent string) []Hunk {
	key := cacheKey{hash(oldContent), hash(newContent)}
	if cached, ok := e.cache.Load(key); ok {
		return cached.([]Hunk)
	}

	a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	ops := toOperations(diffs)
	hunks := groupIntoHunks(ops, ContextLines)
	e.cache.Store(key, hunks)
	return hunks
}

type operation struct {
	typ     LineType
	oldLine int
	newLine int
	content string
}

func toOperations(diffs []diffmatchpatch.Diff) []operation {
	var ops []operation
	oldLine, newLine := 0, 0
	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, operation{LineContext, oldLine, newLine, line})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, operation{LineRemoved, oldLine, -1, line})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, operation{LineAdded, -1, newLine, line})
				newLine++
			}
		}
	}
	return ops
}

func groupIntoHunks(ops []operation, contextLines int) []Hunk {
	if len(ops) == 0 {
		return nil
	}

	var hunks []Hunk
	var current *Hunk
	lastChange := -1

	for i, op := range ops {
		isChange := op.typ != LineContext
		if isChange {
			if current == nil {
				current = &Hunk{}
				start := i - contextLines
				if start < 0 {
					start = 0
				}
				for j := start; j < i; j++ {
					if ops[j].typ == LineContext {
						current.Lines = append(current.Lines, Line{ops[j].oldLine + 1, ops[j].content, LineContext})
					}
				}
				if start < len(ops) {
					current.OldStart = ops[start].oldLine + 1
					current.NewStart = ops[start].newLine + 1
					if ops[start].oldLine < 0 {
						current.OldStart = 0
					}
					if ops[start].newLine < 0 {
						current.NewStart = 0
					}
				}
			}
			lastChange = i
		}

		if current != nil {
			lineNum := op.oldLine + 1
			if op.typ == LineAdded {
				lineNum = op.newLine + 1
			}
			current.Lines = append(current.Lines, Line{lineNum, op.content, op.typ})

			if op.typ == LineContext && i-lastChange > contextLines {
				trimTo := len(current.Lines) - (i - lastChange - contextLines)
				if trimTo > 0 && trimTo < len(current.Lines) {
					current.Lines = current.Lines[:trimTo]
				}
				computeCounts(current)
				hunks = append(hunks, *current)
				current = nil
			}
		}
	}

	if current != nil && len(current.Lines) > 0 {
		computeCounts(current)
		hunks = append(hunks, *current)
	}
	return hunks
}

func computeCounts(h *Hunk) {
	for _, l := range h.Lines {
		if l.Type == LineRemoved || l.Type == LineContext {
			h.OldCount++
		}
		if l.Type == LineAdded || l.Type == LineContext {
			h.NewCount++
		}
	}
}

func hash(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
