// Package goprofile implements the structured-code fragment profile for Go
// source files: go/parser with comments retained, one fragment per
// top-level declaration (doc comment included), chunk fragments over the
// gaps between declarations.
package goprofile

import (
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/codenerd-labs/diffctx/internal/fragment"
)

func init() {
	fragment.Register(profile{})
}

type profile struct{}

func (profile) Extensions() []string { return []string{".go"} }

func (profile) Fragment(path string, content []byte) ([]fragment.Fragment, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, fragment.ErrParseFailed
	}

	lines := fragment.SplitLines(string(content))
	totalLines := len(lines)

	var frags []fragment.Fragment
	var occupied [][2]int

	for _, decl := range file.Decls {
		start := fset.Position(decl.Pos()).Line
		end := fset.Position(decl.End()).Line

		kind := fragment.KindFunction
		switch d := decl.(type) {
		case *ast.FuncDecl:
			kind = fragment.KindFunction
			if doc := d.Doc; doc != nil {
				start = fset.Position(doc.Pos()).Line
			}
		case *ast.GenDecl:
			if d.Tok == token.TYPE {
				kind = fragment.KindClass
			} else {
				kind = fragment.KindChunk
			}
			if doc := d.Doc; doc != nil {
				start = fset.Position(doc.Pos()).Line
			}
			// Nested type specs (possible in a single `type (...)` block)
			// each get their own fragment strictly inside the GenDecl span.
			if d.Tok == token.TYPE && len(d.Specs) > 1 {
				for _, spec := range d.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					ss := fset.Position(ts.Pos()).Line
					se := fset.Position(ts.End()).Line
					frags = append(frags, fragment.NewCodeFragment(path, ss, se, fragment.KindClass,
						fragment.JoinRange(lines, ss-1, se)))
				}
			}
		}

		if end > totalLines {
			end = totalLines
		}
		if start < 1 {
			start = 1
		}
		frags = append(frags, fragment.NewCodeFragment(path, start, end, kind, fragment.JoinRange(lines, start-1, end)))
		occupied = append(occupied, [2]int{start, end})
	}

	if totalLines > 0 {
		frags = append(frags, fragment.FillGaps(path, lines, occupied, totalLines)...)
	}
	return frags, nil
}
