// Package tsprofile implements the structured-code fragment profile for
// Python, JavaScript/TypeScript, and Rust: a single table-driven walker
// over each language's Tree-sitter grammar, emitting function/class
// fragments (nested definitions included) and chunk fragments over the
// gaps.
package tsprofile

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codenerd-labs/diffctx/internal/fragment"
)

// lang describes one Tree-sitter grammar's node-type vocabulary.
type lang struct {
	extensions []string
	shebangs   []string // interpreter names recognized in a #! first line
	grammar    *sitter.Language
	funcNodes  map[string]struct{}
	classNodes map[string]struct{}
}

var languages = []lang{
	{
		extensions: []string{".py", ".pyw"},
		shebangs:   []string{"python"},
		grammar:    python.GetLanguage(),
		funcNodes:  set("function_definition"),
		classNodes: set("class_definition"),
	},
	{
		extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		shebangs:   []string{"node"},
		grammar:    javascript.GetLanguage(),
		funcNodes:  set("function_declaration", "method_definition", "arrow_function"),
		classNodes: set("class_declaration"),
	},
	{
		extensions: []string{".ts", ".tsx"},
		grammar:    typescript.GetLanguage(),
		funcNodes:  set("function_declaration", "method_definition", "arrow_function"),
		classNodes: set("class_declaration", "interface_declaration"),
	},
	{
		extensions: []string{".rs"},
		grammar:    rust.GetLanguage(),
		funcNodes:  set("function_item"),
		classNodes: set("struct_item", "trait_item", "impl_item", "enum_item"),
	},
}

func set(vals ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

func init() {
	for _, l := range languages {
		fragment.Register(profile{lang: l})
	}
}

type profile struct{ lang lang }

func (p profile) Extensions() []string { return p.lang.extensions }

// MatchesShebang implements fragment.ShebangSniffer: an extension-less
// script whose "#!" line names one of this language's interpreters is
// dispatched here.
func (p profile) MatchesShebang(firstLine string) bool {
	for _, name := range p.lang.shebangs {
		if strings.Contains(firstLine, name) {
			return true
		}
	}
	return false
}

func (p profile) Fragment(path string, content []byte) ([]fragment.Fragment, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.lang.grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fragment.ErrParseFailed
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fragment.ErrParseFailed
	}

	lines := fragment.SplitLines(string(content))
	totalLines := len(lines)

	var frags []fragment.Fragment
	var occupied [][2]int

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			typ := child.Type()

			_, isFunc := p.lang.funcNodes[typ]
			_, isClass := p.lang.classNodes[typ]

			if isFunc || isClass {
				kind := fragment.KindFunction
				if isClass {
					kind = fragment.KindClass
				}
				start := int(child.StartPoint().Row) + 1
				end := int(child.EndPoint().Row) + 1
				start = extendForLeadingComments(lines, start)
				if end > totalLines {
					end = totalLines
				}
				frags = append(frags, fragment.NewCodeFragment(path, start, end, kind,
					fragment.JoinRange(lines, start-1, end)))
				occupied = append(occupied, [2]int{start, end})

				// Nested definitions (methods inside a class body) are
				// emitted in addition to, not instead of, the enclosing
				// fragment -- recurse into the child regardless of kind.
				walk(child)
				continue
			}
			walk(child)
		}
	}
	walk(root)

	if totalLines > 0 {
		frags = append(frags, fragment.FillGaps(path, lines, occupied, totalLines)...)
	}
	return frags, nil
}

// extendForLeadingComments walks start upward over contiguous
// comment/decorator lines immediately preceding the definition, stopping
// at a blank line gap.
func extendForLeadingComments(lines []string, start int) int {
	i := start - 2 // 0-based index of the line before start
	extended := start
	for i >= 0 {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			break
		}
		if isCommentOrDecoratorLine(trimmed) {
			extended = i + 1
			i--
			continue
		}
		break
	}
	return extended
}

func isCommentOrDecoratorLine(line string) bool {
	switch {
	case strings.HasPrefix(line, "//"):
		return true
	case strings.HasPrefix(line, "#"):
		return true
	case strings.HasPrefix(line, "*"), strings.HasPrefix(line, "/*"), strings.HasPrefix(line, "\"\"\""):
		return true
	case strings.HasPrefix(line, "@"):
		return true
	default:
		return false
	}
}
