package driver

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codenerd-labs/diffctx/internal/fragment"
	"github.com/codenerd-labs/diffctx/internal/serialize"
	"github.com/codenerd-labs/diffctx/internal/vcsgit"
	"github.com/codenerd-labs/diffctx/internal/walk"
)

type fakeVCS struct {
	changed  []string
	hunks    []vcsgit.Hunk
	diffText string
	post     map[string]string
}

func (f *fakeVCS) ChangedFiles(ctx context.Context, root, diffRange string) ([]string, error) {
	return f.changed, nil
}

func (f *fakeVCS) ParseDiff(ctx context.Context, root, diffRange string) ([]vcsgit.Hunk, error) {
	return f.hunks, nil
}

func (f *fakeVCS) GetDiffText(ctx context.Context, root, diffRange string) (string, error) {
	return f.diffText, nil
}

func (f *fakeVCS) PostImage(ctx context.Context, root, diffRange, path string) (string, bool) {
	content, ok := f.post[path]
	return content, ok
}

type fakeWalker struct {
	files map[string]string // neighbor path -> content
}

func (fakeWalker) LoadRules(root string) (*walk.Rules, error) { return walk.LoadRules(root) }

func (w fakeWalker) EnumerateNeighbors(ctx context.Context, root string, changed []string, rules *walk.Rules) ([]string, error) {
	var paths []string
	for p := range w.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (w fakeWalker) ReadFile(path string) (string, bool, error) {
	content, ok := w.files[path]
	if !ok {
		return "", false, nil
	}
	return content, true, nil
}

func TestBuildDiffContext_EmptyDiffYieldsEmptyTree(t *testing.T) {
	vcs := &fakeVCS{changed: nil}
	tree, err := buildDiffContext(context.Background(), Config{RootDir: ".", DiffRange: "A..B", BudgetTokens: 1000}, vcs, fakeWalker{})
	require.NoError(t, err)
	assert.Equal(t, 0, tree.FragmentCount)
	assert.Empty(t, tree.Fragments)
}

func TestBuildDiffContext_RejectsInvalidAlpha(t *testing.T) {
	vcs := &fakeVCS{}
	_, err := buildDiffContext(context.Background(), Config{RootDir: ".", DiffRange: "A..B", BudgetTokens: 1000, Alpha: 1.2}, vcs, fakeWalker{})
	var precond *PreconditionError
	require.ErrorAs(t, err, &precond)
	assert.Equal(t, "alpha", precond.Field)
}

func TestBuildDiffContext_RejectsInvalidBudget(t *testing.T) {
	vcs := &fakeVCS{}
	_, err := buildDiffContext(context.Background(), Config{RootDir: ".", DiffRange: "A..B", BudgetTokens: 0}, vcs, fakeWalker{})
	var precond *PreconditionError
	require.ErrorAs(t, err, &precond)
	assert.Equal(t, "budget_tokens", precond.Field)
}

func TestBuildDiffContext_SingleFunctionChangeYieldsOneFragment(t *testing.T) {
	body := "def add(a,b):\n    return a-b\n"
	vcs := &fakeVCS{
		changed: []string{"calc.py"},
		hunks: []vcsgit.Hunk{
			{Path: "calc.py", OldStart: 1, OldLen: 2, NewStart: 1, NewLen: 2, Body: "@@ -1,2 +1,2 @@\n def add(a,b):\n-    return a+b\n+    return a-b\n"},
		},
		diffText: "--- a/calc.py\n+++ b/calc.py\n@@ -1,2 +1,2 @@\n def add(a,b):\n-    return a+b\n+    return a-b\n",
		post:     map[string]string{"calc.py": body},
	}
	tree, err := buildDiffContext(context.Background(), Config{RootDir: ".", DiffRange: "A..B", BudgetTokens: 10000}, vcs, fakeWalker{})
	require.NoError(t, err)
	require.Len(t, tree.Fragments, 1)
	want := serialize.TreeFragment{Path: "calc.py", Lines: "1-2", Kind: "function", Content: body}
	if diff := cmp.Diff(want, tree.Fragments[0]); diff != "" {
		t.Errorf("unexpected fragment (-want +got):\n%s", diff)
	}
}

func TestBuildDiffContext_FullIgnoresBudgetIncludesAllChangedFragments(t *testing.T) {
	body := "def add(a,b):\n    return a-b\n\n\ndef mul(a,b):\n    return a*b\n"
	vcs := &fakeVCS{
		changed: []string{"calc.py"},
		hunks: []vcsgit.Hunk{
			{Path: "calc.py", OldStart: 1, OldLen: 2, NewStart: 1, NewLen: 2, Body: "@@ -1,2 +1,2 @@\n def add(a,b):\n-    return a+b\n+    return a-b\n"},
		},
		diffText: "--- a/calc.py\n+++ b/calc.py\n@@ -1,2 +1,2 @@\n def add(a,b):\n-    return a+b\n+    return a-b\n",
		post:     map[string]string{"calc.py": body},
	}
	tree, err := buildDiffContext(context.Background(), Config{RootDir: ".", DiffRange: "A..B", BudgetTokens: 1, Full: true}, vcs, fakeWalker{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(tree.Fragments), 2)
}

func TestBuildDiffContext_CrossFileCallerCalleeExpansion(t *testing.T) {
	mainBody := "def main():\n    return helper()\n"
	utilBody := "def helper():\n    return 42\n"
	vcs := &fakeVCS{
		changed: []string{"main.py"},
		hunks: []vcsgit.Hunk{
			{Path: "main.py", OldStart: 1, OldLen: 2, NewStart: 1, NewLen: 2, Body: "@@ -1,2 +1,2 @@\n def main():\n-    return 0\n+    return helper()\n"},
		},
		diffText: "--- a/main.py\n+++ b/main.py\n@@ -1,2 +1,2 @@\n def main():\n-    return 0\n+    return helper()\n",
		post:     map[string]string{"main.py": mainBody},
	}
	walker := fakeWalker{files: map[string]string{"util.py": utilBody}}

	tree, err := buildDiffContext(context.Background(), Config{RootDir: ".", DiffRange: "A..B", BudgetTokens: 10000}, vcs, walker)
	require.NoError(t, err)

	paths := map[string]bool{}
	for _, f := range tree.Fragments {
		paths[f.Path] = true
	}
	assert.True(t, paths["main.py"], "changed file must be present as core")
	assert.True(t, paths["util.py"], "callee sharing the changed identifier should be pulled in")
}

func TestBuildDiffContext_AppendedFunctionSelectedWithoutUnchangedSibling(t *testing.T) {
	body := "def mul(a,b):\n    return a*b\n\n\ndef div(a,b):\n    return a/b\n"
	hunkBody := "@@ -1,2 +1,6 @@\n def mul(a,b):\n     return a*b\n+\n+\n+def div(a,b):\n+    return a/b\n"
	vcs := &fakeVCS{
		changed: []string{"calculator.py"},
		hunks: []vcsgit.Hunk{
			{Path: "calculator.py", OldStart: 1, OldLen: 2, NewStart: 1, NewLen: 6, Body: hunkBody},
		},
		diffText: "--- a/calculator.py\n+++ b/calculator.py\n" + hunkBody,
		post:     map[string]string{"calculator.py": body},
	}

	// Budget just above what the core fragments (the appended function and
	// the blank-line gap the hunk starts on) consume, so the unchanged mul
	// cannot also fit.
	frags, err := fragment.BuildFragments("calculator.py", []byte(body))
	require.NoError(t, err)
	coreTokens := 0
	for _, f := range frags {
		if f.Id.StartLine >= 3 {
			coreTokens += f.TokenCount
		}
	}
	require.Greater(t, coreTokens, 0)

	tree, err := buildDiffContext(context.Background(), Config{RootDir: ".", DiffRange: "A..B", BudgetTokens: coreTokens + 1}, vcs, fakeWalker{})
	require.NoError(t, err)

	var sawDiv, sawMul bool
	for _, f := range tree.Fragments {
		if strings.Contains(f.Content, "def div") {
			sawDiv = true
		}
		if strings.Contains(f.Content, "def mul") {
			sawMul = true
		}
	}
	assert.True(t, sawDiv, "appended function must be selected even though the hunk starts on a blank line")
	assert.False(t, sawMul, "unchanged sibling must not be selected under a core-sized budget")
}

func TestBuildDiffContext_RunTwiceIsIdentical(t *testing.T) {
	body := "def main():\n    return helper()\n"
	vcs := &fakeVCS{
		changed: []string{"main.py"},
		hunks: []vcsgit.Hunk{
			{Path: "main.py", OldStart: 1, OldLen: 2, NewStart: 1, NewLen: 2, Body: "@@ -1,2 +1,2 @@\n def main():\n-    return 0\n+    return helper()\n"},
		},
		diffText: "--- a/main.py\n+++ b/main.py\n@@ -1,2 +1,2 @@\n def main():\n-    return 0\n+    return helper()\n",
		post:     map[string]string{"main.py": body},
	}
	walker := fakeWalker{files: map[string]string{
		"util.py":  "def helper():\n    return 42\n",
		"other.py": "def unrelated():\n    return None\n",
	}}
	cfg := Config{RootDir: ".", DiffRange: "A..B", BudgetTokens: 5000}

	first, err := buildDiffContext(context.Background(), cfg, vcs, walker)
	require.NoError(t, err)
	second, err := buildDiffContext(context.Background(), cfg, vcs, walker)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("pipeline is not deterministic (-first +second):\n%s", diff)
	}
}
