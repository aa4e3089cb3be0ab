package walk_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codenerd-labs/diffctx/internal/walk"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestEnumerateNeighbors_SkipsDefaultIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "vendor/dep.go", "package dep\n")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")

	rules, err := walk.LoadRules(root)
	require.NoError(t, err)

	got, err := walk.EnumerateNeighbors(context.Background(), root, nil, rules)
	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{"main.go"}, got)
}

func TestEnumerateNeighbors_ExcludesAlreadyChangedPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "b.go", "package b\n")

	rules, err := walk.LoadRules(root)
	require.NoError(t, err)

	got, err := walk.EnumerateNeighbors(context.Background(), root, []string{"a.go"}, rules)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go"}, got)
}

func TestLoadRules_MergesIgnoreFilePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".diffctxignore", "*.generated.go\n# comment\n\nscratch/\n")
	writeFile(t, root, "keep.go", "package keep\n")
	writeFile(t, root, "x.generated.go", "package x\n")
	writeFile(t, root, "scratch/tmp.go", "package scratch\n")

	rules, err := walk.LoadRules(root)
	require.NoError(t, err)

	got, err := walk.EnumerateNeighbors(context.Background(), root, nil, rules)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.go"}, got)
}

func TestReadFile_DetectsBinaryViaNullByte(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "bin.dat")
	require.NoError(t, os.WriteFile(full, []byte{0x50, 0x00, 0x51}, 0o644))

	content, ok, err := walk.ReadFile(full)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, content)
}

func TestReadFile_DecodesValidUTF8(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "hello.go")
	require.NoError(t, os.WriteFile(full, []byte("package hello\n"), 0o644))

	content, ok, err := walk.ReadFile(full)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "package hello\n", content)
}
