// Package vcsgit implements the driver's VCS adapter contracts by shelling
// out to the git binary: a thin RunGit wrapper, every call scoped to a
// working directory and a context.Context, errors wrapped with the failing
// command's stderr.
package vcsgit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/codenerd-labs/diffctx/internal/diffengine"
)

// Hunk is the adapter-level hunk shape the driver consumes: path, old/new
// start+len, addition/deletion flags, and the raw hunk body text.
type Hunk struct {
	Path       string
	OldStart   int
	OldLen     int
	NewStart   int
	NewLen     int
	IsAddition bool
	IsDeletion bool
	Body       string
}

// RunGit executes git with args in dir and returns trimmed stdout.
func RunGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(string(out)), nil
}

// resolvedRange splits a diff range into the two endpoints to
// diff: a triple-dot range ("A...B") diffs against the merge base and is
// passed straight through to git, a double-dot range ("A..B") is a direct
// two-ref comparison, and a bare ref ("HEAD", a branch, a tag) diffs that
// ref against the working tree.
type resolvedRange struct {
	gitArg string // argument(s) suitable for `git diff <gitArg>`
	oldRef string // ref to read pre-image content from
	newRef string // ref to read post-image content from; "" means working tree
}

func resolveRange(diffRange string) resolvedRange {
	if left, right, ok := strings.Cut(diffRange, "..."); ok && right != "" {
		return resolvedRange{gitArg: diffRange, oldRef: left, newRef: right}
	}
	if left, right, ok := strings.Cut(diffRange, ".."); ok && right != "" {
		return resolvedRange{gitArg: diffRange, oldRef: left, newRef: right}
	}
	return resolvedRange{gitArg: diffRange, oldRef: diffRange, newRef: ""}
}

// ChangedFiles returns the repo-relative paths modified in diffRange,
// never outside root.
func ChangedFiles(ctx context.Context, root, diffRange string) ([]string, error) {
	rr := resolveRange(diffRange)
	out, err := RunGit(ctx, root, "diff", "--name-only", rr.gitArg)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// GetDiffText returns the full unified diff text for diffRange, the input
// diffconcepts.Concepts consumes.
func GetDiffText(ctx context.Context, root, diffRange string) (string, error) {
	rr := resolveRange(diffRange)
	return RunGit(ctx, root, "diff", rr.gitArg)
}

// ParseDiff computes structured hunks for every file changed in diffRange,
// by reading each file's pre- and post-image content and running it
// through diffengine rather than hand-parsing git's own diff text.
func ParseDiff(ctx context.Context, root, diffRange string) ([]Hunk, error) {
	rr := resolveRange(diffRange)
	paths, err := ChangedFiles(ctx, root, diffRange)
	if err != nil {
		return nil, err
	}
	if strings.Contains(diffRange, "...") && rr.newRef != "" {
		left := rr.oldRef
		if left == "" {
			left = "HEAD"
		}
		base, err := RunGit(ctx, root, "merge-base", left, rr.newRef)
		if err != nil {
			return nil, err
		}
		rr.oldRef = base
	}

	engine := diffengine.NewEngine()
	var hunks []Hunk
	for _, path := range paths {
		oldContent, oldExisted := showFile(ctx, root, rr.oldRef, path)
		newContent, newExisted := readPostImage(ctx, root, rr.newRef, path)

		for _, h := range engine.ComputeHunks(oldContent, newContent) {
			hunks = append(hunks, Hunk{
				Path:       path,
				OldStart:   h.OldStart,
				OldLen:     h.OldCount,
				NewStart:   h.NewStart,
				NewLen:     h.NewCount,
				IsAddition: !oldExisted && newExisted,
				IsDeletion: oldExisted && !newExisted,
				Body:       renderHunkBody(h),
			})
		}
	}
	return hunks, nil
}

// PostImage returns path's content as of diffRange's new-side endpoint
// (the working tree for a bare ref, the named ref otherwise) — the content
// the driver fragments.
func PostImage(ctx context.Context, root, diffRange, path string) (content string, existed bool) {
	rr := resolveRange(diffRange)
	return readPostImage(ctx, root, rr.newRef, path)
}

func showFile(ctx context.Context, root, ref, path string) (content string, existed bool) {
	out, err := RunGit(ctx, root, "show", ref+":"+path)
	if err != nil {
		return "", false
	}
	return out, true
}

func readPostImage(ctx context.Context, root, ref, path string) (content string, existed bool) {
	if ref == "" {
		return readWorkingTreeFile(root, path)
	}
	return showFile(ctx, root, ref, path)
}

func readWorkingTreeFile(root, path string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(root, path))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func renderHunkBody(h diffengine.Hunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
	for _, line := range h.Lines {
		switch line.Type {
		case diffengine.LineAdded:
			b.WriteString("+")
		case diffengine.LineRemoved:
			b.WriteString("-")
		default:
			b.WriteString(" ")
		}
		b.WriteString(line.Content)
		b.WriteString("\n")
	}
	return b.String()
}
