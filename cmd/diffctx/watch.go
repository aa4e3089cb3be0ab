package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// watchCmd re-runs the selection pipeline whenever a file under the
// workspace changes, so the context tree stays current while editing.
var watchCmd = &cobra.Command{
	Use:   "watch <diff-range>",
	Short: "Re-run diff-context selection whenever a tracked file changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), args[0])
	},
}

const debounceWindow = 300 * time.Millisecond

func runWatch(ctx context.Context, diffRange string) error {
	root, err := resolvedWorkspace()
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTreeToWatcher(watcher, root); err != nil {
		return fmt.Errorf("watch tree: %w", err)
	}

	if logger != nil {
		logger.Info("watching for changes", zap.String("root", root))
	}
	if err := runOnce(ctx, diffRange); err != nil {
		fmt.Fprintln(os.Stderr, "diffctx:", err)
	}

	var debounce *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldIgnoreEvent(root, event.Name) {
				continue
			}
			if debounce == nil {
				debounce = time.AfterFunc(debounceWindow, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			} else {
				debounce.Reset(debounceWindow)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if logger != nil {
				logger.Warn("watch error", zap.Error(werr))
			}
		case <-trigger:
			if err := runOnce(ctx, diffRange); err != nil {
				fmt.Fprintln(os.Stderr, "diffctx:", err)
			}
		}
	}
}

func addTreeToWatcher(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if shouldSkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func shouldSkipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", ".diffctx":
		return true
	default:
		return false
	}
}

func shouldIgnoreEvent(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(rel, ".git") || strings.HasPrefix(rel, ".diffctx")
}
