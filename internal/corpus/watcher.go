package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// batchWindow is the quiet period after the last event before a batch of
// changed assets is handed to the callback.
const batchWindow = 2 * time.Second

// WatchAssets monitors a corpus tree for asset file changes and invokes
// onBatch with the changed identifiers once events settle. Blocks until
// the context is cancelled.
func WatchAssets(ctx context.Context, root string, onBatch func(ctx context.Context, changed []string) error) error {
	patterns, err := LoadIgnoreFile(root)
	if err != nil {
		patterns = nil // Continue without gitignore
	}

	allPatterns := patterns
	for _, p := range defaultIgnorePatterns {
		allPatterns = append(allPatterns, gitignore.ParsePattern(p, nil))
	}
	for _, p := range ReservedPrefixes {
		allPatterns = append(allPatterns, gitignore.ParsePattern(p, nil))
	}
	matcher := gitignore.NewMatcher(allPatterns)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the entire tree recursively
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if shouldSkipDir(info.Name(), path, root, matcher) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(batchWindow)
	batchTimer.Stop() // Don't start yet

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isAssetFile(filepath.Base(event.Name)) {
				continue
			}

			relPath, err := filepath.Rel(root, event.Name)
			if err != nil {
				continue
			}
			relPath = filepath.ToSlash(relPath)

			if matcher.Match(splitPath(relPath), false) {
				continue
			}

			changed[relPath] = true
			batchTimer.Reset(batchWindow)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}

			batch := make([]string, 0, len(changed))
			for path := range changed {
				batch = append(batch, path)
			}
			changed = make(map[string]bool)

			if err := onBatch(ctx, batch); err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Error processing changes: %v\n", err)
			}
		}
	}
}
