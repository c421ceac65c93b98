package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// rewriteSettle is how long the GFA must stay quiet after a change
// before the pipeline reruns. Graph files are written in many chunks;
// rerunning on the first event would analyze a torn file.
const rewriteSettle = 2 * time.Second

// Watch monitors the request's GFA file and reruns the pipeline after
// every settled change, handing each outcome to onRun. Blocks until the
// context is cancelled.
func Watch(ctx context.Context, req Request, onRun func(*Result, error)) error {
	return watch(ctx, req, onRun, rewriteSettle)
}

func watch(ctx context.Context, req Request, onRun func(*Result, error), settleAfter time.Duration) error {
	target, err := filepath.Abs(req.GFA)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", req.GFA, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the containing directory rather than the file itself. Most
	// writers replace the file by rename, which would orphan a watch on
	// the old inode.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	settle := time.NewTimer(settleAfter)
	settle.Stop() // Don't start yet

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !concernsTarget(event, target) {
				continue
			}
			settle.Reset(settleAfter)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-settle.C:
			res, err := Run(ctx, req)
			onRun(res, err)
		}
	}
}

// concernsTarget reports whether an event means the watched GFA has new
// content. A Rename on the target is the old inode moving away; the
// replacement arrives as a Create and restarts the settle timer anyway.
func concernsTarget(event fsnotify.Event, target string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != target {
		return false
	}
	return event.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename)
}
