package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch runs the pipeline once, then re-runs it whenever the book root
// changes, debounced by the configured quiet period. It blocks until the
// context is cancelled.
func (p *Pipeline) Watch(ctx context.Context) error {
	if _, err := p.Run(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := p.watchTree(watcher); err != nil {
		return err
	}

	debounce := time.Duration(p.cfg.WatchDebounceMillis) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	p.logger.Info("Watching for changes", zap.String("root", p.cfg.Root))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if p.ignoreEvent(event) {
				continue
			}
			// New book folders must be picked up by the watcher too.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("Watcher error", zap.Error(err))

		case <-timerC:
			timerC = nil
			p.logger.Info("Change detected, rescanning")
			if _, err := p.Run(ctx); err != nil {
				p.logger.Error("Rescan failed", zap.Error(err))
			}
		}
	}
}

// watchTree registers the root and every book folder.
func (p *Pipeline) watchTree(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(p.cfg.Root); err != nil {
		return err
	}
	entries, err := os.ReadDir(p.cfg.Root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			if err := watcher.Add(filepath.Join(p.cfg.Root, e.Name())); err != nil {
				p.logger.Warn("Failed to watch folder",
					zap.String("folder", e.Name()), zap.Error(err))
			}
		}
	}
	return nil
}

// ignoreEvent filters events from the output directory and editor
// temp files, which would otherwise trigger rescan loops.
func (p *Pipeline) ignoreEvent(event fsnotify.Event) bool {
	if out, err := filepath.Abs(p.cfg.Out); err == nil {
		if name, err := filepath.Abs(event.Name); err == nil {
			if strings.HasPrefix(name, out+string(filepath.Separator)) || name == out {
				return true
			}
		}
	}
	base := filepath.Base(event.Name)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".tmp")
}
