package compiler

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/adalundhe/lattice/core/errors"
)

// DefaultWatchDebounce coalesces editor save bursts into one recompile.
const DefaultWatchDebounce = 500 * time.Millisecond

// Watch monitors the manifest file and re-runs the pipeline after each
// debounced change until ctx is cancelled. Compile failures are logged and
// watching continues; the committed baseline is untouched by a failed run.
func Watch(ctx context.Context, runner *Runner, manifestPath string, debounce time.Duration, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.KindConfiguration, err, "create watcher")
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save,
	// which drops a direct file watch.
	dir := filepath.Dir(manifestPath)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrap(errors.KindConfiguration, err, "watch %s", dir)
	}
	target := filepath.Clean(manifestPath)

	logger.Info("watching for changes",
		slog.String("manifest", manifestPath),
		slog.Duration("debounce", debounce))

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := recompile(ctx, runner, manifestPath, logger); err != nil {
				logger.Error("recompile failed", slog.Any("error", err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", slog.Any("error", err))
		}
	}
}

func recompile(ctx context.Context, runner *Runner, manifestPath string, logger *slog.Logger) error {
	source, err := NewManifestSource(manifestPath)
	if err != nil {
		return err
	}
	runner.source = source

	_, stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("recompiled",
		slog.Int("compiled", stats.Compiled),
		slog.Int("reused", stats.Reused),
		slog.Int("deleted", stats.Deleted))
	return nil
}
