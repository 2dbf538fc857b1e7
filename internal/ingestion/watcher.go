package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Benny93/taxon-go/internal/config"
	"github.com/Benny93/taxon-go/internal/ontology"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 2 * time.Second

// WatchOptions tunes WatchSnapshot.
type WatchOptions struct {
	// Debounce delays a reload until the snapshot stopped changing.
	Debounce time.Duration

	// OnReload, when set, is called after every reload attempt.
	OnReload func(result *PipelineResult, err error)
}

// WatchSnapshot rebuilds the ontology whenever the snapshot file changes and
// publishes each successful build through holder. A failed rebuild is logged
// and the previous ontology keeps serving. Blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, so snapshots replaced
// by rename are picked up as well.
func WatchSnapshot(ctx context.Context, cfg *config.Config, holder *ontology.Holder, logger *zap.Logger, opts WatchOptions) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.RequireSnapshot(); err != nil {
		return err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	target, err := filepath.Abs(cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", cfg.Snapshot, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	batchTimer := time.NewTimer(opts.Debounce)
	batchTimer.Stop()
	pending := false

	logger.Info("watching snapshot for changes", zap.String("snapshot", target))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isSnapshotChange(event, target) {
				continue
			}
			pending = true
			batchTimer.Reset(opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))

		case <-batchTimer.C:
			if !pending {
				continue
			}
			pending = false
			reload(ctx, cfg, holder, logger, opts.OnReload)
		}
	}
}

func reload(ctx context.Context, cfg *config.Config, holder *ontology.Holder, logger *zap.Logger, onReload func(*PipelineResult, error)) {
	o, result, err := RunPipeline(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("reloading snapshot failed, keeping previous ontology",
			zap.String("snapshot", cfg.Snapshot),
			zap.Error(err),
		)
	} else {
		holder.Swap(o)
		logger.Info("snapshot reloaded",
			zap.Int("nodes", result.Nodes),
			zap.Int("edges", result.Edges),
		)
	}
	if onReload != nil {
		onReload(result, err)
	}
}

// isSnapshotChange reports whether event modifies or replaces target.
func isSnapshotChange(event fsnotify.Event, target string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
