package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MSB0095/sol-beast-sub004/internal/logger"
)

// WatchStrategy re-reads the config file whenever it changes on disk and
// delivers the new strategy section through onUpdate. Only the strategy
// thresholds are hot-reloadable; endpoints and program IDs stay fixed for
// the process lifetime. Returns once ctx is cancelled.
func WatchStrategy(ctx context.Context, path string, onUpdate func(StrategyConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: most editors replace the file atomically, which
	// drops a watch registered on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			logger.Warnf("[CONFIG] reload rejected: %v", err)
			return
		}
		logger.Infof("[CONFIG] strategy thresholds reloaded (tp=%.1f%% sl=%.1f%% timeout=%s)",
			cfg.Strategy.TakeProfitPct, cfg.Strategy.StopLossPct, cfg.Strategy.Timeout)
		onUpdate(cfg.Strategy)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("[CONFIG] watch error: %v", err)
		}
	}
}
