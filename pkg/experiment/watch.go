package experiment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/vjranagit/scandata/pkg/decoder"
)

// Watch reloads the recording whenever it (or its electrophysiology sidecar)
// is rewritten, for files still being appended to by an acquisition process.
// Writes are debounced. A reload that fails to decode keeps the current data.
// Every stage listener is notified after a successful reload.
//
// Watching stops when ctx is cancelled or the experiment is closed.
func (e *Experiment) Watch(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.watching {
		return errors.New("already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// The directory is watched rather than the file so that replacing the
	// file by rename is seen too.
	dir := filepath.Dir(e.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.watching = true
	e.stop = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer watcher.Close()
		e.watchLoop(ctx, watcher)
	}()

	e.logger.Info("watching recording", zap.String("path", e.path), zap.Duration("debounce", e.debounce))
	return nil
}

func (e *Experiment) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	targets := map[string]bool{
		filepath.Clean(e.path): true,
	}
	if e.format == "tsm" {
		targets[filepath.Clean(decoder.SidecarPath(e.path))] = true
	}

	timer := time.NewTimer(e.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !targets[filepath.Clean(event.Name)] || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(e.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			e.logger.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			e.reload()
		}
	}
}

// reload re-decodes the recording and swaps its items in place
func (e *Experiment) reload() {
	res, err := build(e.path, e.settings, e.logger)
	if err != nil {
		reloadTotal.WithLabelValues(resultError).Inc()
		e.logger.Warn("reload failed, keeping current data", zap.String("path", e.path), zap.Error(err))
		return
	}

	e.repo.ReplaceSource(e.source, res.Objects)
	if err := e.cache.Clear(); err != nil {
		e.logger.Debug("failed to clear result cache", zap.Error(err))
	}
	e.mu.Lock()
	e.header = res.Header
	e.mu.Unlock()
	reloadTotal.WithLabelValues(resultOK).Inc()

	e.logger.Info("recording reloaded", zap.String("path", e.path), zap.Int("frames", res.Header.Frames))
	for _, name := range e.chain.Names() {
		if s, err := e.chain.Stage(name); err == nil {
			s.Observer().Notify(name)
		}
	}
}
