// Package watcher turns file system activity in a catalog directory into
// debounced change events, so the owner of the graph builder knows when
// to reload and invalidate.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/whatevertogo/asset-analyzer/pkg/catalog"
	"github.com/whatevertogo/asset-analyzer/pkg/logging"
)

// ChangeType distinguishes schema changes (which invalidate cached field
// descriptors too) from record changes.
type ChangeType int

const (
	ChangeTypeSchema ChangeType = iota
	ChangeTypeRecords
)

// ChangeEvent represents a batch of catalog file changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// CatalogWatcher watches a catalog directory for schema and record file
// changes.
type CatalogWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	events  chan ChangeEvent
}

// NewCatalogWatcher creates a watcher for the given catalog directory.
func NewCatalogWatcher(dir string) (*CatalogWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &CatalogWatcher{
		watcher: fsw,
		dir:     dir,
		events:  make(chan ChangeEvent, 100),
	}, nil
}

// Start begins watching. The watcher runs until the context is canceled.
func (cw *CatalogWatcher) Start(ctx context.Context) error {
	if err := cw.watcher.Add(cw.dir); err != nil {
		return fmt.Errorf("failed to watch catalog directory %s: %w", cw.dir, err)
	}
	logging.Info("watching catalog directory", "path", cw.dir)

	go cw.processEvents(ctx)
	return nil
}

// Events returns the channel of raw (pre-debounce) change events.
func (cw *CatalogWatcher) Events() <-chan ChangeEvent {
	return cw.events
}

// processEvents batches raw fsnotify events so one save doesn't emit a
// write event per chunk.
func (cw *CatalogWatcher) processEvents(ctx context.Context) {
	var schemaFiles []string
	var recordFiles []string

	flushTimer := time.NewTimer(100 * time.Millisecond)
	flushTimer.Stop()

	flush := func() {
		if len(schemaFiles) > 0 {
			cw.events <- ChangeEvent{
				Type:      ChangeTypeSchema,
				Paths:     schemaFiles,
				Timestamp: time.Now(),
			}
			schemaFiles = nil
		}
		if len(recordFiles) > 0 {
			cw.events <- ChangeEvent{
				Type:      ChangeTypeRecords,
				Paths:     recordFiles,
				Timestamp: time.Now(),
			}
			recordFiles = nil
		}
	}

	// Every exit path flushes what accumulated and closes the event
	// channel so downstream consumers unblock.
	shutdown := func() {
		flush()
		cw.watcher.Close()
		close(cw.events)
	}

	for {
		select {
		case <-ctx.Done():
			shutdown()
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				shutdown()
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			name := filepath.Base(event.Name)
			if name == catalog.SchemaFileName {
				schemaFiles = append(schemaFiles, event.Name)
				flushTimer.Reset(100 * time.Millisecond)
			} else if strings.HasSuffix(name, ".json") {
				recordFiles = append(recordFiles, event.Name)
				flushTimer.Reset(100 * time.Millisecond)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				shutdown()
				return
			}
			logging.Warn("catalog watcher error", "error", err)

		case <-flushTimer.C:
			flush()
		}
	}
}
