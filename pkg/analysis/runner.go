// Package analysis orchestrates the reload → rebuild → publish cycle
// that keeps the served graph in sync with the catalog on disk.
package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/whatevertogo/asset-analyzer/pkg/catalog"
	"github.com/whatevertogo/asset-analyzer/pkg/graph"
	"github.com/whatevertogo/asset-analyzer/pkg/logging"
	"github.com/whatevertogo/asset-analyzer/pkg/pubsub"
	"github.com/whatevertogo/asset-analyzer/pkg/schema"
	"github.com/whatevertogo/asset-analyzer/pkg/watcher"
)

// Runner owns one catalog, one schema registry, and one graph builder,
// and rebuilds in response to change events.
type Runner struct {
	catalog   *catalog.Catalog
	registry  *schema.Registry
	builder   *graph.Builder
	publisher pubsub.Publisher
	mu        sync.Mutex // prevents overlapping runs
}

// NewRunner wires a runner to its collaborators. The publisher may be
// nil for CLI runs that have no subscribers.
func NewRunner(cat *catalog.Catalog, reg *schema.Registry, b *graph.Builder, pub pubsub.Publisher) *Runner {
	return &Runner{
		catalog:   cat,
		registry:  reg,
		builder:   b,
		publisher: pub,
	}
}

// Run reloads the catalog, invalidates the graph cache, rebuilds, and
// publishes the result. reason shows up in logs and status events.
func (r *Runner) Run(ctx context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	logging.Info("starting analysis run", "reason", reason)
	r.publishStatus("loading", "Reloading catalog: "+reason)

	if err := r.catalog.Reload(); err != nil {
		r.publishStatus("error", fmt.Sprintf("Catalog reload failed: %v", err))
		return fmt.Errorf("analysis run: %w", err)
	}

	r.builder.Invalidate()
	r.publishStatus("building", "Rebuilding reference graph")

	store, err := r.builder.Build(ctx)
	if err != nil {
		r.publishStatus("error", fmt.Sprintf("Graph build failed: %v", err))
		return fmt.Errorf("analysis run: %w", err)
	}

	stats := store.Stats()
	r.publishStatus("ready", "Analysis complete")
	r.publishGraph(stats)
	return nil
}

// HandleChange reacts to one debounced catalog change. Schema changes
// additionally clear the field descriptor cache, since declared kinds
// may have moved under cached descriptors.
func (r *Runner) HandleChange(ctx context.Context, ev watcher.ChangeEvent) {
	if ev.Type == watcher.ChangeTypeSchema {
		r.registry.Clear()
	}

	reason := "record files changed"
	if ev.Type == watcher.ChangeTypeSchema {
		reason = "schema changed"
	}
	if err := r.Run(ctx, reason); err != nil {
		logging.Error("change-triggered analysis failed", "error", err)
	}
}

// Watch consumes debounced change events until the context ends.
func (r *Runner) Watch(ctx context.Context, changes <-chan watcher.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-changes:
			if !ok {
				return
			}
			r.HandleChange(ctx, ev)
		}
	}
}

func (r *Runner) publishStatus(state, message string) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.Publish(pubsub.TopicCatalogStatus, state, pubsub.CatalogStatus{
		State:   state,
		Message: message,
	})
	if err != nil {
		logging.Warn("failed to publish status", "state", state, "error", err)
	}
}

func (r *Runner) publishGraph(stats graph.Stats) {
	if r.publisher == nil {
		return
	}
	err := r.publisher.Publish(pubsub.TopicGraph, "rebuilt", pubsub.GraphSummary{
		Nodes:   stats.Nodes,
		Edges:   stats.Edges,
		Orphans: stats.Orphans,
		Ready:   true,
	})
	if err != nil {
		logging.Warn("failed to publish graph summary", "error", err)
	}
}
