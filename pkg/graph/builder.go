package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/whatevertogo/asset-analyzer/pkg/logging"
	"github.com/whatevertogo/asset-analyzer/pkg/record"
)

// DefaultCacheTTL is how long a built graph stays valid when the builder
// is not explicitly invalidated.
const DefaultCacheTTL = 30 * time.Second

// Builder produces graph stores from a record source and keeps the most
// recent build around for the validity window. The builder cannot detect
// record-set changes on its own; whoever mutates the underlying set must
// call Invalidate.
type Builder struct {
	source    record.Source
	extractor record.ReferenceExtractor
	ttl       time.Duration

	buildMu sync.Mutex // serializes rebuilds

	mu      sync.Mutex // guards the cached snapshot
	cached  *Store
	builtAt time.Time
	now     func() time.Time // test seam
}

// NewBuilder wires a builder to its collaborators. ttl <= 0 selects
// DefaultCacheTTL.
func NewBuilder(source record.Source, extractor record.ReferenceExtractor, ttl time.Duration) *Builder {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Builder{
		source:    source,
		extractor: extractor,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Build runs a total rebuild: one node per record, then one edge per
// extracted reference, self-references excluded. A failing extractor
// only costs that record its outgoing edges; the build continues. The
// fresh store replaces the cached one. At most one rebuild runs at a
// time; concurrent callers queue behind it.
func (b *Builder) Build(ctx context.Context) (*Store, error) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()
	return b.build(ctx)
}

func (b *Builder) build(ctx context.Context) (*Store, error) {
	if b.source == nil {
		return nil, fmt.Errorf("graph build: no record source")
	}
	records, err := b.source.ListAll()
	if err != nil {
		return nil, fmt.Errorf("graph build: listing records: %w", err)
	}
	if records == nil {
		return nil, fmt.Errorf("graph build: record source returned nil set")
	}

	start := b.now()
	store := NewStore()

	for _, r := range records {
		if r == nil {
			continue
		}
		store.AddNode(r)
	}

	var extractionFailures int
	for _, r := range records {
		if r == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("graph build: %w", err)
		}
		refs, err := b.referencesOf(r)
		if err != nil {
			extractionFailures++
			logging.Warn("reference extraction failed, record contributes no edges",
				"key", r.Key, "error", err)
			continue
		}
		for _, ref := range refs {
			if ref == nil || ref.Key == r.Key {
				continue
			}
			store.AddDependency(r, ref)
		}
	}

	b.mu.Lock()
	b.cached = store
	b.builtAt = b.now()
	b.mu.Unlock()

	logging.Info("reference graph built",
		"records", store.Len(),
		"edges", store.EdgeCount(),
		"extractionFailures", extractionFailures,
		"durationMs", b.now().Sub(start).Milliseconds(),
	)
	return store, nil
}

// referencesOf shields the build loop from a panicking extractor; a
// panic degrades to a per-record error like any other extraction
// failure.
func (b *Builder) referencesOf(r *record.Record) (refs []*record.Record, err error) {
	if b.extractor == nil {
		return nil, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			refs = nil
			err = fmt.Errorf("extractor panic: %v", rec)
		}
	}()
	return b.extractor.ReferencesOf(r)
}

// Graph returns the cached store while it is still inside the validity
// window, rebuilding synchronously otherwise. Concurrent callers that
// find the cache expired share a single rebuild: the first one runs it,
// the rest wait on the build lock and pick up its result.
func (b *Builder) Graph(ctx context.Context) (*Store, error) {
	if store, ok := b.snapshot(); ok {
		return store, nil
	}

	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	// The rebuild may have finished while this caller waited for the
	// lock.
	if store, ok := b.snapshot(); ok {
		return store, nil
	}
	return b.build(ctx)
}

// snapshot returns the cached store if it is still inside the validity
// window.
func (b *Builder) snapshot() (*Store, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cached != nil && b.now().Sub(b.builtAt) < b.ttl {
		return b.cached, true
	}
	return nil, false
}

// Invalidate unconditionally drops the cached graph. The next Graph call
// rebuilds.
func (b *Builder) Invalidate() {
	b.mu.Lock()
	b.cached = nil
	b.builtAt = time.Time{}
	b.mu.Unlock()
	logging.Debug("graph cache invalidated")
}
