package graph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/whatevertogo/asset-analyzer/pkg/record"
)

// fakeSource is an in-memory record source with scripted references.
type fakeSource struct {
	records []*record.Record
	refs    map[string][]*record.Record
	fail    map[string]bool // keys whose extraction errors
	panics  map[string]bool // keys whose extraction panics
}

func (f *fakeSource) ListAll() ([]*record.Record, error) {
	return f.records, nil
}

func (f *fakeSource) LoadByKey(key string) (*record.Record, error) {
	for _, r := range f.records {
		if r.Key == key {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeSource) ReferencesOf(r *record.Record) ([]*record.Record, error) {
	if f.fail[r.Key] {
		return nil, errors.New("extraction failed")
	}
	if f.panics[r.Key] {
		panic("extractor exploded")
	}
	return f.refs[r.Key], nil
}

func newFakeSource(keys ...string) *fakeSource {
	f := &fakeSource{
		refs:   make(map[string][]*record.Record),
		fail:   make(map[string]bool),
		panics: make(map[string]bool),
	}
	for _, key := range keys {
		f.records = append(f.records, rec(key))
	}
	return f
}

func (f *fakeSource) get(key string) *record.Record {
	r, _ := f.LoadByKey(key)
	return r
}

func TestBuildCreatesNodesAndEdges(t *testing.T) {
	src := newFakeSource("a", "b", "c")
	src.refs["a"] = []*record.Record{src.get("b"), src.get("c")}

	b := NewBuilder(src, src, 0)
	store, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if store.Len() != 3 {
		t.Errorf("node count = %d, want 3", store.Len())
	}
	if store.EdgeCount() != 2 {
		t.Errorf("edge count = %d, want 2", store.EdgeCount())
	}
	if got := nodeKeys(store.DependenciesOf("a")); len(got) != 2 {
		t.Errorf("DependenciesOf(a) = %v, want [b c]", got)
	}
}

func TestBuildExcludesSelfReferences(t *testing.T) {
	src := newFakeSource("a", "b")
	src.refs["a"] = []*record.Record{src.get("a"), src.get("b")}

	b := NewBuilder(src, src, 0)
	store, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := nodeKeys(store.DependenciesOf("a")); len(got) != 1 || got[0] != "b" {
		t.Errorf("DependenciesOf(a) = %v, want [b] (self-reference dropped)", got)
	}
}

func TestBuildToleratesExtractionFailures(t *testing.T) {
	src := newFakeSource("bad", "panicky", "good", "target")
	src.fail["bad"] = true
	src.panics["panicky"] = true
	src.refs["good"] = []*record.Record{src.get("target")}

	b := NewBuilder(src, src, 0)
	store, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() should survive per-record failures, got %v", err)
	}

	if store.Len() != 4 {
		t.Errorf("node count = %d, want 4 (failing records still get nodes)", store.Len())
	}
	if len(store.DependenciesOf("bad")) != 0 || len(store.DependenciesOf("panicky")) != 0 {
		t.Error("failing records should contribute zero edges")
	}
	if got := nodeKeys(store.DependenciesOf("good")); len(got) != 1 || got[0] != "target" {
		t.Errorf("DependenciesOf(good) = %v, want [target]", got)
	}
}

func TestBuildRejectsMissingSource(t *testing.T) {
	b := NewBuilder(nil, nil, 0)
	if _, err := b.Build(context.Background()); err == nil {
		t.Error("Build() without a source should error")
	}
}

func TestGraphCaching(t *testing.T) {
	src := newFakeSource("a")
	b := NewBuilder(src, src, 30*time.Second)

	clock := time.Unix(1000, 0)
	b.now = func() time.Time { return clock }

	first, err := b.Graph(context.Background())
	if err != nil {
		t.Fatalf("Graph() error = %v", err)
	}

	// Inside the validity window the same store is served.
	clock = clock.Add(10 * time.Second)
	second, err := b.Graph(context.Background())
	if err != nil {
		t.Fatalf("Graph() error = %v", err)
	}
	if first != second {
		t.Error("Graph() inside the TTL should return the cached store")
	}

	// Past the window it rebuilds.
	clock = clock.Add(31 * time.Second)
	third, err := b.Graph(context.Background())
	if err != nil {
		t.Fatalf("Graph() error = %v", err)
	}
	if third == second {
		t.Error("Graph() past the TTL should rebuild")
	}
}

// gatedSource counts ListAll calls and can hold callers inside the
// listing until the test releases them.
type gatedSource struct {
	*fakeSource
	mu      sync.Mutex
	calls   int
	gate    chan struct{} // nil means ungated
	entered chan struct{}
}

func (g *gatedSource) ListAll() ([]*record.Record, error) {
	g.mu.Lock()
	g.calls++
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		g.entered <- struct{}{}
		<-gate
	}
	return g.fakeSource.ListAll()
}

func (g *gatedSource) listCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestGraphSharesOneRebuildAcrossCallers(t *testing.T) {
	src := &gatedSource{
		fakeSource: newFakeSource("a"),
		entered:    make(chan struct{}, 2),
	}
	b := NewBuilder(src, src, 30*time.Second)

	clock := time.Unix(1000, 0)
	b.now = func() time.Time { return clock }

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// Expire the cache and hold the next listing open so the second
	// caller arrives while the first is mid-rebuild.
	clock = clock.Add(31 * time.Second)
	src.mu.Lock()
	src.gate = make(chan struct{})
	src.mu.Unlock()

	stores := make(chan *Store, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			store, err := b.Graph(context.Background())
			if err != nil {
				errs <- err
				return
			}
			stores <- store
		}()
	}

	<-src.entered
	select {
	case <-src.entered:
		t.Fatal("second caller started its own rebuild instead of waiting")
	case <-time.After(100 * time.Millisecond):
	}
	close(src.gate)

	var got []*Store
	for len(got) < 2 {
		select {
		case store := <-stores:
			got = append(got, store)
		case err := <-errs:
			t.Fatalf("Graph() error = %v", err)
		case <-time.After(2 * time.Second):
			t.Fatal("concurrent Graph() calls never finished")
		}
	}
	if got[0] != got[1] {
		t.Error("concurrent callers should receive the same rebuilt store")
	}
	if calls := src.listCalls(); calls != 2 {
		t.Errorf("ListAll called %d times, want 2 (initial build + one shared rebuild)", calls)
	}
}

func TestInvalidateForcesRebuild(t *testing.T) {
	src := newFakeSource("a")
	b := NewBuilder(src, src, time.Hour)

	first, err := b.Graph(context.Background())
	if err != nil {
		t.Fatalf("Graph() error = %v", err)
	}

	b.Invalidate()

	second, err := b.Graph(context.Background())
	if err != nil {
		t.Fatalf("Graph() error = %v", err)
	}
	if first == second {
		t.Error("Graph() after Invalidate should rebuild even inside the TTL")
	}
}
