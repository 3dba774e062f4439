package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/whatevertogo/asset-analyzer/pkg/catalog"
	"github.com/whatevertogo/asset-analyzer/pkg/graph"
	"github.com/whatevertogo/asset-analyzer/pkg/pubsub"
	"github.com/whatevertogo/asset-analyzer/pkg/schema"
	"github.com/whatevertogo/asset-analyzer/pkg/watcher"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newFixture(t *testing.T) (*catalog.Catalog, string) {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "schema.json", `{
	  "types": [
	    {"name": "Item", "fields": [
	      {"name": "name", "kind": "string"},
	      {"name": "next", "kind": "ref"}
	    ]}
	  ]
	}`)
	writeFixture(t, dir, "a.json", `{"key": "a", "type": "Item", "fields": {"next": {"$ref": "b"}}}`)
	writeFixture(t, dir, "b.json", `{"key": "b", "type": "Item", "fields": {}}`)

	cat, err := catalog.Open(dir)
	if err != nil {
		t.Fatalf("catalog.Open() error = %v", err)
	}
	return cat, dir
}

func TestRunRebuildsAndPublishes(t *testing.T) {
	cat, dir := newFixture(t)
	reg := schema.NewRegistry()
	builder := graph.NewBuilder(cat, cat, time.Hour)
	pub := pubsub.NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic(pubsub.TopicGraph, pubsub.TopicConfig{BufferSize: 1})

	runner := NewRunner(cat, reg, builder, pub)

	// Add a record after opening; Run's reload must pick it up.
	writeFixture(t, dir, "c.json", `{"key": "c", "type": "Item", "fields": {"next": {"$ref": "a"}}}`)

	if err := runner.Run(context.Background(), "test"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	store, err := builder.Graph(context.Background())
	if err != nil {
		t.Fatalf("Graph() error = %v", err)
	}
	if store.Len() != 3 {
		t.Errorf("graph has %d nodes, want 3", store.Len())
	}
	if store.EdgeCount() != 2 {
		t.Errorf("graph has %d edges, want 2", store.EdgeCount())
	}

	// The rebuild summary was published and buffered.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := pub.Subscribe(ctx, pubsub.TopicGraph)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	select {
	case ev := <-sub.Events():
		if ev.Type != "rebuilt" {
			t.Errorf("event type = %s, want rebuilt", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no graph event published")
	}
}

func TestHandleChangeSchemaClearsDescriptorCache(t *testing.T) {
	cat, _ := newFixture(t)
	reg := schema.NewRegistry()
	builder := graph.NewBuilder(cat, cat, time.Hour)
	runner := NewRunner(cat, reg, builder, nil)

	itemType, _ := cat.Type("Item")
	reg.Resolve(itemType, "name")
	if reg.Len() == 0 {
		t.Fatal("expected a cached descriptor")
	}

	runner.HandleChange(context.Background(), watcher.ChangeEvent{
		Type:  watcher.ChangeTypeSchema,
		Paths: []string{"schema.json"},
	})

	if reg.Len() != 0 {
		t.Errorf("descriptor cache has %d entries after schema change, want 0", reg.Len())
	}
}
