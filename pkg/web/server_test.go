package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/whatevertogo/asset-analyzer/pkg/catalog"
	"github.com/whatevertogo/asset-analyzer/pkg/graph"
	"github.com/whatevertogo/asset-analyzer/pkg/pubsub"
	"github.com/whatevertogo/asset-analyzer/pkg/schema"
)

const testSchema = `{
  "types": [
    {"name": "Asset", "fields": [{"name": "name", "kind": "string"}]},
    {"name": "Monster", "base": "Asset", "fields": [
      {"name": "hp", "kind": "int"},
      {"name": "loot", "kind": "ref"}
    ]},
    {"name": "Item", "base": "Asset", "fields": []}
  ]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"schema.json": testSchema,
		"goblin.json": `{"key": "monsters/goblin", "type": "Monster", "fields": {
			"name": "Goblin", "hp": 10, "loot": {"$ref": "items/dagger"}
		}}`,
		"dragon.json": `{"key": "monsters/dragon", "type": "Monster", "fields": {
			"name": "Dragon", "hp": 200, "loot": {"$ref": "items/dagger"}
		}}`,
		"dagger.json": `{"key": "items/dagger", "type": "Item", "fields": {"name": "Dagger"}}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cat, err := catalog.Open(dir)
	if err != nil {
		t.Fatalf("catalog.Open() error = %v", err)
	}
	builder := graph.NewBuilder(cat, cat, time.Hour)
	return NewServer(cat, schema.NewRegistry(), builder, pubsub.NewSSEPublisher())
}

func doJSON(t *testing.T, s *Server, method, path, body string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decoding response: %v", method, path, err)
		}
	}
	return rec
}

func TestHandleRecords(t *testing.T) {
	s := newTestServer(t)

	var out []recordSummary
	rec := doJSON(t, s, "GET", "/api/records", "", &out)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(out) != 3 {
		t.Errorf("listed %d records, want 3", len(out))
	}
}

func TestHandleQuery(t *testing.T) {
	s := newTestServer(t)

	var out []recordSummary
	rec := doJSON(t, s, "POST", "/api/query",
		`{"combinator": "and", "conditions": [{"field": "hp", "op": "gt", "value": 50}]}`, &out)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(out) != 1 || out[0].Key != "monsters/dragon" {
		t.Errorf("hp > 50 matched %v, want [monsters/dragon]", out)
	}

	// OR group from the same endpoint.
	out = nil
	doJSON(t, s, "POST", "/api/query",
		`{"combinator": "or", "conditions": [
			{"field": "name", "op": "contains", "value": "go"},
			{"field": "hp", "op": "gt", "value": 100}
		]}`, &out)
	if len(out) != 2 {
		t.Errorf("disjunction matched %v, want both monsters", out)
	}

	// Bad operator rejects cleanly.
	rec = doJSON(t, s, "POST", "/api/query",
		`{"conditions": [{"field": "hp", "op": "between", "value": 1}]}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown operator: status = %d, want 400", rec.Code)
	}
}

func TestHandlePath(t *testing.T) {
	s := newTestServer(t)

	var out pathDoc
	rec := doJSON(t, s, "GET", "/api/path?from=monsters/goblin&to=items/dagger", "", &out)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !out.Found || len(out.Path) != 2 {
		t.Errorf("path = %+v, want goblin -> dagger", out)
	}

	out = pathDoc{}
	doJSON(t, s, "GET", "/api/path?from=items/dagger&to=monsters/goblin", "", &out)
	if out.Found {
		t.Errorf("reverse path should not exist, got %+v", out)
	}

	rec = doJSON(t, s, "GET", "/api/path?from=monsters/goblin", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing to: status = %d, want 400", rec.Code)
	}
}

func TestHandleOrphansAndTop(t *testing.T) {
	s := newTestServer(t)

	var orphans []recordSummary
	doJSON(t, s, "GET", "/api/orphans", "", &orphans)
	// Both monsters are unreferenced; the dagger is referenced twice.
	if len(orphans) != 2 {
		t.Errorf("orphans = %v, want the two monsters", orphans)
	}

	orphans = nil
	doJSON(t, s, "GET", "/api/orphans?exclude=Monster", "", &orphans)
	if len(orphans) != 0 {
		t.Errorf("excluded orphans = %v, want none", orphans)
	}

	var top []rankedNode
	doJSON(t, s, "GET", "/api/top?n=1", "", &top)
	if len(top) != 1 || top[0].Key != "items/dagger" || top[0].ReferenceCount != 2 {
		t.Errorf("top = %v, want [items/dagger refs=2]", top)
	}
}

func TestHandleStats(t *testing.T) {
	s := newTestServer(t)

	var stats graph.Stats
	doJSON(t, s, "GET", "/api/stats", "", &stats)
	if stats.Nodes != 3 || stats.Edges != 2 {
		t.Errorf("stats = %+v, want nodes=3 edges=2", stats)
	}

	var node graph.NodeStats
	doJSON(t, s, "GET", "/api/stats?key=items/dagger", "", &node)
	if node.ReferenceCount != 2 || node.IsOrphan {
		t.Errorf("dagger stats = %+v, want refs=2 orphan=false", node)
	}

	node = graph.NodeStats{}
	doJSON(t, s, "GET", "/api/stats?key=ghost", "", &node)
	if !node.IsOrphan || node.ReferenceCount != 0 {
		t.Errorf("ghost stats = %+v, want all-zero orphan", node)
	}
}
