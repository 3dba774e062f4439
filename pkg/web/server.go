// Package web exposes the query engine and graph analytics over a small
// JSON HTTP API, plus an SSE stream of rebuild events.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/whatevertogo/asset-analyzer/pkg/catalog"
	"github.com/whatevertogo/asset-analyzer/pkg/graph"
	"github.com/whatevertogo/asset-analyzer/pkg/logging"
	"github.com/whatevertogo/asset-analyzer/pkg/pubsub"
	"github.com/whatevertogo/asset-analyzer/pkg/query"
	"github.com/whatevertogo/asset-analyzer/pkg/record"
	"github.com/whatevertogo/asset-analyzer/pkg/schema"
)

// Server serves the analyzer API.
type Server struct {
	router    *mux.Router
	catalog   *catalog.Catalog
	registry  *schema.Registry
	builder   *graph.Builder
	publisher *pubsub.SSEPublisher
}

// NewServer creates the API server around the shared analyzer state.
func NewServer(cat *catalog.Catalog, reg *schema.Registry, b *graph.Builder, pub *pubsub.SSEPublisher) *Server {
	pub.ConfigureTopic(pubsub.TopicCatalogStatus, pubsub.TopicConfig{BufferSize: 10})
	pub.ConfigureTopic(pubsub.TopicGraph, pubsub.TopicConfig{BufferSize: 5})

	s := &Server{
		router:    mux.NewRouter(),
		catalog:   cat,
		registry:  reg,
		builder:   b,
		publisher: pub,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(logging.RequestIDMiddleware)

	api.HandleFunc("/records", s.handleRecords).Methods("GET")
	api.HandleFunc("/query", s.handleQuery).Methods("POST")
	api.HandleFunc("/graph", s.handleGraph).Methods("GET")
	api.HandleFunc("/orphans", s.handleOrphans).Methods("GET")
	api.HandleFunc("/top", s.handleTop).Methods("GET")
	api.HandleFunc("/path", s.handlePath).Methods("GET")
	api.HandleFunc("/cycles", s.handleCycles).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")
}

// Serve blocks serving HTTP on the given port.
func (s *Server) Serve(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("serving analyzer API", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// recordSummary is the wire shape of a record listing entry.
type recordSummary struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.catalog.ListAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]recordSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, recordSummary{Key: rec.Key, Type: rec.TypeName()})
	}
	writeJSON(w, out)
}

// conditionDoc is the wire shape of one query condition.
type conditionDoc struct {
	Field   string      `json:"field"`
	Op      string      `json:"op"`
	Value   interface{} `json:"value,omitempty"`
	Enabled *bool       `json:"enabled,omitempty"` // default true
}

// queryDoc is the wire shape of a condition group.
type queryDoc struct {
	Combinator string         `json:"combinator"` // "and" (default) or "or"
	Conditions []conditionDoc `json:"conditions"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var doc queryDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid query document: %w", err))
		return
	}

	group, err := buildGroup(doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	records, err := s.catalog.ListAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	matched := query.Run(s.registry, group, records)
	out := make([]recordSummary, 0, len(matched))
	for _, rec := range matched {
		out = append(out, recordSummary{Key: rec.Key, Type: rec.TypeName()})
	}
	writeJSON(w, out)
}

func buildGroup(doc queryDoc) (*query.Group, error) {
	combinator := query.And
	switch strings.ToLower(doc.Combinator) {
	case "", "and":
	case "or":
		combinator = query.Or
	default:
		return nil, fmt.Errorf("unknown combinator %q", doc.Combinator)
	}

	group := query.NewGroup(combinator)
	for _, c := range doc.Conditions {
		op, ok := query.OpFromName(c.Op)
		if !ok {
			return nil, fmt.Errorf("unknown operator %q", c.Op)
		}
		cond := query.NewCondition(c.Field, op, jsonValue(c.Value))
		if c.Enabled != nil {
			cond.Enabled = *c.Enabled
		}
		group.Conditions = append(group.Conditions, cond)
	}
	return group, nil
}

// jsonValue maps a decoded JSON comparison value onto the tagged value
// type. Integral numbers become ints so equality against int fields is
// exact.
func jsonValue(v interface{}) record.Value {
	switch x := v.(type) {
	case nil:
		return record.Null()
	case bool:
		return record.Bool(x)
	case string:
		return record.String(x)
	case float64:
		if x == float64(int64(x)) {
			return record.Int(int64(x))
		}
		return record.Float(x)
	default:
		return record.String(fmt.Sprintf("%v", x))
	}
}

// graphNode and graphEdge are the wire shapes of the graph snapshot.
type graphNode struct {
	Key             string `json:"key"`
	Type            string `json:"type"`
	ReferenceCount  int    `json:"referenceCount"`
	DependencyCount int    `json:"dependencyCount"`
}

type graphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type graphDoc struct {
	Nodes []graphNode `json:"nodes"`
	Edges []graphEdge `json:"edges"`
	Stats graph.Stats `json:"stats"`
}

func (s *Server) graph(r *http.Request) (*graph.Store, error) {
	return s.builder.Graph(r.Context())
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	store, err := s.graph(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	doc := graphDoc{Stats: store.Stats()}
	for _, n := range store.Nodes() {
		doc.Nodes = append(doc.Nodes, graphNode{
			Key:             n.Key,
			Type:            n.Record.TypeName(),
			ReferenceCount:  n.ReferenceCount(),
			DependencyCount: n.DependencyCount(),
		})
		for _, dep := range store.DependenciesOf(n.Key) {
			doc.Edges = append(doc.Edges, graphEdge{From: n.Key, To: dep.Key})
		}
	}
	writeJSON(w, doc)
}

func (s *Server) handleOrphans(w http.ResponseWriter, r *http.Request) {
	store, err := s.graph(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var excluded []string
	if raw := r.URL.Query().Get("exclude"); raw != "" {
		excluded = strings.Split(raw, ",")
	}

	out := make([]recordSummary, 0)
	for _, n := range graph.FindOrphans(store, excluded...) {
		out = append(out, recordSummary{Key: n.Key, Type: n.Record.TypeName()})
	}
	writeJSON(w, out)
}

type rankedNode struct {
	Key            string `json:"key"`
	Type           string `json:"type"`
	ReferenceCount int    `json:"referenceCount"`
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	store, err := s.graph(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid n %q", raw))
			return
		}
		n = parsed
	}

	out := make([]rankedNode, 0, n)
	for _, node := range store.MostReferenced(n) {
		out = append(out, rankedNode{
			Key:            node.Key,
			Type:           node.Record.TypeName(),
			ReferenceCount: node.ReferenceCount(),
		})
	}
	writeJSON(w, out)
}

type pathDoc struct {
	Found bool     `json:"found"`
	Path  []string `json:"path,omitempty"`
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("from and to are required"))
		return
	}

	store, err := s.graph(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	path := graph.ShortestPath(store, from, to)
	doc := pathDoc{Found: path != nil}
	for _, n := range path {
		doc.Path = append(doc.Path, n.Key)
	}
	writeJSON(w, doc)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	store, err := s.graph(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([][]string, 0)
	for _, cycle := range graph.Cycles(store) {
		keys := make([]string, len(cycle))
		for i, n := range cycle {
			keys[i] = n.Key
		}
		out = append(out, keys)
	}
	writeJSON(w, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	store, err := s.graph(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if key := r.URL.Query().Get("key"); key != "" {
		writeJSON(w, graph.StatsFor(store, key))
		return
	}
	writeJSON(w, store.Stats())
}

// handleEvents streams pub/sub events for one topic as SSE.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = pubsub.TopicGraph
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "SSE write failed, dropping subscriber", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

type errorDoc struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorDoc{Error: err.Error()})
}
