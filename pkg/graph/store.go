// Package graph builds and analyzes the record reference graph: who
// points to whom, what is unreferenced, and how records connect.
package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/whatevertogo/asset-analyzer/pkg/logging"
	"github.com/whatevertogo/asset-analyzer/pkg/record"
)

// Node is one vertex of the reference graph, wrapping a record. Nodes are
// arena-allocated; within one store, lookups of the same identity key
// always return the same *Node.
type Node struct {
	id     int64
	Key    string
	Record *record.Record

	out []int64 // dependency ids, insertion order
	in  []int64 // dependent ids, insertion order
}

// DependencyCount is the number of records this node points to.
func (n *Node) DependencyCount() int { return len(n.out) }

// ReferenceCount is the number of records pointing to this node.
func (n *Node) ReferenceCount() int { return len(n.in) }

// IsOrphan reports whether nothing references this node.
func (n *Node) IsOrphan() bool { return len(n.in) == 0 }

// Stats is a whole-graph statistics snapshot.
type Stats struct {
	Nodes        int     `json:"nodes"`
	Edges        int     `json:"edges"`
	Orphans      int     `json:"orphans"`
	AvgOutDegree float64 `json:"avgOutDegree"`
}

// Store owns the nodes and directed edges of one graph generation. It is
// populated by a single build pass and read-only afterwards; a rebuild
// produces a new store, never mutates an old one.
type Store struct {
	dg    *simple.DirectedGraph
	arena []*Node
	ids   map[string]int64
	edges int
}

// NewStore creates an empty graph store.
func NewStore() *Store {
	return &Store{
		dg:  simple.NewDirectedGraph(),
		ids: make(map[string]int64),
	}
}

// AddNode registers a record as a graph node. It is idempotent by
// identity key: re-adding the same key returns the existing node.
func (s *Store) AddNode(r *record.Record) *Node {
	if r == nil {
		return nil
	}
	if id, ok := s.ids[r.Key]; ok {
		return s.arena[id]
	}

	id := int64(len(s.arena))
	n := &Node{id: id, Key: r.Key, Record: r}
	s.arena = append(s.arena, n)
	s.ids[r.Key] = id
	s.dg.AddNode(simple.Node(id))
	return n
}

// AddDependency inserts the edge from → to, creating either endpoint if
// missing. The edge pair is symmetric: to appears in from's dependencies
// and from in to's dependents, exactly once no matter how often the same
// pair is added. Self-loops are expected to be filtered by the caller;
// the store tolerates them but logs the anomaly.
func (s *Store) AddDependency(from, to *record.Record) {
	if from == nil || to == nil {
		return
	}
	fn := s.AddNode(from)
	tn := s.AddNode(to)

	if fn.id == tn.id {
		logging.Warn("self-referencing edge added to graph", "key", fn.Key)
	}
	if s.dg.HasEdgeFromTo(fn.id, tn.id) {
		return
	}
	if fn.id != tn.id {
		// gonum rejects self-loop edges; the adjacency slices below
		// still record them so counts stay honest.
		s.dg.SetEdge(s.dg.NewEdge(simple.Node(fn.id), simple.Node(tn.id)))
	} else {
		for _, o := range fn.out {
			if o == tn.id {
				return
			}
		}
	}

	fn.out = append(fn.out, tn.id)
	tn.in = append(tn.in, fn.id)
	s.edges++
}

// Node returns the node for an identity key.
func (s *Store) Node(key string) (*Node, bool) {
	id, ok := s.ids[key]
	if !ok {
		return nil, false
	}
	return s.arena[id], true
}

// Nodes returns all nodes in insertion order.
func (s *Store) Nodes() []*Node {
	out := make([]*Node, len(s.arena))
	copy(out, s.arena)
	return out
}

// Len returns the node count.
func (s *Store) Len() int { return len(s.arena) }

// EdgeCount returns the number of distinct edge pairs.
func (s *Store) EdgeCount() int { return s.edges }

// DependenciesOf returns the records a node points to, in the order the
// edges were inserted.
func (s *Store) DependenciesOf(key string) []*Node {
	n, ok := s.Node(key)
	if !ok {
		return nil
	}
	return s.resolve(n.out)
}

// DependentsOf returns the records pointing at a node, in the order the
// edges were inserted.
func (s *Store) DependentsOf(key string) []*Node {
	n, ok := s.Node(key)
	if !ok {
		return nil
	}
	return s.resolve(n.in)
}

func (s *Store) resolve(ids []int64) []*Node {
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = s.arena[id]
	}
	return out
}

// OrphanNodes returns every node with zero dependents, in insertion
// order.
func (s *Store) OrphanNodes() []*Node {
	var orphans []*Node
	for _, n := range s.arena {
		if n.IsOrphan() {
			orphans = append(orphans, n)
		}
	}
	return orphans
}

// MostReferenced returns up to n nodes ordered by dependent count
// descending. Ties break on identity key ascending so rankings are
// deterministic across runs.
func (s *Store) MostReferenced(n int) []*Node {
	if n <= 0 {
		return nil
	}
	ranked := make([]*Node, len(s.arena))
	copy(ranked, s.arena)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.ReferenceCount() != b.ReferenceCount() {
			return a.ReferenceCount() > b.ReferenceCount()
		}
		return a.Key < b.Key
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// Stats computes a statistics snapshot for the whole graph.
func (s *Store) Stats() Stats {
	st := Stats{
		Nodes: len(s.arena),
		Edges: s.edges,
	}
	for _, n := range s.arena {
		if n.IsOrphan() {
			st.Orphans++
		}
	}
	if st.Nodes > 0 {
		st.AvgOutDegree = float64(st.Edges) / float64(st.Nodes)
	}
	return st
}
