package graph

import "github.com/whatevertogo/asset-analyzer/pkg/record"

// NodeStats is the per-record statistics snapshot.
type NodeStats struct {
	Key             string `json:"key"`
	ReferenceCount  int    `json:"referenceCount"`
	DependencyCount int    `json:"dependencyCount"`
	IsOrphan        bool   `json:"isOrphan"`
}

// ShortestPath finds a minimum-edge-count path from one record to another
// following the dependency direction (from → its dependencies → theirs).
// Breadth-first search with the frontier expanded in edge insertion order
// keeps the result deterministic; a visited set keeps cycles from looping
// it. The path includes both endpoints, so from == to yields a single
// node. It returns nil when either endpoint is absent or no path exists.
func ShortestPath(s *Store, fromKey, toKey string) []*Node {
	from, ok := s.Node(fromKey)
	if !ok {
		return nil
	}
	to, ok := s.Node(toKey)
	if !ok {
		return nil
	}
	if from.id == to.id {
		return []*Node{from}
	}

	parent := make(map[int64]int64, s.Len())
	visited := make(map[int64]bool, s.Len())
	visited[from.id] = true

	queue := []int64{from.id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range s.arena[cur].out {
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = cur
			if next == to.id {
				return reconstructPath(s, from.id, to.id, parent)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func reconstructPath(s *Store, fromID, toID int64, parent map[int64]int64) []*Node {
	var reversed []*Node
	for id := toID; ; id = parent[id] {
		reversed = append(reversed, s.arena[id])
		if id == fromID {
			break
		}
	}
	path := make([]*Node, len(reversed))
	for i, n := range reversed {
		path[len(path)-1-i] = n
	}
	return path
}

// FindOrphans returns the unreferenced nodes, skipping any whose record
// type matches an excluded type name. Exclusion covers derived types too,
// so a container base type suppresses its whole family of
// expected-unreferenced roots.
func FindOrphans(s *Store, excludedTypes ...string) []*Node {
	var out []*Node
	for _, n := range s.OrphanNodes() {
		if n.Record != nil && n.Record.Type != nil && typeExcluded(n.Record.Type, excludedTypes) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func typeExcluded(t *record.Type, excluded []string) bool {
	for _, name := range excluded {
		if name != "" && t.IsA(name) {
			return true
		}
	}
	return false
}

// StatsFor reports the statistics snapshot for one record identity. A
// key the last build never saw degrades to zero counts and orphan=true
// rather than an error.
func StatsFor(s *Store, key string) NodeStats {
	n, ok := s.Node(key)
	if !ok {
		return NodeStats{Key: key, IsOrphan: true}
	}
	return NodeStats{
		Key:             n.Key,
		ReferenceCount:  n.ReferenceCount(),
		DependencyCount: n.DependencyCount(),
		IsOrphan:        n.IsOrphan(),
	}
}
