package graph

import "sort"

// Cycles finds the reference cycles in the graph as strongly connected
// components with more than one node, using Tarjan's algorithm. Each
// component and the component list itself are sorted by identity key so
// reports are stable across runs.
func Cycles(s *Store) [][]*Node {
	t := &tarjan{
		store:   s,
		indices: make(map[int64]int, s.Len()),
		lowLink: make(map[int64]int, s.Len()),
		onStack: make(map[int64]bool, s.Len()),
	}
	for _, n := range s.arena {
		if _, visited := t.indices[n.id]; !visited {
			t.strongConnect(n.id)
		}
	}

	out := make([][]*Node, 0, len(t.sccs))
	for _, scc := range t.sccs {
		nodes := make([]*Node, len(scc))
		for i, id := range scc {
			nodes[i] = s.arena[id]
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Key < nodes[j].Key })
		out = append(out, nodes)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0].Key < out[j][0].Key })
	return out
}

type tarjan struct {
	store   *Store
	index   int
	stack   []int64
	onStack map[int64]bool
	indices map[int64]int
	lowLink map[int64]int
	sccs    [][]int64
}

func (t *tarjan) strongConnect(nodeID int64) {
	t.indices[nodeID] = t.index
	t.lowLink[nodeID] = t.index
	t.index++

	t.stack = append(t.stack, nodeID)
	t.onStack[nodeID] = true

	for _, succ := range t.store.arena[nodeID].out {
		if succ == nodeID {
			continue
		}
		if _, visited := t.indices[succ]; !visited {
			t.strongConnect(succ)
			t.lowLink[nodeID] = min(t.lowLink[nodeID], t.lowLink[succ])
		} else if t.onStack[succ] {
			t.lowLink[nodeID] = min(t.lowLink[nodeID], t.indices[succ])
		}
	}

	if t.lowLink[nodeID] == t.indices[nodeID] {
		var scc []int64
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == nodeID {
				break
			}
		}
		// Single nodes are not cycles.
		if len(scc) > 1 {
			t.sccs = append(t.sccs, scc)
		}
	}
}
