// Package dag provides directed graph operations over parameter dependencies.
// It supports cycle detection, topological ordering and downstream traversal.
package dag

import (
	"cmp"
	"fmt"
	"slices"
)

// Graph is a directed graph keyed by any ordered ID type.
// Edges point from parent to child (child depends on parent).
type Graph[K cmp.Ordered] struct {
	nodes   map[K]struct{}
	edges   map[K][]K // parent -> children (dependents)
	parents map[K][]K // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph[K cmp.Ordered]() *Graph[K] {
	return &Graph[K]{
		nodes:   make(map[K]struct{}),
		edges:   make(map[K][]K),
		parents: make(map[K][]K),
	}
}

// AddNode adds a node to the graph. Adding an existing node is a no-op.
func (g *Graph[K]) AddNode(id K) {
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = struct{}{}
	g.edges[id] = nil
	g.parents[id] = nil
}

// HasNode reports whether id is in the graph.
func (g *Graph[K]) HasNode(id K) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge adds a directed edge from parent to child.
// Duplicate edges are collapsed.
func (g *Graph[K]) AddEdge(parentID, childID K) error {
	if !g.HasNode(parentID) {
		return fmt.Errorf("parent node %v does not exist", parentID)
	}
	if !g.HasNode(childID) {
		return fmt.Errorf("child node %v does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %v", parentID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// Parents returns the direct parents of a node.
func (g *Graph[K]) Parents(id K) []K {
	return g.parents[id]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph[K]) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph[K]) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph[K]) HasCycle() (bool, []K) {
	visited := make(map[K]bool)
	recStack := make(map[K]bool)
	path := make(map[K]K)

	var cyclePath []K

	var dfs func(id K) bool
	dfs = func(id K) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				cyclePath = []K{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]K{curr}, cyclePath...)
				}
				cyclePath = append([]K{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	// Walk in sorted order so the reported cycle is stable.
	for _, id := range g.sortedIDs() {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// TopologicalSort returns node IDs with every parent before its children.
// Ties are broken by ascending ID. Returns an error if the graph has a cycle.
func (g *Graph[K]) TopologicalSort() ([]K, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	visited := make(map[K]bool, len(g.nodes))
	result := make([]K, 0, len(g.nodes))

	var visit func(id K)
	visit = func(id K) {
		if visited[id] {
			return
		}
		visited[id] = true

		parents := slices.Clone(g.parents[id])
		slices.Sort(parents)
		for _, parentID := range parents {
			visit(parentID)
		}
		result = append(result, id)
	}

	for _, id := range g.sortedIDs() {
		visit(id)
	}
	return result, nil
}

// Descendants returns every node downstream of the given nodes, excluding
// the given nodes themselves unless they are reachable from another one.
func (g *Graph[K]) Descendants(ids ...K) []K {
	seen := make(map[K]bool)

	var mark func(id K)
	mark = func(id K) {
		for _, childID := range g.edges[id] {
			if !seen[childID] {
				seen[childID] = true
				mark(childID)
			}
		}
	}
	for _, id := range ids {
		mark(id)
	}
	return sortedKeys(seen)
}

// Ancestors returns all nodes upstream of the given node.
func (g *Graph[K]) Ancestors(id K) []K {
	seen := make(map[K]bool)

	var mark func(nodeID K)
	mark = func(nodeID K) {
		for _, parentID := range g.parents[nodeID] {
			if !seen[parentID] {
				seen[parentID] = true
				mark(parentID)
			}
		}
	}
	mark(id)
	return sortedKeys(seen)
}

func (g *Graph[K]) sortedIDs() []K {
	ids := make([]K, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func sortedKeys[K cmp.Ordered](set map[K]bool) []K {
	out := make([]K, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
