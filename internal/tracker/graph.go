package tracker

import (
	"fmt"

	"github.com/gammazero/toposort"
)

// ResolutionOrder orders task ids so that every blocking task precedes
// every task it blocks, using the dependency edges (From blocks To).
// Duplicate edges are tolerated; an edge referencing an id outside ids is
// rejected. A cyclic graph is reported as a conflict error — writes do not
// guard against cycles, so this is where one surfaces.
func ResolutionOrder(ids []int64, deps []Edge) ([]int64, error) {
	known := make(map[int64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	hasEdge := make(map[int64]bool)
	var edges []toposort.Edge
	for _, dep := range deps {
		if !known[dep.From] {
			return nil, fmt.Errorf("dependency edge references unknown task %d", dep.From)
		}
		if !known[dep.To] {
			return nil, fmt.Errorf("dependency edge references unknown task %d", dep.To)
		}
		edges = append(edges, toposort.Edge{dep.From, dep.To})
		hasEdge[dep.From] = true
		hasEdge[dep.To] = true
	}

	// Isolated tasks still belong in the order; anchor them to nil.
	for _, id := range ids {
		if !hasEdge[id] {
			edges = append(edges, toposort.Edge{nil, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, Conflictf("dependency graph contains a cycle")
	}

	order := make([]int64, 0, len(ids))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(int64))
		}
	}

	if len(order) != len(ids) {
		return nil, fmt.Errorf("topological sort lost %d tasks", len(ids)-len(order))
	}

	return order, nil
}
