package formula

import (
	"fmt"
	"sort"
)

// Node is one template line viewed as a vertex in the dependency graph. Refs
// lists the line codes the node's formula mentions; data lines have none.
type Node struct {
	Code string
	Refs []string
}

// Order returns the evaluation order for the given nodes such that every
// formula line follows the lines it references. Kahn's algorithm with a
// lexicographically sorted frontier keeps the order deterministic. Cycles are
// broken by appending the remaining members in lexicographic code order, each
// reported as a warning.
func Order(nodes []Node) ([]string, []string) {
	known := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		known[n.Code] = struct{}{}
	}

	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)
	for _, n := range nodes {
		if _, ok := indegree[n.Code]; !ok {
			indegree[n.Code] = 0
		}
		for _, ref := range n.Refs {
			if ref == n.Code {
				continue
			}
			if _, ok := known[ref]; !ok {
				// References to event codes or external symbols are not edges.
				continue
			}
			indegree[n.Code]++
			dependents[ref] = append(dependents[ref], n.Code)
		}
	}

	frontier := make([]string, 0, len(nodes))
	for code, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, code)
		}
	}
	sort.Strings(frontier)

	ordered := make([]string, 0, len(nodes))
	for len(frontier) > 0 {
		code := frontier[0]
		frontier = frontier[1:]
		ordered = append(ordered, code)
		released := make([]string, 0)
		for _, dep := range dependents[code] {
			indegree[dep]--
			if indegree[dep] == 0 {
				released = append(released, dep)
			}
		}
		if len(released) > 0 {
			frontier = append(frontier, released...)
			sort.Strings(frontier)
		}
	}

	var warnings []string
	if len(ordered) < len(nodes) {
		remaining := make([]string, 0, len(nodes)-len(ordered))
		for code, deg := range indegree {
			if deg > 0 {
				remaining = append(remaining, code)
			}
		}
		sort.Strings(remaining)
		for _, code := range remaining {
			warnings = append(warnings, fmt.Sprintf("circular formula reference involving line %s; evaluated after acyclic lines", code))
		}
		ordered = append(ordered, remaining...)
	}
	return ordered, warnings
}
