package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// CycleWarning reports saga reactions that can trigger one another forever.
//
// Cycles are warnings, not errors: a reducer case or an unmount may break the
// loop at runtime.
type CycleWarning struct {
	Path    []string `json:"path"`    // e.g. ["Inc", "Seen", "Inc"]
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// reactionGraph maps an event type to the types its reactions emit.
type reactionGraph map[string][]string

// AnalyzeReactions detects reaction cycles in s.
//
// Emitted events come back to the task with the namespace prefix, which the
// saga strips before matching reactions, so an edge On -> Emit can fire again
// from Emit. Uses Tarjan's algorithm; every strongly connected component with
// more than one node, or a self-loop, is reported.
func AnalyzeReactions(s *SagaSpec) []CycleWarning {
	if s == nil || len(s.React) == 0 {
		return []CycleWarning{}
	}

	graph := make(reactionGraph)
	for _, r := range s.React {
		graph[r.On] = append(graph[r.On], r.Emit)
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleWarning(scc, graph))
		}
	}
	return warnings
}

func hasSelfLoop(node string, graph reactionGraph) bool {
	for _, next := range graph[node] {
		if next == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components. Nodes are visited in sorted
// order so the result is deterministic.
func tarjanSCC(graph reactionGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleWarning(scc []string, graph reactionGraph) CycleWarning {
	if len(scc) == 1 {
		return CycleWarning{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("reaction re-triggers itself: %s -> %s", scc[0], scc[0]),
			Level:   "warning",
		}
	}

	path := cyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("reaction cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// cyclePath walks the SCC from its smallest member back to itself.
func cyclePath(scc []string, graph reactionGraph) []string {
	members := make(map[string]bool, len(scc))
	start := scc[0]
	for _, node := range scc {
		members[node] = true
		if node < start {
			start = node
		}
	}

	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		next := ""
		for _, n := range graph[current] {
			if n == start && len(path) > 1 {
				return append(path, start)
			}
			if members[n] && !visited[n] {
				next = n
				break
			}
		}
		if next == "" {
			// Every member reached; close the loop.
			return append(path, start)
		}
		visited[next] = true
		path = append(path, next)
		current = next
	}
}
