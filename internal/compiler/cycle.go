package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/stimline/internal/timeline"
)

// CycleWarning reports a set of tasks that reference each other.
//
// Compile already skips a reference that would re-enter a task on the
// current expansion chain, so cycles never hang a run. They usually mean
// the author linked the wrong task and part of the experiment is missing.
type CycleWarning struct {
	Path    []string `json:"path"`    // ["task-a", "task-b", "task-a"]
	Message string   `json:"message"`
}

// AnalyzeTaskCycles finds task reference cycles across a task set.
//
// The algorithm:
//  1. Build task id → referenced task ids from each task's timeline
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-reference as a cycle
//
// References to tasks outside the set are ignored. Output is sorted by the
// first task id of each path so reports are stable.
func AnalyzeTaskCycles(tasks []timeline.Task) []CycleWarning {
	if len(tasks) == 0 {
		return []CycleWarning{}
	}

	graph := buildTaskGraph(tasks)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// taskGraph maps task id → task ids its timeline references, in step order.
type taskGraph map[string][]string

func buildTaskGraph(tasks []timeline.Task) taskGraph {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}

	graph := make(taskGraph, len(tasks))
	for _, t := range tasks {
		if graph[t.ID] == nil {
			graph[t.ID] = []string{}
		}
		for _, ref := range taskRefs(t.Timeline.Steps) {
			if known[ref] && !slices.Contains(graph[t.ID], ref) {
				graph[t.ID] = append(graph[t.ID], ref)
			}
		}
	}
	return graph
}

// taskRefs lists the task ids referenced by steps in order-index order.
func taskRefs(steps []timeline.AuthoredStep) []string {
	ordered := slices.Clone(steps)
	slices.SortStableFunc(ordered, func(a, b timeline.AuthoredStep) int {
		return a.OrderIndex - b.OrderIndex
	})
	var refs []string
	for _, s := range ordered {
		if s.Type == timeline.StepTask && s.TaskID != "" {
			refs = append(refs, s.TaskID)
		}
	}
	return refs
}

func hasSelfLoop(node string, graph taskGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order.
func tarjanSCC(graph taskGraph) [][]string {
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
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph taskGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("task references itself: %s → %s", id, id),
		}
	}
	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("task reference cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath walks SCC members from the smallest id back to it.
func reconstructCyclePath(scc []string, graph taskGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true
		var next string
		for _, n := range graph[current] {
			if members[n] && (!visited[n] || n == start) {
				next = n
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
