package camflow

import (
	"fmt"
	"sort"
)

// CycleError reports that the edge set contains a cycle. Compilation fails
// before any capture starts; a cyclic pipeline can never run.
type CycleError struct {
	// Nodes are the names of the nodes left unordered by the topological
	// sort, i.e. the members of (or downstream of) the cycle.
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("pipeline graph contains a cycle involving %v", e.Nodes)
}

// UnknownFieldError reports that a sink requests a field no node in the
// graph provides.
type UnknownFieldError struct {
	Sink  string
	Field Field
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("sink %q requests field %q which no node provides", e.Sink, e.Field)
}

// Graph is the pipeline-definition builder. Build it once, Compile it
// once; the compiled Plan is immutable during execution.
type Graph struct {
	nodes  []Node
	byName map[string]Node
	// edges[from] lists downstream node names, in insertion order.
	edges     map[string][]string
	edgeOrder []edge
	sinks     []Sink
}

type edge struct{ from, to string }

// NewGraph returns an empty pipeline builder.
func NewGraph() *Graph {
	return &Graph{
		byName: make(map[string]Node),
		edges:  make(map[string][]string),
	}
}

// Add registers a node. Node names must be unique.
func (g *Graph) Add(n Node) error {
	if _, dup := g.byName[n.Name()]; dup {
		return fmt.Errorf("duplicate node name %q", n.Name())
	}
	g.nodes = append(g.nodes, n)
	g.byName[n.Name()] = n
	return nil
}

// Connect adds a directed edge: from produces data consumed by to.
// Unknown names are reported at Compile time.
func (g *Graph) Connect(from, to string) {
	g.edges[from] = append(g.edges[from], to)
	g.edgeOrder = append(g.edgeOrder, edge{from, to})
}

// Attach registers a terminal sink. The union of attached sinks' requested
// fields decides which nodes Compile keeps.
func (g *Graph) Attach(s Sink) {
	g.sinks = append(g.sinks, s)
}

// Plan is the compiled, immutable execution artifact: a topological order
// restricted to the ancestors of the nodes providing the requested fields,
// plus the attached sinks. The order is computed once here and reused for
// every frame; reachability is never re-derived at frame rate.
type Plan struct {
	order []Node
	sinks []Sink
}

// Order returns the cached execution order (for instrumentation/tests).
func (p *Plan) Order() []Node {
	out := make([]Node, len(p.order))
	copy(out, p.order)
	return out
}

// Sinks returns the attached sinks.
func (p *Plan) Sinks() []Sink {
	out := make([]Sink, len(p.sinks))
	copy(out, p.sinks)
	return out
}

// Compile validates the graph and caches the pruned topological order.
//
// Failure modes, all before any capture starts:
//   - unknown node name in an edge
//   - *CycleError when the edge set contains a cycle (any length, any
//     position, including cycles on paths no sink requests)
//   - *UnknownFieldError when a sink requests a field nothing provides
func (g *Graph) Compile() (*Plan, error) {
	for _, e := range g.edgeOrder {
		if _, ok := g.byName[e.from]; !ok {
			return nil, fmt.Errorf("edge references unknown node %q", e.from)
		}
		if _, ok := g.byName[e.to]; !ok {
			return nil, fmt.Errorf("edge references unknown node %q", e.to)
		}
	}

	full, err := g.toposort()
	if err != nil {
		return nil, err
	}

	keep, err := g.requestedAncestors()
	if err != nil {
		return nil, err
	}

	var order []Node
	for _, n := range full {
		if keep[n.Name()] {
			order = append(order, n)
		}
	}

	return &Plan{order: order, sinks: append([]Sink(nil), g.sinks...)}, nil
}

// toposort runs Kahn's algorithm over the whole node set. Insertion order
// breaks ties so the execution order is deterministic across runs.
func (g *Graph) toposort() ([]Node, error) {
	indegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n.Name()] = 0
	}
	for _, e := range g.edgeOrder {
		indegree[e.to]++
	}

	var queue []string
	for _, n := range g.nodes {
		if indegree[n.Name()] == 0 {
			queue = append(queue, n.Name())
		}
	}

	var order []Node
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, g.byName[name])
		for _, next := range g.edges[name] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for name, d := range indegree {
			if d > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Nodes: stuck}
	}
	return order, nil
}

// requestedAncestors resolves the set of nodes that must run: for every
// field a sink requests, the nodes providing it plus all their ancestors.
// FieldImage is provided by ingestion itself and needs no node.
func (g *Graph) requestedAncestors() (map[string]bool, error) {
	providers := make(map[Field][]string)
	for _, n := range g.nodes {
		for _, f := range n.Provides() {
			providers[f] = append(providers[f], n.Name())
		}
	}

	parents := make(map[string][]string)
	for _, e := range g.edgeOrder {
		parents[e.to] = append(parents[e.to], e.from)
	}

	keep := make(map[string]bool)
	var stack []string
	for _, s := range g.sinks {
		for _, f := range s.Requests() {
			if f == FieldImage {
				continue
			}
			nodes, ok := providers[f]
			if !ok {
				return nil, &UnknownFieldError{Sink: s.Name(), Field: f}
			}
			stack = append(stack, nodes...)
		}
	}

	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if keep[name] {
			continue
		}
		keep[name] = true
		stack = append(stack, parents[name]...)
	}
	return keep, nil
}
