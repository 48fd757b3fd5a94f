// Package depgraph implements the dependency engine: a generic
// directed-acyclic-graph type, Kahn's-algorithm topological ordering, and
// the Deploy/Destroy algorithms that translate a spec graph into a live
// resource graph (and back into persisted state).
package depgraph

import "errors"

// NodeID is an index into a Graph's node slice.
type NodeID int

// Graph is a generic rooted DAG: nodes of type T with parent→child edges.
// Edge labels are reserved but unused.
type Graph[T any] struct {
	nodes    []T
	children map[NodeID][]NodeID
	parents  map[NodeID][]NodeID
}

func New[T any]() *Graph[T] {
	return &Graph[T]{
		children: make(map[NodeID][]NodeID),
		parents:  make(map[NodeID][]NodeID),
	}
}

// AddNode appends a node and returns its ID.
func (g *Graph[T]) AddNode(v T) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, v)
	return id
}

// AddEdge adds a parent→child edge.
func (g *Graph[T]) AddEdge(parent, child NodeID) {
	g.children[parent] = append(g.children[parent], child)
	g.parents[child] = append(g.parents[child], parent)
}

func (g *Graph[T]) Node(id NodeID) T { return g.nodes[id] }

// NodeIDs returns every node ID in insertion order.
func (g *Graph[T]) NodeIDs() []NodeID {
	ids := make([]NodeID, len(g.nodes))
	for i := range ids {
		ids[i] = NodeID(i)
	}
	return ids
}

func (g *Graph[T]) Children(id NodeID) []NodeID { return g.children[id] }
func (g *Graph[T]) Parents(id NodeID) []NodeID  { return g.parents[id] }
func (g *Graph[T]) Len() int                    { return len(g.nodes) }

// ErrCycle is returned by KahnOrder when the graph contains a cycle: some
// nodes never reach zero in-degree and are left over at the end of the
// sweep. Kahn's algorithm naturally detects this without a separate
// cycle-detection pass.
var ErrCycle = errors.New("depgraph: cycle detected")

// KahnOrder computes a topological order via Kahn's algorithm: seed a
// queue with every zero-in-degree node, repeatedly pop one and decrement
// its children's in-degree, appending newly-zero children to the queue.
func KahnOrder[T any](g *Graph[T]) ([]NodeID, error) {
	inDegree := make(map[NodeID]int, g.Len())
	for _, id := range g.NodeIDs() {
		inDegree[id] = len(g.Parents(id))
	}

	var queue []NodeID
	for _, id := range g.NodeIDs() {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]NodeID, 0, g.Len())
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, child := range g.Children(id) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != g.Len() {
		return nil, ErrCycle
	}
	return order, nil
}

// KahnLayers computes the same topological order as KahnOrder but grouped
// into rounds: layer 0 is every zero-in-degree node, layer 1 every node
// whose parents are all in layer 0, and so on. Nodes sharing a layer have
// no edge between them, so the engine can process a layer concurrently.
func KahnLayers[T any](g *Graph[T]) ([][]NodeID, error) {
	inDegree := make(map[NodeID]int, g.Len())
	for _, id := range g.NodeIDs() {
		inDegree[id] = len(g.Parents(id))
	}

	var frontier []NodeID
	for _, id := range g.NodeIDs() {
		if inDegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	var layers [][]NodeID
	seen := 0
	for len(frontier) > 0 {
		layers = append(layers, frontier)
		seen += len(frontier)

		var next []NodeID
		for _, id := range frontier {
			for _, child := range g.Children(id) {
				inDegree[child]--
				if inDegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		frontier = next
	}

	if seen != g.Len() {
		return nil, ErrCycle
	}
	return layers, nil
}
