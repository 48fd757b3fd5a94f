package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKahnOrder_Diamond(t *testing.T) {
	g := New[string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	d := g.AddNode("d")
	g.AddEdge(a, b)
	g.AddEdge(a, c)
	g.AddEdge(b, d)
	g.AddEdge(c, d)

	order, err := KahnOrder(g)
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := make(map[NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos[a], pos[b])
	assert.Less(t, pos[a], pos[c])
	assert.Less(t, pos[b], pos[d])
	assert.Less(t, pos[c], pos[d])
}

func TestKahnOrder_Cycle(t *testing.T) {
	g := New[string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b)
	g.AddEdge(b, a)

	_, err := KahnOrder(g)
	assert.ErrorIs(t, err, ErrCycle)
}

// TestKahnLayers_Diamond checks that sibling nodes with no edge between
// them land in the same layer, while a, b+c, d occupy three rounds.
func TestKahnLayers_Diamond(t *testing.T) {
	g := New[string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	d := g.AddNode("d")
	g.AddEdge(a, b)
	g.AddEdge(a, c)
	g.AddEdge(b, d)
	g.AddEdge(c, d)

	layers, err := KahnLayers(g)
	require.NoError(t, err)
	require.Len(t, layers, 3)

	assert.ElementsMatch(t, []NodeID{a}, layers[0])
	assert.ElementsMatch(t, []NodeID{b, c}, layers[1])
	assert.ElementsMatch(t, []NodeID{d}, layers[2])
}

func TestKahnLayers_ForestOfRoots(t *testing.T) {
	g := New[string]()
	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("c")

	layers, err := KahnLayers(g)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Len(t, layers[0], 3)
}

func TestKahnLayers_Cycle(t *testing.T) {
	g := New[string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b)
	g.AddEdge(b, a)

	_, err := KahnLayers(g)
	assert.ErrorIs(t, err, ErrCycle)
}
