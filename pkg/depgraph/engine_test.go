package depgraph

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cuemby/pylon/pkg/cloud"
	"github.com/cuemby/pylon/pkg/cloudrsrc"
	"github.com/cuemby/pylon/pkg/cloudspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	kindFakeA cloudspec.Kind = "test_fake_a"
	kindFakeB cloudspec.Kind = "test_fake_b"
)

type fakeSpec struct {
	kind   cloudspec.Kind
	nodeID string
	fail   bool
}

func (s fakeSpec) Kind() cloudspec.Kind { return s.kind }

type fakeResource struct {
	kind cloudspec.Kind
	id   string
}

func (r *fakeResource) Kind() cloudspec.Kind { return r.kind }
func (r *fakeResource) ID() string           { return r.id }

// orderLog records call order across every fakeManager sharing it, so a
// test can assert on relative ordering between resources of different
// kinds (which live in separate managers and would otherwise each only
// see their own calls).
type orderLog struct {
	mu  sync.Mutex
	log []string
}

func (o *orderLog) record(entry string) {
	o.mu.Lock()
	o.log = append(o.log, entry)
	o.mu.Unlock()
}

// fakeManager records every Create/Destroy call so a test can assert on
// which nodes ran without any real cloud backend. The embedded mutex makes
// it safe to share across the engine's concurrent per-layer goroutines.
type fakeManager struct {
	kind cloudspec.Kind
	log  *orderLog

	mu        sync.Mutex
	created   []string
	destroyed []string
}

func (m *fakeManager) RequiredParentKinds() []cloudspec.Kind { return nil }

func (m *fakeManager) Create(_ context.Context, _ cloud.Ops, s cloudspec.Spec, _ []cloudrsrc.Resource) (cloudrsrc.Resource, error) {
	spec := s.(fakeSpec)
	m.mu.Lock()
	m.created = append(m.created, spec.nodeID)
	m.mu.Unlock()
	m.log.record("create:" + spec.nodeID)
	if spec.fail {
		return nil, fmt.Errorf("fake: %s failed", spec.nodeID)
	}
	return &fakeResource{kind: spec.kind, id: spec.nodeID}, nil
}

func (m *fakeManager) Destroy(_ context.Context, _ cloud.Ops, r cloudrsrc.Resource, _ []cloudrsrc.Resource) error {
	id := r.(*fakeResource).id
	m.mu.Lock()
	m.destroyed = append(m.destroyed, id)
	m.mu.Unlock()
	m.log.record("destroy:" + id)
	return nil
}

func newFakeRegistry() (*cloudrsrc.Registry, *fakeManager, *fakeManager, *orderLog) {
	log := &orderLog{}
	mgrA := &fakeManager{kind: kindFakeA, log: log}
	mgrB := &fakeManager{kind: kindFakeB, log: log}
	reg := cloudrsrc.NewRegistry()
	reg.Register(kindFakeA, mgrA)
	reg.Register(kindFakeB, mgrB)
	return reg, mgrA, mgrB, log
}

// buildDiamond builds root -> a -> (b1, b2) -> a2: b1 and b2 share a
// parent and no edge between them, so the engine must put them in the
// same layer; a2 depends on both.
func buildDiamond(failB2 bool) *Graph[cloudspec.Node] {
	g := New[cloudspec.Node]()
	root := g.AddNode(cloudspec.RootNode("root"))

	a := g.AddNode(cloudspec.SpecNode("a", fakeSpec{kind: kindFakeA, nodeID: "a"}))
	g.AddEdge(root, a)

	b1 := g.AddNode(cloudspec.SpecNode("b1", fakeSpec{kind: kindFakeB, nodeID: "b1"}))
	g.AddEdge(a, b1)

	b2 := g.AddNode(cloudspec.SpecNode("b2", fakeSpec{kind: kindFakeB, nodeID: "b2", fail: failB2}))
	g.AddEdge(a, b2)

	a2 := g.AddNode(cloudspec.SpecNode("a2", fakeSpec{kind: kindFakeA, nodeID: "a2"}))
	g.AddEdge(b1, a2)
	g.AddEdge(b2, a2)

	return g
}

func TestEngine_Deploy_Success(t *testing.T) {
	reg, mgrA, mgrB, _ := newFakeRegistry()
	engine := NewEngine(reg, nil)

	resources, outcomes, err := engine.Deploy(context.Background(), buildDiamond(false))
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	for _, o := range outcomes {
		assert.NoError(t, o.Err)
		assert.True(t, o.Created)
	}

	assert.ElementsMatch(t, []string{"a", "a2"}, mgrA.created)
	assert.ElementsMatch(t, []string{"b1", "b2"}, mgrB.created)
	assert.Equal(t, 5, resources.Len()) // root + a + b1 + b2 + a2
}

func TestEngine_Deploy_FailurePropagatesToDescendant(t *testing.T) {
	reg, _, mgrB, _ := newFakeRegistry()
	engine := NewEngine(reg, nil)

	_, outcomes, err := engine.Deploy(context.Background(), buildDiamond(true))
	require.NoError(t, err)

	byName := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		byName[o.Name] = o
	}

	b2Outcome, ok := byName["b2"]
	require.True(t, ok)
	assert.Error(t, b2Outcome.Err)

	a2Outcome, ok := byName["a2"]
	require.True(t, ok)
	require.Error(t, a2Outcome.Err)
	assert.Contains(t, a2Outcome.Err.Error(), "parent was not created")

	assert.ElementsMatch(t, []string{"b1", "b2"}, mgrB.created)
}

func TestEngine_Destroy_DeepestLayerFirst(t *testing.T) {
	reg, mgrA, mgrB, log := newFakeRegistry()
	engine := NewEngine(reg, nil)

	resources, _, err := engine.Deploy(context.Background(), buildDiamond(false))
	require.NoError(t, err)

	mgrA.created, mgrB.created = nil, nil
	log.log = nil

	outcomes, err := engine.Destroy(context.Background(), resources)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	for _, o := range outcomes {
		assert.NoError(t, o.Err)
		assert.False(t, o.Created)
	}

	assert.ElementsMatch(t, []string{"b1", "b2"}, mgrB.destroyed)
	assert.ElementsMatch(t, []string{"a", "a2"}, mgrA.destroyed)

	// a2 is destroyed strictly before a, and b1/b2 strictly before a2 —
	// the reverse of deploy's a -> (b1,b2) -> a2 order.
	a2Idx := indexOf(log.log, "destroy:a2")
	aIdx := indexOf(log.log, "destroy:a")
	b1Idx := indexOf(log.log, "destroy:b1")
	b2Idx := indexOf(log.log, "destroy:b2")
	require.NotEqual(t, -1, a2Idx)
	require.NotEqual(t, -1, aIdx)
	require.NotEqual(t, -1, b1Idx)
	require.NotEqual(t, -1, b2Idx)

	assert.Less(t, a2Idx, aIdx)
	assert.Less(t, b1Idx, a2Idx)
	assert.Less(t, b2Idx, a2Idx)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
