package depgraph

import (
	"context"
	"fmt"

	"github.com/cuemby/pylon/pkg/cloud"
	"github.com/cuemby/pylon/pkg/cloudrsrc"
	"github.com/cuemby/pylon/pkg/cloudspec"
	"github.com/cuemby/pylon/pkg/log"
	"github.com/cuemby/pylon/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Outcome records the per-node result of one Deploy or Destroy pass, so
// the orchestrator can persist state regardless of outcome and then
// report the aggregate.
type Outcome struct {
	Name    string
	Kind    cloudspec.Kind
	Created bool
	Err     error
}

// Engine owns the spec graph and the resource graph and runs the
// deploy/destroy algorithms against a cloudrsrc.Registry and a cloud.Ops
// implementation.
type Engine struct {
	Registry *cloudrsrc.Registry
	Ops      cloud.Ops
}

func NewEngine(registry *cloudrsrc.Registry, ops cloud.Ops) *Engine {
	return &Engine{Registry: registry, Ops: ops}
}

// deployStep holds one node's outcome from a concurrent layer pass, merged
// into the resource graph serially once the whole layer has settled.
type deployStep struct {
	root              bool
	rootID            string
	outcome           Outcome
	resource          cloudrsrc.Resource
	parentResourceIDs []NodeID
}

// Deploy computes the spec graph's dependency layers and, within each
// layer, invokes the corresponding managers concurrently — nodes in the
// same layer share no edge, so their creation has no ordering requirement.
// Layers themselves are processed strictly in order, since a later layer's
// nodes depend on an earlier layer's output. On failure a node is skipped,
// and so are its descendants: a node with any parent that was not created
// gets a "parent was not created" outcome without its manager being
// called. The partial resource graph is always returned.
func (e *Engine) Deploy(ctx context.Context, spec *Graph[cloudspec.Node]) (*Graph[cloudrsrc.Node], []Outcome, error) {
	layers, err := KahnLayers(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("deploy: %w", err)
	}

	resources := New[cloudrsrc.Node]()
	specToResource := make(map[NodeID]NodeID, spec.Len())
	var outcomes []Outcome

	for _, layer := range layers {
		steps := make([]deployStep, len(layer))

		group, gctx := errgroup.WithContext(ctx)
		for i, specID := range layer {
			i, specID := i, specID
			group.Go(func() error {
				steps[i] = e.deployNode(gctx, spec, specToResource, resources, specID)
				return nil
			})
		}
		_ = group.Wait() // per-node failures live in steps[i].outcome, not a group error

		for i, specID := range layer {
			step := steps[i]
			if step.root {
				rootID := resources.AddNode(cloudrsrc.RootNode(step.rootID))
				specToResource[specID] = rootID
				continue
			}
			if step.resource == nil {
				outcomes = append(outcomes, step.outcome)
				continue
			}
			name := fmt.Sprintf("%s.%s", step.resource.Kind(), step.resource.ID())
			resID := resources.AddNode(cloudrsrc.ResourceNode(name, step.resource))
			for _, pResID := range step.parentResourceIDs {
				resources.AddEdge(pResID, resID)
			}
			specToResource[specID] = resID
			outcomes = append(outcomes, Outcome{Name: name, Kind: step.resource.Kind(), Created: true})
		}
	}

	return resources, outcomes, nil
}

// deployNode creates a single node's resource against parents resolved
// from prior (already-merged) layers. Reads of specToResource/resources
// are race-free here: both are only mutated in Deploy's serial merge step,
// which always completes before the next layer's goroutines start.
func (e *Engine) deployNode(ctx context.Context, spec *Graph[cloudspec.Node], specToResource map[NodeID]NodeID, resources *Graph[cloudrsrc.Node], specID NodeID) deployStep {
	node := spec.Node(specID)

	if node.Root {
		return deployStep{root: true, rootID: node.ID}
	}

	parentSpecIDs := spec.Parents(specID)
	parentResourceIDs := make([]NodeID, 0, len(parentSpecIDs))
	parentResources := make([]cloudrsrc.Resource, 0, len(parentSpecIDs))
	for _, pSpecID := range parentSpecIDs {
		pResID, ok := specToResource[pSpecID]
		if !ok {
			return deployStep{outcome: Outcome{Name: node.ID, Kind: node.Spec.Kind(), Err: fmt.Errorf("parent was not created")}}
		}
		parentResourceIDs = append(parentResourceIDs, pResID)
		if pNode := resources.Node(pResID); !pNode.Root {
			parentResources = append(parentResources, pNode.Resource)
		}
	}

	manager, err := e.Registry.For(node.Spec.Kind())
	if err != nil {
		return deployStep{outcome: Outcome{Name: node.ID, Kind: node.Spec.Kind(), Err: err}}
	}

	timer := metrics.NewTimer()
	resource, err := manager.Create(ctx, e.Ops, node.Spec, parentResources)
	timer.ObserveDurationVec(metrics.ResourceOpDuration, string(node.Spec.Kind()), "create")
	if err != nil {
		log.Error(fmt.Sprintf("create %s %q failed: %v", node.Spec.Kind(), node.ID, err))
		metrics.ResourceOpsTotal.WithLabelValues(string(node.Spec.Kind()), "create", "error").Inc()
		return deployStep{outcome: Outcome{Name: node.ID, Kind: node.Spec.Kind(), Err: err}}
	}

	metrics.ResourceOpsTotal.WithLabelValues(string(node.Spec.Kind()), "create", "ok").Inc()
	return deployStep{parentResourceIDs: parentResourceIDs, resource: resource}
}

// Destroy computes the resource graph's dependency layers and walks them
// in reverse — leaves before roots — destroying each layer's nodes
// concurrently, since nodes sharing a layer share no edge. Individual
// failures are logged but never abort the sweep — the operator re-runs
// destroy to converge.
func (e *Engine) Destroy(ctx context.Context, resources *Graph[cloudrsrc.Node]) ([]Outcome, error) {
	layers, err := KahnLayers(resources)
	if err != nil {
		return nil, fmt.Errorf("destroy: %w", err)
	}

	var outcomes []Outcome
	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		stepOutcomes := make([]*Outcome, len(layer))

		group, gctx := errgroup.WithContext(ctx)
		for j, id := range layer {
			j, id := j, id
			group.Go(func() error {
				stepOutcomes[j] = e.destroyNode(gctx, resources, id)
				return nil
			})
		}
		_ = group.Wait() // per-node failures live in stepOutcomes[j], not a group error

		for _, o := range stepOutcomes {
			if o != nil {
				outcomes = append(outcomes, *o)
			}
		}
	}

	return outcomes, nil
}

// destroyNode tears down a single resource node. Reads of the resource
// graph are race-free: Destroy never mutates it, only reads concurrently
// within a layer, so no lock is needed.
func (e *Engine) destroyNode(ctx context.Context, resources *Graph[cloudrsrc.Node], id NodeID) *Outcome {
	node := resources.Node(id)
	if node.Root {
		return nil
	}

	var parentResources []cloudrsrc.Resource
	for _, pID := range resources.Parents(id) {
		if pNode := resources.Node(pID); !pNode.Root {
			parentResources = append(parentResources, pNode.Resource)
		}
	}

	manager, err := e.Registry.For(node.Resource.Kind())
	if err != nil {
		return &Outcome{Name: node.ID, Kind: node.Resource.Kind(), Err: err}
	}

	timer := metrics.NewTimer()
	err = manager.Destroy(ctx, e.Ops, node.Resource, parentResources)
	timer.ObserveDurationVec(metrics.ResourceOpDuration, string(node.Resource.Kind()), "destroy")
	if err != nil {
		log.Error(fmt.Sprintf("destroy %s %q failed: %v", node.Resource.Kind(), node.ID, err))
		metrics.ResourceOpsTotal.WithLabelValues(string(node.Resource.Kind()), "destroy", "error").Inc()
		return &Outcome{Name: node.ID, Kind: node.Resource.Kind(), Err: err}
	}

	metrics.ResourceOpsTotal.WithLabelValues(string(node.Resource.Kind()), "destroy", "ok").Inc()
	return &Outcome{Name: node.ID, Kind: node.Resource.Kind(), Created: false}
}
