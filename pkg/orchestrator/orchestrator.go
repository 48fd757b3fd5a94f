// Package orchestrator ties the resource-graph builder, dependency
// engine, service scheduler, and state stores together into three
// workflows: Genesis, Apply, Destroy.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/pylon/pkg/agent"
	"github.com/cuemby/pylon/pkg/cloud"
	"github.com/cuemby/pylon/pkg/cloudrsrc"
	"github.com/cuemby/pylon/pkg/depgraph"
	"github.com/cuemby/pylon/pkg/log"
	"github.com/cuemby/pylon/pkg/metrics"
	"github.com/cuemby/pylon/pkg/placement"
	"github.com/cuemby/pylon/pkg/sizer"
	"github.com/cuemby/pylon/pkg/specbuilder"
	"github.com/cuemby/pylon/pkg/statestore"
)

// Project is the user-facing description of the infrastructure and
// services to deploy.
type Project struct {
	Name              string
	NumberOfInstances int
	InstanceType      string
	ImageID           string
	Domain            string
	Services          []placement.ServiceSpec
}

// Orchestrator wires one project's infra store, placement store, engine,
// and scheduler together.
type Orchestrator struct {
	InfraStore      *statestore.Store[[]depgraph.StateRecord]
	PlacementStore  *statestore.Store[placement.PlacementState]
	History         *statestore.History
	Engine          *depgraph.Engine
	Registry        *cloudrsrc.Registry
	AgentPort       int
	HealthCache     *agent.HealthCache
}

func New(infraStore *statestore.Store[[]depgraph.StateRecord], placementStore *statestore.Store[placement.PlacementState], history *statestore.History, ops cloud.Ops) *Orchestrator {
	registry := cloudrsrc.NewDefaultRegistry()
	cache, _ := agent.NewHealthCache(64, 30*time.Second)
	return &Orchestrator{
		InfraStore:     infraStore,
		PlacementStore: placementStore,
		History:        history,
		Engine:         depgraph.NewEngine(registry, ops),
		Registry:       registry,
		AgentPort:      agent.DefaultPort,
		HealthCache:    cache,
	}
}

// Result summarizes one workflow run for the caller (CLI, MCP tool).
type Result struct {
	Workflow     string
	InfraOutcome []depgraph.Outcome
	Placed       []string
	Unplaced     []string
	Stopped      []string
	Vms          []cloudrsrc.Vm
	RegistryURI  string
}

// Genesis provisions infrastructure from scratch and schedules every
// service onto it: spec-builder → dependency engine Deploy → scheduler
// Run per service in dependency order.
func (o *Orchestrator) Genesis(ctx context.Context, p Project) (_ *Result, err error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.WorkflowDuration, "genesis")
	defer func() { countWorkflow("genesis", err) }()

	spec, err := specbuilder.Build(specbuilder.Params{
		NumberOfInstances: p.NumberOfInstances,
		InstanceType:      p.InstanceType,
		ImageID:           p.ImageID,
		Domain:            p.Domain,
	})
	if err != nil {
		return nil, fmt.Errorf("genesis: build spec: %w", err)
	}

	resources, outcomes, err := o.Engine.Deploy(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("genesis: deploy: %w", err)
	}

	records, err := depgraph.ToState(resources)
	if err != nil {
		return nil, fmt.Errorf("genesis: flatten state: %w", err)
	}
	if err := o.InfraStore.Save(ctx, records); err != nil {
		return nil, fmt.Errorf("genesis: save infra state: %w", err)
	}
	o.recordHistory(ctx, p.Name, "genesis", records)

	vms, registryURI := collectVmsAndRegistry(resources)

	placementState := placement.NewPlacementState()
	for _, vm := range vms {
		placementState.Instances[vm.PublicIP] = placement.NewInstance(0, 0)
	}
	sizeInstances(placementState, p.InstanceType)

	result := &Result{Workflow: "genesis", InfraOutcome: outcomes, Vms: vms, RegistryURI: registryURI}

	if err := o.scheduleServices(ctx, placementState, p.Services, result); err != nil {
		return result, err
	}
	return result, nil
}

// Apply reconciles a project against its persisted state without
// re-provisioning anything that already matches: it loads state, and if
// no infra or placement diff is needed, issues zero cloud or agent calls.
// For the current feature set (fixed-shape resource graph, service list
// diffed by name) this means: if infra state exists, skip Deploy
// entirely; services not already recorded as placed are scheduled, and
// placed services no longer declared in p.Services are stopped.
func (o *Orchestrator) Apply(ctx context.Context, p Project) (_ *Result, err error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.WorkflowDuration, "apply")
	defer func() { countWorkflow("apply", err) }()

	records, present, err := o.InfraStore.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply: load infra state: %w", err)
	}
	if !present {
		return o.Genesis(ctx, p)
	}

	resources, err := depgraph.FromState(records)
	if err != nil {
		return nil, fmt.Errorf("apply: rebuild resource graph: %w", err)
	}
	vms, registryURI := collectVmsAndRegistry(resources)

	placementState, present, err := o.PlacementStore.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply: load placement state: %w", err)
	}
	if !present {
		placementState = *placement.NewPlacementState()
	}
	for _, vm := range vms {
		if _, ok := placementState.Instances[vm.PublicIP]; !ok {
			placementState.Instances[vm.PublicIP] = placement.NewInstance(0, 0)
		}
	}
	sizeInstances(&placementState, p.InstanceType)

	result := &Result{Workflow: "apply", Vms: vms, RegistryURI: registryURI}

	declared := make(map[string]bool, len(p.Services))
	var toSchedule []placement.ServiceSpec
	for _, svc := range p.Services {
		declared[svc.Name] = true
		if !isPlaced(&placementState, svc.Name) {
			toSchedule = append(toSchedule, svc)
		}
	}

	var toStop []string
	for _, inst := range placementState.Instances {
		for name := range inst.Services {
			if !declared[name] {
				toStop = append(toStop, name)
			}
		}
	}

	if len(toStop) > 0 {
		sched := placement.NewScheduler(&placementState, o.PlacementStore, o.AgentPort, o.HealthCache)
		for _, name := range toStop {
			if err := sched.Stop(ctx, name); err != nil {
				log.Error(fmt.Sprintf("apply: stop undeclared service %q: %v", name, err))
				continue
			}
			result.Stopped = append(result.Stopped, name)
		}
	}

	if len(toSchedule) == 0 && len(toStop) == 0 {
		log.Info(fmt.Sprintf("apply: project %q already reconciled, no work to do", p.Name))
		return result, nil
	}

	if err := o.scheduleServices(ctx, &placementState, toSchedule, result); err != nil {
		return result, err
	}
	return result, nil
}

// Destroy stops every placed service, then deprovisions infrastructure in
// reverse dependency order.
func (o *Orchestrator) Destroy(ctx context.Context, p Project) (_ *Result, err error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.WorkflowDuration, "destroy")
	defer func() { countWorkflow("destroy", err) }()

	placementState, present, err := o.PlacementStore.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("destroy: load placement state: %w", err)
	}
	if present {
		sched := placement.NewScheduler(&placementState, o.PlacementStore, o.AgentPort, o.HealthCache)
		for ip, inst := range placementState.Instances {
			for name := range inst.Services {
				if err := sched.Stop(ctx, name); err != nil {
					log.Error(fmt.Sprintf("destroy: stop service %q on %s: %v", name, ip, err))
				}
			}
		}
	}

	records, present, err := o.InfraStore.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("destroy: load infra state: %w", err)
	}
	if !present {
		return &Result{Workflow: "destroy"}, nil
	}

	resources, err := depgraph.FromState(records)
	if err != nil {
		return nil, fmt.Errorf("destroy: rebuild resource graph: %w", err)
	}

	outcomes, err := o.Engine.Destroy(ctx, resources)
	if err != nil {
		return nil, fmt.Errorf("destroy: %w", err)
	}

	if err := o.InfraStore.Save(ctx, nil); err != nil {
		return nil, fmt.Errorf("destroy: clear infra state: %w", err)
	}
	o.recordHistory(ctx, p.Name, "destroy", nil)

	return &Result{Workflow: "destroy", InfraOutcome: outcomes}, nil
}

func (o *Orchestrator) scheduleServices(ctx context.Context, state *placement.PlacementState, services []placement.ServiceSpec, result *Result) error {
	ordered, err := placement.OrderByDependencies(services)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	sched := placement.NewScheduler(state, o.PlacementStore, o.AgentPort, o.HealthCache)
	peers := make(map[string]placement.PeerInfo)

	for _, svc := range ordered {
		if err := sched.Run(ctx, svc, peers); err != nil {
			log.Error(fmt.Sprintf("schedule: service %q not placed: %v", svc.Name, err))
			result.Unplaced = append(result.Unplaced, svc.Name)
			continue
		}
		result.Placed = append(result.Placed, svc.Name)

		for ip, inst := range state.Instances {
			if _, ok := inst.Services[svc.Name]; ok {
				peers[svc.Name] = placement.PeerInfo{PublicIP: ip}
				break
			}
		}
	}
	return nil
}

func (o *Orchestrator) recordHistory(ctx context.Context, project, workflow string, records []depgraph.StateRecord) {
	if o.History == nil {
		return
	}
	data, err := json.Marshal(records)
	if err != nil {
		log.Error(fmt.Sprintf("orchestrator: marshal history snapshot: %v", err))
		return
	}
	if err := o.History.Append(project, workflow, data, time.Now()); err != nil {
		log.Error(fmt.Sprintf("orchestrator: append history: %v", err))
	}
}

// countWorkflow increments WorkflowsTotal for one workflow run, with
// outcome "ok" or "error" depending on the error the workflow returned.
func countWorkflow(workflow string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.WorkflowsTotal.WithLabelValues(workflow, outcome).Inc()
}

// sizeInstances sets every not-yet-sized Instance's total capacity from
// the project's instance type, using the sizer's published capacity table
// rather than querying the cloud for it.
func sizeInstances(state *placement.PlacementState, instanceType string) {
	cpu, memory, ok := sizer.Capacity(sizer.Class(instanceType))
	if !ok {
		return
	}
	for _, inst := range state.Instances {
		if inst.Cpus == 0 && inst.Memory == 0 {
			inst.Cpus = cpu
			inst.Memory = int64(memory)
		}
	}
}

func collectVmsAndRegistry(resources *depgraph.Graph[cloudrsrc.Node]) ([]cloudrsrc.Vm, string) {
	var vms []cloudrsrc.Vm
	var registryURI string
	for _, id := range resources.NodeIDs() {
		node := resources.Node(id)
		if node.Root {
			continue
		}
		switch r := node.Resource.(type) {
		case *cloudrsrc.Vm:
			vms = append(vms, *r)
		case *cloudrsrc.ContainerRegistry:
			registryURI = r.URI
		}
	}
	return vms, registryURI
}

func isPlaced(state *placement.PlacementState, name string) bool {
	for _, inst := range state.Instances {
		if _, ok := inst.Services[name]; ok {
			return true
		}
	}
	return false
}
