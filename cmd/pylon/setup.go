package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cuemby/pylon/pkg/cloud"
	"github.com/cuemby/pylon/pkg/cloud/openstack"
	"github.com/cuemby/pylon/pkg/config"
	"github.com/cuemby/pylon/pkg/depgraph"
	"github.com/cuemby/pylon/pkg/orchestrator"
	"github.com/cuemby/pylon/pkg/placement"
	"github.com/cuemby/pylon/pkg/statestore"
)

// loadProject reads the TOML file at configPath and translates it into the
// orchestrator's Project shape.
func loadProject() (*config.Config, orchestrator.Project, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, orchestrator.Project{}, err
	}

	p := orchestrator.Project{
		Name:              cfg.Project.Name,
		NumberOfInstances: cfg.Project.NumberOfInstances,
		InstanceType:      cfg.Project.InstanceType,
		ImageID:           cfg.Project.ImageID,
		Domain:            cfg.Project.Domain,
	}

	for name, svc := range cfg.Project.Services {
		spec := placement.ServiceSpec{
			Name:         name,
			Image:        svc.Image,
			InternalPort: svc.InternalPort,
			ExternalPort: svc.ExternalPort,
			Cpus:         svc.Cpus,
			Memory:       svc.Memory,
			DependsOn:    svc.DependsOn,
			Envs:         svc.Envs,
		}
		if svc.Command != "" {
			cmdStr := svc.Command
			spec.Command = &cmdStr
		}
		p.Services = append(p.Services, spec)
	}

	return cfg, p, nil
}

// buildBackend resolves a config.StateBackend into a statestore.Backend,
// using ops's object-storage client for the s3 case when ops is an
// *openstack.Ops (cloudmock has no object-storage analogue).
func buildBackend(b config.StateBackend, ops cloud.Ops) (statestore.Backend, error) {
	kind, local, s3, err := b.Resolve()
	if err != nil {
		return nil, err
	}

	switch kind {
	case "local":
		return &statestore.LocalBackend{Path: local.Path}, nil
	case "s3":
		osOps, ok := ops.(*openstack.Ops)
		if !ok {
			return nil, fmt.Errorf("setup: s3 state backend requires an OpenStack cloud.Ops, got %T", ops)
		}
		return &statestore.ObjectBackend{Client: osOps.ObjectClient(), Container: s3.Bucket, Object: s3.Key}, nil
	default:
		return nil, fmt.Errorf("setup: unknown state backend kind %q", kind)
	}
}

// newOrchestrator authenticates against the configured OpenStack cloud and
// wires an orchestrator.Orchestrator from the project's state backends.
func newOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, error) {
	ops, err := openstack.New(ctx, cloudName)
	if err != nil {
		return nil, fmt.Errorf("setup: connect to cloud %q: %w", cloudName, err)
	}

	infraBackend, err := buildBackend(cfg.Project.StateBackend, ops)
	if err != nil {
		return nil, fmt.Errorf("setup: infra state backend: %w", err)
	}
	placementBackend, err := buildBackend(cfg.Project.UserStateBackend, ops)
	if err != nil {
		return nil, fmt.Errorf("setup: placement state backend: %w", err)
	}

	infraStore := statestore.NewStore[[]depgraph.StateRecord](infraBackend)
	placementStore := statestore.NewStore[placement.PlacementState](placementBackend)

	historyPath := filepath.Join(".", fmt.Sprintf("%s.history.db", cfg.Project.Name))
	history, err := statestore.OpenHistory(historyPath)
	if err != nil {
		return nil, fmt.Errorf("setup: open history log: %w", err)
	}

	return orchestrator.New(infraStore, placementStore, history, ops), nil
}
