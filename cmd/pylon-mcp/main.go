package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/pylon/pkg/cloud/openstack"
	"github.com/cuemby/pylon/pkg/config"
	"github.com/cuemby/pylon/pkg/depgraph"
	"github.com/cuemby/pylon/pkg/log"
	"github.com/cuemby/pylon/pkg/orchestrator"
	"github.com/cuemby/pylon/pkg/placement"
	"github.com/cuemby/pylon/pkg/statestore"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	log.Init(log.Config{Level: log.InfoLevel})

	s := server.NewMCPServer(
		"pylon MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	genesisTool := mcp.NewTool("genesis",
		mcp.WithDescription("Provision infrastructure from scratch and schedule every service in a pylon project"),
		mcp.WithString("config_path", mcp.Required(), mcp.Description("Path to the project's TOML file")),
		mcp.WithString("cloud", mcp.Description("OpenStack cloud name from clouds.yaml; empty uses the default cloud")),
	)
	s.AddTool(genesisTool, workflowHandler("genesis"))

	applyTool := mcp.NewTool("apply",
		mcp.WithDescription("Reconcile a pylon project against its persisted state, provisioning or scheduling only what's missing"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("config_path", mcp.Required(), mcp.Description("Path to the project's TOML file")),
		mcp.WithString("cloud", mcp.Description("OpenStack cloud name from clouds.yaml; empty uses the default cloud")),
	)
	s.AddTool(applyTool, workflowHandler("apply"))

	destroyTool := mcp.NewTool("destroy",
		mcp.WithDescription("Stop every service and deprovision all infrastructure for a pylon project"),
		mcp.WithString("config_path", mcp.Required(), mcp.Description("Path to the project's TOML file")),
		mcp.WithString("cloud", mcp.Description("OpenStack cloud name from clouds.yaml; empty uses the default cloud")),
	)
	s.AddTool(destroyTool, workflowHandler("destroy"))

	statusTool := mcp.NewTool("status",
		mcp.WithDescription("Show the persisted infra and placement state for a pylon project"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("config_path", mcp.Required(), mcp.Description("Path to the project's TOML file")),
		mcp.WithString("cloud", mcp.Description("OpenStack cloud name from clouds.yaml; empty uses the default cloud")),
	)
	s.AddTool(statusTool, statusHandler)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "pylon-mcp: server error: %v\n", err)
		os.Exit(1)
	}
}

// workflowHandler builds a tool handler for one of the three orchestrator
// workflows, all three sharing the same config_path/cloud argument shape.
func workflowHandler(workflow string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cfg, project, orch, err := setupFromRequest(ctx, request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		defer orch.History.Close()

		var result *orchestrator.Result
		switch workflow {
		case "genesis":
			result, err = orch.Genesis(ctx, project)
		case "apply":
			result, err = orch.Apply(ctx, project)
		case "destroy":
			result, err = orch.Destroy(ctx, project)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		body, marshalErr := json.Marshal(resultDTO(result))
		if marshalErr != nil {
			return mcp.NewToolResultError(marshalErr.Error()), nil
		}
		_ = cfg
		return mcp.NewToolResultText(string(body)), nil
	}
}

// resultDTO flattens an orchestrator.Result for JSON output: Outcome.Err is
// an error interface, which marshals as an empty object otherwise.
func resultDTO(r *orchestrator.Result) map[string]any {
	outcomes := make([]map[string]any, 0, len(r.InfraOutcome))
	for _, o := range r.InfraOutcome {
		entry := map[string]any{"name": o.Name, "kind": o.Kind, "created": o.Created}
		if o.Err != nil {
			entry["error"] = o.Err.Error()
		}
		outcomes = append(outcomes, entry)
	}
	return map[string]any{
		"workflow":     r.Workflow,
		"infra":        outcomes,
		"placed":       r.Placed,
		"unplaced":     r.Unplaced,
		"stopped":      r.Stopped,
		"vms":          r.Vms,
		"registry_uri": r.RegistryURI,
	}
}

func statusHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, _, orch, err := setupFromRequest(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer orch.History.Close()

	records, infraPresent, err := orch.InfraStore.Load(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	placementState, placementPresent, err := orch.PlacementStore.Load(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snapshot := struct {
		InfraPresent     bool                      `json:"infra_present"`
		Records          []depgraph.StateRecord    `json:"records,omitempty"`
		PlacementPresent bool                      `json:"placement_present"`
		Placement        *placement.PlacementState `json:"placement,omitempty"`
	}{
		InfraPresent:     infraPresent,
		Records:          records,
		PlacementPresent: placementPresent,
	}
	if placementPresent {
		snapshot.Placement = &placementState
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// setupFromRequest reads the tool call's config_path/cloud arguments and
// wires an orchestrator the same way the CLI does.
func setupFromRequest(ctx context.Context, request mcp.CallToolRequest) (*config.Config, orchestrator.Project, *orchestrator.Orchestrator, error) {
	configPath, err := request.RequireString("config_path")
	if err != nil {
		return nil, orchestrator.Project{}, nil, err
	}
	cloudName := request.GetString("cloud", "")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, orchestrator.Project{}, nil, err
	}

	project := orchestrator.Project{
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
		project.Services = append(project.Services, spec)
	}

	ops, err := openstack.New(ctx, cloudName)
	if err != nil {
		return nil, orchestrator.Project{}, nil, fmt.Errorf("connect to cloud %q: %w", cloudName, err)
	}

	infraBackend, err := resolveBackend(cfg.Project.StateBackend, ops)
	if err != nil {
		return nil, orchestrator.Project{}, nil, err
	}
	placementBackend, err := resolveBackend(cfg.Project.UserStateBackend, ops)
	if err != nil {
		return nil, orchestrator.Project{}, nil, err
	}

	infraStore := statestore.NewStore[[]depgraph.StateRecord](infraBackend)
	placementStore := statestore.NewStore[placement.PlacementState](placementBackend)

	history, err := statestore.OpenHistory(fmt.Sprintf("%s.history.db", cfg.Project.Name))
	if err != nil {
		return nil, orchestrator.Project{}, nil, err
	}

	return cfg, project, orchestrator.New(infraStore, placementStore, history, ops), nil
}

func resolveBackend(b config.StateBackend, ops *openstack.Ops) (statestore.Backend, error) {
	kind, local, s3, err := b.Resolve()
	if err != nil {
		return nil, err
	}
	switch kind {
	case "local":
		return &statestore.LocalBackend{Path: local.Path}, nil
	case "s3":
		return &statestore.ObjectBackend{Client: ops.ObjectClient(), Container: s3.Bucket, Object: s3.Key}, nil
	default:
		return nil, fmt.Errorf("unknown state backend kind %q", kind)
	}
}
