package orchestrator

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cuemby/pylon/pkg/agent"
	"github.com/cuemby/pylon/pkg/cloud"
	"github.com/cuemby/pylon/pkg/cloud/cloudmock"
	"github.com/cuemby/pylon/pkg/cloudrsrc"
	"github.com/cuemby/pylon/pkg/cloudspec"
	"github.com/cuemby/pylon/pkg/depgraph"
	"github.com/cuemby/pylon/pkg/placement"
	"github.com/cuemby/pylon/pkg/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var mockAny = mock.Anything

func newStores(t *testing.T) (*statestore.Store[[]depgraph.StateRecord], *statestore.Store[placement.PlacementState]) {
	t.Helper()
	dir := t.TempDir()
	infra := statestore.NewStore[[]depgraph.StateRecord](&statestore.LocalBackend{Path: filepath.Join(dir, "infra.json")})
	place := statestore.NewStore[placement.PlacementState](&statestore.LocalBackend{Path: filepath.Join(dir, "placement.json")})
	return infra, place
}

// expectGenesisOps sets up every cloud.Ops call a single-VM, no-domain
// Genesis run makes, returning the mock for assertions.
func expectGenesisOps(t *testing.T) *cloudmock.Ops {
	t.Helper()
	ops := cloudmock.New()
	ops.Test(t)

	ops.On("CreateVpc", mockAny, mockAny, mockAny).Return(cloud.VpcOutput{VpcID: "vpc-1"}, nil)
	ops.On("CreateInternetGateway", mockAny, mockAny).Return(cloud.InternetGatewayOutput{IgwID: "igw-1"}, nil)
	ops.On("AttachInternetGateway", mockAny, mockAny, mockAny).Return(nil)
	ops.On("CreateRouteTable", mockAny, mockAny).Return(cloud.RouteTableOutput{RouteTableID: "rt-1"}, nil)
	ops.On("AddDefaultRoute", mockAny, mockAny, mockAny).Return(nil)
	ops.On("CreateSubnet", mockAny, mockAny, mockAny, mockAny).Return(cloud.SubnetOutput{SubnetID: "subnet-1"}, nil)
	ops.On("EnableSubnetAutoAssignPublicIP", mockAny, mockAny).Return(nil)
	ops.On("AssociateRouteTable", mockAny, mockAny, mockAny).Return(nil)
	ops.On("CreateSecurityGroup", mockAny, mockAny).Return(cloud.SecurityGroupOutput{SecurityGroupID: "sg-1"}, nil)
	ops.On("AuthorizeIngress", mockAny, mockAny, mockAny, mockAny, mockAny).Return(nil)
	ops.On("CreateInstanceRole", mockAny, mockAny, mockAny, mockAny).Return(cloud.InstanceRoleOutput{RoleName: "role-1"}, nil)
	ops.On("CreateInstanceProfile", mockAny, mockAny, mockAny).Return(cloud.InstanceProfileOutput{ProfileName: "profile-1"}, nil)
	ops.On("CreateContainerRegistry", mockAny, mockAny).Return(cloud.ContainerRegistryOutput{RegistryID: "registry-1", URI: "registry.local/registry-1"}, nil)
	ops.On("RunInstances", mockAny, mockAny).Return(cloud.InstanceDescription{InstanceID: "i-1", State: "pending"}, nil)
	ops.On("DescribeInstance", mockAny, mockAny).Return(cloud.InstanceDescription{
		InstanceID: "i-1", State: "running", PublicIP: "1.2.3.4", PublicDNS: "i-1.example.invalid",
	}, nil)
	return ops
}

// testProject describes a single-VM, no-domain, no-service project: just
// enough to exercise infra provisioning and its idempotent reconciliation
// without needing a reachable agent endpoint.
func testProject() Project {
	return Project{
		Name:              "demo",
		NumberOfInstances: 1,
		InstanceType:      "nano",
		ImageID:           "ami-1",
	}
}

func TestGenesisThenIdempotentApply(t *testing.T) {
	infra, place := newStores(t)
	ops := expectGenesisOps(t)

	orch := New(infra, place, nil, ops)
	cache, err := agent.NewHealthCache(8, 0)
	require.NoError(t, err)
	orch.HealthCache = cache

	ctx := context.Background()
	_, err = orch.Genesis(ctx, testProject())
	require.NoError(t, err)

	ops.AssertExpectations(t)

	records, present, err := infra.Load(ctx)
	require.NoError(t, err)
	require.True(t, present)
	require.NotEmpty(t, records)

	// Second pass: a strict mock with zero expectations configured. Any
	// cloud call Apply makes will fail the test immediately.
	strictOps := cloudmock.New()
	strictOps.Test(t)

	orch2 := New(infra, place, nil, strictOps)
	orch2.HealthCache = cache

	result, err := orch2.Apply(ctx, testProject())
	require.NoError(t, err)
	require.Empty(t, result.InfraOutcome)
	strictOps.AssertExpectations(t)
}

// TestApply_StopsUndeclaredServices exercises Apply's reconciliation of a
// service that was placed in a prior run but is no longer present in the
// project's service list: Apply must call remove-container on the hosting
// instance's agent and report the name in Result.Stopped, without touching
// the cloud provider at all.
func TestApply_StopsUndeclaredServices(t *testing.T) {
	var removeCalls []string
	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/remove-container" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		removeCalls = append(removeCalls, body.Name)
		w.WriteHeader(http.StatusOK)
	}))
	defer agentSrv.Close()

	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(agentSrv.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	infra, place := newStores(t)
	ctx := context.Background()

	vm := &cloudrsrc.Vm{VmID: "i-1", PublicIP: host, PublicDNS: "i-1.example.invalid"}
	records := []depgraph.StateRecord{
		{Name: "vm-1", Kind: cloudspec.KindVm, Resource: marshalResource(t, vm)},
	}
	require.NoError(t, infra.Save(ctx, records))

	placementState := placement.NewPlacementState()
	placementState.Instances[host] = placement.NewInstance(4, 4096)
	placementState.Instances[host].Services["keep"] = placement.Service{Cpus: 1, Memory: 128}
	placementState.Instances[host].Services["retire"] = placement.Service{Cpus: 1, Memory: 128}
	require.NoError(t, place.Save(ctx, *placementState))

	strictOps := cloudmock.New()
	strictOps.Test(t)

	orch := New(infra, place, nil, strictOps)
	orch.AgentPort = port

	project := Project{
		Name:         "demo",
		InstanceType: "nano",
		Services: []placement.ServiceSpec{
			{Name: "keep", Image: "keep:latest", Cpus: 1, Memory: 128},
		},
	}

	result, err := orch.Apply(ctx, project)
	require.NoError(t, err)
	strictOps.AssertExpectations(t)

	assert.Equal(t, []string{"retire"}, result.Stopped)
	assert.Equal(t, []string{"retire"}, removeCalls)
	assert.Empty(t, result.Placed)
	assert.Empty(t, result.Unplaced)

	saved, present, err := place.Load(ctx)
	require.NoError(t, err)
	require.True(t, present)
	_, stillThere := saved.Instances[host].Services["retire"]
	assert.False(t, stillThere)
	_, keptThere := saved.Instances[host].Services["keep"]
	assert.True(t, keptThere)
}

func marshalResource(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
