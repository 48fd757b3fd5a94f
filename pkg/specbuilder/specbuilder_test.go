package specbuilder

import (
	"testing"

	"github.com/cuemby/pylon/pkg/cloudspec"
	"github.com/cuemby/pylon/pkg/depgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countEdges(g *depgraph.Graph[cloudspec.Node]) int {
	total := 0
	for _, id := range g.NodeIDs() {
		total += len(g.Children(id))
	}
	return total
}

// TestBuild_ThreeVMsWithDomain reproduces the three-VM-with-domain
// scenario: 16 nodes, 29 edges, one HostedZone, exactly 3 DnsRecord nodes
// each parented to (HostedZone, Vm_i). These figures are internally
// consistent with the required-parentage table (the same table gives 10
// nodes and 14 edges in the single-VM, no-domain case).
func TestBuild_ThreeVMsWithDomain(t *testing.T) {
	g, err := Build(Params{NumberOfInstances: 3, InstanceType: "micro", ImageID: "ami-1", Domain: "example.com"})
	require.NoError(t, err)

	assert.Equal(t, 16, g.Len())
	assert.Equal(t, 29, countEdges(g))

	var hostedZones, dnsRecords, vms int
	for _, id := range g.NodeIDs() {
		node := g.Node(id)
		if node.Root {
			continue
		}
		switch node.Spec.Kind() {
		case cloudspec.KindHostedZone:
			hostedZones++
		case cloudspec.KindDnsRecord:
			dnsRecords++
		case cloudspec.KindVm:
			vms++
		}
	}
	assert.Equal(t, 1, hostedZones)
	assert.Equal(t, 3, dnsRecords)
	assert.Equal(t, 3, vms)
}

func TestBuild_SingleVMNoDomain(t *testing.T) {
	g, err := Build(Params{NumberOfInstances: 1, InstanceType: "micro", ImageID: "ami-1"})
	require.NoError(t, err)

	assert.Equal(t, 10, g.Len())

	order, err := depgraph.KahnOrder(g)
	require.NoError(t, err)
	assert.Len(t, order, g.Len())
}

func TestBuild_TopologicalOrderRespectsEdges(t *testing.T) {
	g, err := Build(Params{NumberOfInstances: 2, InstanceType: "micro", ImageID: "ami-1", Domain: "example.com"})
	require.NoError(t, err)

	order, err := depgraph.KahnOrder(g)
	require.NoError(t, err)

	position := make(map[depgraph.NodeID]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	for _, u := range g.NodeIDs() {
		for _, v := range g.Children(u) {
			assert.Less(t, position[u], position[v], "edge %d->%d must respect topological order", u, v)
		}
	}
}

func TestBuild_RejectsZeroInstances(t *testing.T) {
	_, err := Build(Params{NumberOfInstances: 0})
	assert.Error(t, err)
}

func TestBuild_SecurityGroupRules(t *testing.T) {
	g, err := Build(Params{NumberOfInstances: 1, InstanceType: "micro", ImageID: "ami-1"})
	require.NoError(t, err)

	var sg cloudspec.SecurityGroupSpec
	found := false
	for _, id := range g.NodeIDs() {
		node := g.Node(id)
		if !node.Root && node.Spec.Kind() == cloudspec.KindSecurityGroup {
			sg = node.Spec.(cloudspec.SecurityGroupSpec)
			found = true
		}
	}
	require.True(t, found)

	ports := map[int]bool{}
	for _, rule := range sg.InboundRules {
		assert.Equal(t, "0.0.0.0/0", rule.CIDR)
		ports[rule.Port] = true
	}
	assert.True(t, ports[22])
	assert.True(t, ports[80])
	assert.True(t, ports[31888])
}
